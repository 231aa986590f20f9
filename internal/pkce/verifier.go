package pkce

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// MethodS256 is the only challenge method sent to the provider.
	MethodS256 = "S256"

	DefaultVerifierBytes = 32
	MinVerifierLength    = 43
	MaxVerifierLength    = 128

	stateBytes = 16
)

// GenerateVerifier draws n bytes from r and encodes them with unpadded base64url.
//
// n must be within [shared.MinVerifierBytes, shared.MaxVerifierBytes], which yields 43 to 128 characters.
// A short or failed read is reported as [shared.ErrRandomnessUnavailable].
func GenerateVerifier(r io.Reader, n int) (string, error) {
	if n < shared.MinVerifierBytes || n > shared.MaxVerifierBytes {
		return "", fmt.Errorf("%w: verifier byte count %d outside [%d, %d]",
			shared.ErrInvalidArgument, n, shared.MinVerifierBytes, shared.MaxVerifierBytes)
	}

	buf, err := readRandom(r, n)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateState returns a random CSRF token for the authorization request.
func GenerateState(r io.Reader) (string, error) {
	buf, err := readRandom(r, stateBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Challenge derives the S256 code challenge: base64url(sha256(verifier)) without padding.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether v has a legal length and only unreserved characters.
func ValidVerifier(v string) bool {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return false
	}

	for i := 0; i < len(v); i++ {
		if !isUnreserved(v[i]) {
			return false
		}
	}
	return true
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

func readRandom(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRandomnessUnavailable, err)
	}
	return buf, nil
}
