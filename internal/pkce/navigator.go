package pkce

import "context"

// Navigator sends the user agent to the authorization URL.
//
// The CLI opens the system browser; the web app answers with a redirect.
type Navigator interface {
	Navigate(ctx context.Context, authURL string) error
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, authURL string) error

func (f NavigatorFunc) Navigate(ctx context.Context, authURL string) error {
	return f(ctx, authURL)
}
