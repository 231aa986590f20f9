package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/pkce"
	"github.com/desertthunder/spx/internal/player"
	"github.com/desertthunder/spx/internal/repositories"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.Service
	sessions   *repositories.SessionRepository
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Spotify and Sessions are built from the loaded config when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Service
	Sessions   *repositories.SessionRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		sessions:   opts.Sessions,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		loginCommand, logoutCommand, statusCommand, authCommand,
		profileCommand, nowCommand, nextCommand, prevCommand, volumeCommand, repeatCommand, shuffleCommand,
		playerCommand, serveCommand, setupCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config named by --config and applies --debug. Runs ahead of every command.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" && path != r.configPath {
		config, err := shared.LoadConfigOrDefault(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.configPath = path
		r.logger.Debug("config loaded", "path", path)
	}

	return ctx, nil
}

// SetLogger replaces the logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the session database if a command opened it.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.sessions = nil
	return err
}

// newService builds an unauthenticated Spotify client from the config.
func (r *Runner) newService() services.Service {
	return services.NewSpotifyService(services.SpotifyOptions{
		BaseURL:           r.config.Credentials.Spotify.APIURL,
		HTTPClient:        r.httpClient,
		RequestsPerSecond: r.config.Player.RequestsPerSecond,
		Logger:            r.logger,
	})
}

func (r *Runner) service() services.Service {
	if r.spotify == nil {
		r.spotify = r.newService()
	}
	return r.spotify
}

func (r *Runner) sessionRepository() (*repositories.SessionRepository, error) {
	if r.sessions != nil {
		return r.sessions, nil
	}

	db, err := shared.OpenSessionDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	r.db = db
	r.sessions = repositories.NewSessionRepository(db)
	return r.sessions, nil
}

// sessionStore binds a [repositories.SessionStore] to the current session, creating one if needed.
func (r *Runner) sessionStore() (*repositories.SessionStore, error) {
	repo, err := r.sessionRepository()
	if err != nil {
		return nil, err
	}

	session, err := repo.CurrentOrCreate()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return repositories.NewSessionStore(repo, session.ID()), nil
}

func (r *Runner) authenticator(store pkce.Store, navigator pkce.Navigator) (*pkce.Authenticator, error) {
	sp := r.config.Credentials.Spotify
	return pkce.New(pkce.Options{
		AuthURL:       sp.AuthURL,
		TokenURL:      sp.TokenURL,
		VerifierBytes: r.config.Auth.VerifierBytes,
		Store:         store,
		Navigator:     navigator,
		HTTPClient:    r.httpClient,
		Logger:        r.logger,
	})
}

// player authenticates the Spotify client with the stored token and wraps it in a [player.Player].
func (r *Runner) player(ctx context.Context) (*player.Player, error) {
	store, err := r.sessionStore()
	if err != nil {
		return nil, err
	}

	token, err := store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: run `spx login` first", err)
	}

	svc := r.service()
	if err := svc.Authenticate(ctx, token); err != nil {
		return nil, r.revoke(ctx, err)
	}

	return player.New(svc, player.Options{
		SkipRefresh: r.config.Player.SkipRefresh(),
		Logger:      r.logger,
	}), nil
}

// revoke drops the stored token when err is a 401 from the API, so status and the next
// command report the session as logged out. Other errors pass through unchanged.
func (r *Runner) revoke(ctx context.Context, err error) error {
	if !errors.Is(err, shared.ErrUnauthorized) {
		return err
	}

	store, storeErr := r.sessionStore()
	if storeErr != nil {
		r.logger.Warn("failed to open session to clear rejected token", "error", storeErr)
		return err
	}
	if clearErr := store.ClearToken(ctx); clearErr != nil {
		r.logger.Warn("failed to clear rejected token", "error", clearErr)
		return err
	}

	r.logger.Info("token rejected by the API, session logged out")
	return fmt.Errorf("%w: run `spx login` again", err)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
