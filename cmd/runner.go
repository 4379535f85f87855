package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ampyr/internal/cache"
	"github.com/desertthunder/ampyr/internal/oauth"
	"github.com/desertthunder/ampyr/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	store      cache.Store
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	// storeInjected marks a store provided by the caller (tests), which
	// loadConfig must not replace with the configured backend.
	storeInjected bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Store      cache.Store
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
	injected := opts.Store != nil
	if opts.Store == nil {
		opts.Store = cache.NewMemoryHandler()
	}

	return &Runner{
		config:        opts.Config,
		store:         opts.Store,
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
		output:        opts.Output,
		storeInjected: injected,
	}
}

// loadConfig reads the TOML configuration at path when it exists and opens
// the cache backend it names. A missing file keeps the embedded defaults.
func (r *Runner) loadConfig(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		r.logger.Debugf("no config at %s, using defaults", path)
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config

	if !r.storeInjected {
		store, err := cache.Open(config.Cache)
		if err != nil {
			return err
		}
		r.store = store
	}

	return nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, cacheCommand, profileCommand, playlistsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// credentials builds the credential record from config, falling back to the
// SPOTIFY_-prefixed environment variables for any missing field.
func (r *Runner) credentials() oauth.Credentials {
	env := oauth.CredentialsFromEnv()
	spotify := r.config.Credentials.Spotify

	creds := oauth.Credentials{
		ClientID:     spotify.ClientID,
		ClientSecret: spotify.ClientSecret,
		RedirectURL:  spotify.RedirectURI,
		UserID:       spotify.UserID,
		Scope:        spotify.Scope,
	}

	if creds.ClientID == "" {
		creds.ClientID = env.ClientID
	}
	if creds.ClientSecret == "" {
		creds.ClientSecret = env.ClientSecret
	}
	if creds.RedirectURL == "" {
		creds.RedirectURL = env.RedirectURL
	}
	if creds.UserID == "" {
		creds.UserID = env.UserID
	}

	return creds
}

// flowOpts assembles the shared flow collaborators from the runner's config.
func (r *Runner) flowOpts(showDialog bool) oauth.FlowOpts {
	opts := oauth.FlowOpts{
		Cache:      r.store,
		Client:     r.httpClient,
		ShowDialog: showDialog,
	}

	if secs := r.config.Server.ListenTimeout; secs > 0 {
		opts.ListenTimeout = time.Duration(secs) * time.Second
	}

	return opts
}

// buildFlow constructs the orchestrator for the named grant type.
func (r *Runner) buildFlow(name string, showDialog bool) (*oauth.Flow, error) {
	creds := r.credentials()
	opts := r.flowOpts(showDialog)

	switch name {
	case "client-credentials", "client_credentials":
		return oauth.NewClientCredentialsFlow(creds, opts)
	case "code", "authorization-code", "authorization_code":
		return oauth.NewAuthorizationFlow(creds, opts)
	case "pkce":
		return oauth.NewPKCEFlow(creds, opts)
	default:
		return nil, fmt.Errorf("%w: unknown flow %q (want client-credentials, code, or pkce)", shared.ErrInvalidFlag, name)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(line string) error {
	return r.writePlain("%s\n", line)
}
