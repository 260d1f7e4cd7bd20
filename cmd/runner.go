package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/rostersync/internal/notify"
	"github.com/desertthunder/rostersync/internal/repositories"
	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/shared"
	"github.com/desertthunder/rostersync/internal/tasks"
)

var envFiles = []string{".env.local", ".env"}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services and the history database are created on first use, so commands that only
// read history never need API credentials.
type Runner struct {
	config      *shared.Config
	configPath  string
	loadConfig  bool
	source      services.SourceRegistry
	destination services.Destination
	mailer      services.Mailer
	brevo       *services.BrevoService
	db          *sql.DB
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from ConfigPath (or the --config flag) when a command runs.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Source      services.SourceRegistry
	Destination services.Destination
	Mailer      services.Mailer
	Brevo       *services.BrevoService
	DB          *sql.DB
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loadConfig := opts.Config == nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		loadConfig:  loadConfig,
		source:      opts.Source,
		destination: opts.Destination,
		mailer:      opts.Mailer,
		brevo:       opts.Brevo,
		db:          opts.DB,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, listsCommand, historyCommand, setupCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads dotenv files and the config file, then applies the environment and log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnvFiles(envFiles...); err != nil {
		r.logger.Warn("failed to load env file", "error", err)
	}

	if r.loadConfig {
		path := cmd.String("config")
		if path == "" {
			path = r.configPath
		}
		r.configPath = path

		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
			}
			r.config = config
			r.logger.Debug("loaded config", "path", path)
		} else if cmd.IsSet("config") {
			return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
		r.config.ApplyEnv(os.LookupEnv)
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and by services created after the call.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) sourceRegistry() services.SourceRegistry {
	if r.source == nil {
		r.source = services.NewMonClubService(r.config.Source, r.httpClient, shared.WithLogger(r.logger, "service", "monclub"))
	}
	return r.source
}

func (r *Runner) brevoService() *services.BrevoService {
	if r.brevo == nil {
		r.brevo = services.NewBrevoService(r.config.Destination, r.httpClient, shared.WithLogger(r.logger, "service", "brevo"))
	}
	return r.brevo
}

func (r *Runner) destinationService() services.Destination {
	if r.destination == nil {
		r.destination = r.brevoService()
	}
	return r.destination
}

func (r *Runner) mailerService() services.Mailer {
	if r.mailer == nil {
		r.mailer = r.brevoService()
	}
	return r.mailer
}

// database opens and migrates the history database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *Runner) runRepository() (*repositories.RunRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewRunRepository(db), nil
}

// Close releases the history database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// newEngine builds a sync engine for the configured services.
//
// Runs are recorded when the history database can be opened; otherwise the failure is logged
// and the sync goes ahead unrecorded.
func (r *Runner) newEngine(lists []string) *tasks.Engine {
	opts := tasks.OptionsFromConfig(r.config.Sync)
	opts.ListFilter = lists

	engine := tasks.NewEngine(r.sourceRegistry(), r.destinationService(), opts, r.logger)

	repo, err := r.runRepository()
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return engine
	}
	return engine.WithRecorder(repo)
}

func (r *Runner) notifier() *notify.Notifier {
	return notify.New(r.mailerService(), r.config.Notify, r.logger)
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
