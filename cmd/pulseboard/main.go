// Command pulseboard runs the user CRUD API together with the outbox
// dispatcher and the weekly digest scheduler.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pulseboard/pulseboard/internal/api"
	"github.com/pulseboard/pulseboard/internal/digest"
	"github.com/pulseboard/pulseboard/internal/dispatch"
	"github.com/pulseboard/pulseboard/internal/lockfile"
	"github.com/pulseboard/pulseboard/internal/notify"
	"github.com/pulseboard/pulseboard/internal/scheduler"
	"github.com/pulseboard/pulseboard/internal/store"
	"github.com/pulseboard/pulseboard/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for pulseboard state data
	DefaultStateDir = "/var/lib/pulseboard"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "pulseboard.db"
	// DefaultDigestCron fires the weekly digest on Mondays at 08:00
	DefaultDigestCron = "0 8 * * 1"
)

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	APIAddr      string
	DigestCron   string
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("pulseboard failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("pulseboard exited successfully")
}

// initializeLogger sets up structured logging; level comes from LOG_LEVEL
// (debug, info, warn, error; default info).
func initializeLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("PULSEBOARD_STATE_DIR"),
		APIAddr:      os.Getenv("API_ADDR"),
		DigestCron:   os.Getenv("DIGEST_SCHEDULE"),
		PollInterval: util.ParseDurationEnv("OUTBOX_POLL_INTERVAL", dispatch.DefaultPollInterval),
		BatchSize:    util.ParseIntEnv("OUTBOX_BATCH_SIZE", dispatch.DefaultBatchSize),
		MaxRetries:   util.ParseIntEnv("OUTBOX_MAX_RETRIES", dispatch.DefaultMaxRetries),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DigestCron == "" {
		config.DigestCron = DefaultDigestCron
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"PULSEBOARD_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"DIGEST_SCHEDULE", config.DigestCron,
		"OUTBOX_POLL_INTERVAL", config.PollInterval,
		"OUTBOX_BATCH_SIZE", config.BatchSize,
		"OUTBOX_MAX_RETRIES", config.MaxRetries)

	return config
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	digestCron   *string
	pollInterval *time.Duration
	batchSize    *int
	maxRetries   *int
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for pulseboard data (overrides $PULSEBOARD_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN; PostgreSQL URL or SQLite file path (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		digestCron:   flag.String("digest-cron", config.DigestCron, "cron schedule for the weekly digest (overrides $DIGEST_SCHEDULE)"),
		pollInterval: flag.Duration("poll-interval", config.PollInterval, "outbox dispatcher poll interval (overrides $OUTBOX_POLL_INTERVAL)"),
		batchSize:    flag.Int("batch-size", config.BatchSize, "outbox dispatcher batch size (overrides $OUTBOX_BATCH_SIZE)"),
		maxRetries:   flag.Int("max-retries", config.MaxRetries, "outbox max processing attempts (overrides $OUTBOX_MAX_RETRIES)"),
	}

	flag.Parse()

	// Default to SQLite in the state directory when no DSN is provided
	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}

	return flags
}

// buildStore opens the storage backend matching the DSN.
func buildStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildNotifier returns the Twilio notifier when credentials are configured,
// otherwise a log-only notifier.
func buildNotifier() notify.Notifier {
	if os.Getenv("TWILIO_ACCOUNT_SID") == "" {
		slog.Info("No Twilio credentials configured, notifications will be logged only")
		return notify.NewLogNotifier()
	}
	notifier, err := notify.NewTwilioNotifier()
	if err != nil {
		slog.Warn("Twilio notifier setup failed, falling back to log-only notifications", "error", err)
		return notify.NewLogNotifier()
	}
	return notifier
}

func run(flags Flags) error {
	// One process per state directory: the dispatcher has no row leasing, so
	// a second instance would double-process events.
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	notifier := buildNotifier()
	registry := dispatch.DefaultRegistry(notifier)
	dispatcher := dispatch.NewDispatcher(st, registry, dispatch.Config{
		PollInterval: *flags.pollInterval,
		BatchSize:    *flags.batchSize,
		MaxRetries:   *flags.maxRetries,
	})

	digestSvc := digest.NewService(st)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	err = sched.AddJob(*flags.digestCron, func() {
		key := digest.CurrentWeekKey(time.Now())
		if _, err := digestSvc.Trigger(key); err != nil {
			slog.Error("Scheduled digest trigger failed", "error", err, "key", key)
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, digestSvc, apiOpts...)

	// Shut the server down on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("Received shutdown signal", "signal", sig.String())
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("API shutdown failed", "error", err)
		}
	}()

	slog.Info("Bootstrapping pulseboard", "db_dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	return server.Start()
}
