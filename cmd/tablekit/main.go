package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tablekit/tablekit/internal/auth"
	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/dbmanager"
	"github.com/tablekit/tablekit/internal/logging"
	"github.com/tablekit/tablekit/internal/maintenance"
	"github.com/tablekit/tablekit/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	dbURL            string
	port             int
	bind             string
	deletionPassword string
	logFile          string
	verbosity        int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tablekit",
		Short: "Tablekit - SQL table management server",
		Long:  `Tablekit is a table management server exposing descriptor-driven schema and record operations over a REST API.`,
		RunE:  run,
	}

	// Flags
	rootCmd.PersistentFlags().StringVarP(&dbURL, "db", "d", "./tablekit.db", "Database URL (sqlite://path or postgres://...; or set TABLEKIT_DB env var)")
	rootCmd.PersistentFlags().StringVar(&deletionPassword, "deletion-password", "", "Password required for destructive operations (or set TABLEKIT_DELETION_PASSWORD env var)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (required, or set PORT env var)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (defaults to a file alongside the database)")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tablekit %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	// API key command
	apikeyCmd := &cobra.Command{
		Use:   "apikey [name]",
		Short: "Generate an API key for the admin API",
		Args:  cobra.ExactArgs(1),
		RunE:  generateAPIKey,
	}
	rootCmd.AddCommand(apikeyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	resolveEnv()

	if port == 0 {
		if envPort := os.Getenv("PORT"); envPort != "" {
			if _, err := fmt.Sscanf(envPort, "%d", &port); err != nil {
				return fmt.Errorf("invalid PORT environment variable %q: %w", envPort, err)
			}
		}
	}
	if port == 0 {
		return fmt.Errorf("--port flag or PORT environment variable is required")
	}
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}

	if logFile == "" {
		logFile = logging.FilePathForDB(dbURL)
	}
	logging.Apply(levelName(verbosity), logFile, logging.DefaultRotation())

	if deletionPassword == "" {
		log.Warn().Msg("No deletion password configured; drop and clear operations run unguarded")
	}

	log.Info().
		Str("version", version).
		Int("port", port).
		Str("bind", bind).
		Str("database", dbURL).
		Msg("Starting Tablekit")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := dbmanager.Open(ctx, dbmanager.Config{
		URL:              dbURL,
		LogLevel:         levelName(verbosity),
		DeletionPassword: deletionPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer mgr.Close()

	store, err := config.NewStore(ctx, mgr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings store")
	}
	loader := config.NewLoader(store)

	apiKeys, err := auth.NewAPIKeyService(ctx, mgr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize API key service")
	}

	// Maintenance schedule comes from the settings table, e.g.
	// "0 4 * * *" for 4 AM daily.
	sched := maintenance.New(mgr)
	schedule := loader.String("maintenance.schedule", "")
	vacuum := loader.Bool("maintenance.vacuum", false)
	if err := sched.Start(schedule, vacuum); err != nil {
		log.Warn().Err(err).Str("schedule", schedule).Msg("Failed to start maintenance scheduler")
	}
	defer sched.Stop()

	server := web.NewServer(mgr, apiKeys, port, bind)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Tablekit stopped")
	return nil
}

func generateAPIKey(cmd *cobra.Command, args []string) error {
	resolveEnv()
	setupConsoleLogging(verbosity)

	ctx := context.Background()
	mgr, err := dbmanager.Open(ctx, dbmanager.Config{
		URL:              dbURL,
		DeletionPassword: deletionPassword,
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	apiKeys, err := auth.NewAPIKeyService(ctx, mgr)
	if err != nil {
		return err
	}
	key, err := apiKeys.GenerateKey(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("API key %q (store it now; it is not retrievable later):\n%s\n", args[0], key)
	return nil
}

func resolveEnv() {
	if dbURL == "./tablekit.db" {
		if envDB := os.Getenv("TABLEKIT_DB"); envDB != "" {
			dbURL = envDB
		}
	}
	if deletionPassword == "" {
		deletionPassword = os.Getenv("TABLEKIT_DELETION_PASSWORD")
	}
}

func levelName(verbosity int) string {
	switch verbosity {
	case 0:
		return "info"
	case 1:
		return "debug"
	default: // 2+
		return "trace"
	}
}

func setupConsoleLogging(verbosity int) {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	switch verbosity {
	case 0:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case 1:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default: // 2+
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
}
