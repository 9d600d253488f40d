package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kanban/internal/auth"
	"kanban/internal/board"
	"kanban/internal/config"
	"kanban/internal/server"
	"kanban/internal/storage/sqlite"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "kanban",
	Short:        "Multi-user Kanban boards",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema and exit",
	RunE:  runMigrate,
}

var (
	serveAddr string
	serveDev  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.EnvOrDefault("KANBAN_CONFIG", "kanban.toml"), "Path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to sqlite database file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "Development mode: relaxed security headers")

	rootCmd.AddCommand(serveCmd, migrateCmd, userCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// loadConfig applies command line overrides on top of file and environment settings.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.Server.Addr = serveAddr
	}
	if f := cmd.Flags().Lookup("dev"); f != nil && f.Changed {
		cfg.Server.Development = serveDev
	}
	return cfg, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (*sqlite.Store, error) {
	store, err := sqlite.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	return store, nil
}

func newAuthService(cfg config.Config, store *sqlite.Store, logger *slog.Logger) *auth.Service {
	hasher := auth.NewHasher(auth.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
	})
	return auth.NewService(store, hasher, logger)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("database migrated", slog.String("path", cfg.Database.Path))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	if cfg.Session.Secret == "" {
		logger.Warn("no session secret configured; sessions will not survive a restart")
	}
	cookies, err := auth.NewCookieStore(auth.SessionOptions{
		Secret: cfg.Session.Secret,
		Secure: cfg.Session.Secure,
		MaxAge: cfg.Session.MaxAge,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Board:          board.New(store, logger),
		Auth:           newAuthService(cfg, store, logger),
		Sessions:       cookies,
		Health:         store,
		Logger:         logger,
		Development:    cfg.Server.Development,
		LoginRate:      cfg.Server.LoginRate,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
