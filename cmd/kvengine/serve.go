/*
serve.go - `kvengine serve`, the server startup command

STARTUP SEQUENCE:
  1. Load KVENGINE_* environment variables, then let flags override them
  2. Open the SQLite store and the transaction logger
  3. Build the HTTP router
  4. Start the server with graceful shutdown on SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to finish (30s timeout)
  3. Close the database and transaction logger
  4. Exit

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
  - txnlog/logger.go: transaction log implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/kvengine/api"
	"github.com/warp/kvengine/internal/applog"
	"github.com/warp/kvengine/internal/config"
	"github.com/warp/kvengine/store/sqlite"
	"github.com/warp/kvengine/txnlog"
)

func newServeCommand() *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	flags.StringVar(&cfg.LogPath, "log", cfg.LogPath, "process log file path (empty disables file logging)")
	flags.StringVar(&cfg.AuthToken, "auth-token", cfg.AuthToken, "bearer token required on /v1 routes (empty disables auth)")
	flags.IntVar(&cfg.MaxValueBytes, "max-value-bytes", cfg.MaxValueBytes, "maximum accepted value size in bytes (0 = unbounded)")

	return cmd
}

func runServe(cfg config.Config) error {
	log := applog.New(cfg.LogPath)

	activeLogPath := transactionLogPath(cfg.DBPath)
	logger := txnlog.New(activeLogPath, log)
	defer logger.Close()

	store, err := sqlite.New(cfg.DBPath, logger, cfg.MaxValueBytes)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, log, activeLogPath)
	router := api.NewRouter(handler, cfg.AuthToken)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// transactionLogPath derives the active transaction log path from the
// database path: "<db-without-extension>.txn.log". An in-memory
// database still gets a file-backed log in the current directory,
// since the log is the durability story, not the database file.
func transactionLogPath(dbPath string) string {
	if dbPath == ":memory:" {
		return "kvengine.txn.log"
	}
	base := strings.TrimSuffix(dbPath, ".sqlite")
	base = strings.TrimSuffix(base, ".db")
	return base + ".txn.log"
}
