package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local dashboard API server",
	RunE:  handleServe,
}

func handleServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "bcfeed").Logger()
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}
	log.Logger = logger

	dir := resolveDataDir()
	logger.Info().Str("version", core.Version).Str("data_dir", dir).Msg("starting")

	srv := server.New(logger, dir, verbose)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
	return nil
}
