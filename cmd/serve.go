package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"case-rag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	chatSvc, err := a.chatService()
	if err != nil {
		return err
	}

	trusted, err := cfg.Server.TrustedPrefixes()
	if err != nil {
		return err
	}

	deps := server.Deps{
		Chat:           chatSvc,
		Ingest:         a.ingestService(),
		Documents:      a.docs,
		Limiter:        a.limiter(),
		ListLimit:      cfg.RAG.DocumentListLimit,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		TrustedProxies: trusted,
	}
	if a.pg != nil {
		deps.Leads = a.pg
	} else {
		log.Warn().Msg("No database configured, lead intake disabled")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("store", cfg.Store.Backend).Msg("Listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
