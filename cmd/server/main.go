// UM-SAFE chat service — bilingual safety assistance for Ugandan migrant
// workers in the Gulf.
//
// The server exposes:
//   - POST /api/v1/chat — knowledge-grounded streaming chat with
//     emergency detection and translation
//   - public knowledge base reads (embassies, recruiters, rights)
//   - per-user chat history, incident reports, and language preference
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/pkg/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("UM-SAFE chat service starting...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	srv, err := server.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srv.Store.Close()
	defer srv.ShutdownFunc(ctx)

	if srv.Janitor != nil {
		go srv.Janitor.Start(ctx)
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", srv.Port),
		Handler:     srv.Handler,
		ReadTimeout: 30 * time.Second,
		// No write timeout: streamed responses are bounded by the model
		// call timeout instead.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down gracefully...")
		stop() // halts the retention janitor

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		srv.Sink.Close(shutdownCtx)
	}()

	log.Info().Int("port", srv.Port).Msg("UM-SAFE chat service listening")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
