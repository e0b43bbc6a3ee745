// apithread.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"liftsim/common"
	"liftsim/elevapi"
	"liftsim/elevnetwork"
	"liftsim/elevsystem"
)

const SHUTDOWN_TIMEOUT = 3 * time.Second

// apiThread serves the HTTP routes on cfg.HTTPAddr, and on cfg.HTTP3Addr
// over HTTP/3 when set, until ctx is cancelled.
func apiThread(ctx context.Context, cfg common.Config, sys *elevsystem.System, log zerolog.Logger) error {
	handler := elevapi.NewHandler(sys, log)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.HTTP3Addr != "" {
		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTP3Addr).Msg("listening (http/3)")
			return elevnetwork.ServeHTTP3(gctx, cfg.HTTP3Addr, handler)
		})
	}
	return g.Wait()
}
