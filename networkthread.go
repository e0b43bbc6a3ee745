// networkthread.go
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"liftsim/common"
	"liftsim/elevbus"
	"liftsim/elevnetwork"
	"liftsim/elevsystem"
)

// feedThread serves the QUIC status feed and forwards every stateful bus
// command to the connected monitors.
func feedThread(ctx context.Context, cfg common.Config, sys *elevsystem.System, log zerolog.Logger) error {
	srv, err := elevnetwork.ListenFeed(cfg.FeedAddr, elevnetwork.DefaultQUICConfig(), log)
	if err != nil {
		return fmt.Errorf("status feed: %w", err)
	}
	log.Info().Str("addr", srv.Addr().String()).Msg("status feed listening")

	sub := sys.Subscribe()
	defer sub.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error {
		for {
			cmd, err := sub.Recv(gctx)
			var lag *elevbus.LagError
			switch {
			case err == nil:
			case errors.As(err, &lag):
				log.Warn().Uint64("missed", lag.Missed).Msg("status feed lagged behind the bus")
				continue
			default:
				return nil
			}

			ev, ok := elevnetwork.EventFromCommand(cmd)
			if !ok {
				continue
			}
			if _, err := srv.Broadcast(ev); err != nil {
				log.Warn().Err(err).Str("cmd", cmd.String()).Msg("unable to forward")
			}
		}
	})
	return g.Wait()
}
