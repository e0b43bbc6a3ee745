// main.go
// Purpose: Application entry point. Loads configuration, starts the fleet and
// supervises the clock, HTTP and feed threads. Any thread failing stops the
// rest; Ctrl+C shuts everything down.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"liftsim/common"
	"liftsim/elevsystem"
	"liftsim/logger"
)

func main() {
	configPath := flag.String("config", "lift.yaml", "YAML config file (optional)")
	envPath := flag.String("env", ".env", "dotenv overrides (optional)")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath, *envPath)
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("error loading config")
	}
	log := logger.GetLoggerConfigured(logger.ParseLevel(cfg.LogLevel))

	// ctrl + c handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sys := elevsystem.New(cfg, *log)
	if err := sys.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to start fleet")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return clockThread(gctx, sys) })
	g.Go(func() error { return apiThread(gctx, cfg, sys, logger.Component("http")) })
	if cfg.FeedAddr != "" {
		g.Go(func() error { return feedThread(gctx, cfg, sys, logger.Component("feed")) })
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutting down after failure")
	} else {
		log.Info().Msg("shutting down")
	}
	cancel()
	sys.Shutdown()
}
