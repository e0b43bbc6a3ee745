// liftwatch connects to a running simulator's status feed and logs every
// event it receives. It reconnects until interrupted.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"liftsim/elevnetwork"
	"liftsim/logger"
)

func randU32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func main() {
	addr := flag.String("addr", "127.0.0.1:4300", "feed address ip:port (UDP port for QUIC)")
	id := flag.Uint("id", 0, "monitor id; 0 picks a random one")
	retry := flag.Duration("retry", 1*time.Second, "delay between reconnect attempts")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.GetLoggerConfigured(logger.ParseLevel(*level))
	log := logger.Component("liftwatch")

	monitorID := uint32(*id)
	for monitorID == 0 {
		monitorID = randU32()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log.Info().Uint32("monitor", monitorID).Str("addr", *addr).Msg("watching")
	for ctx.Err() == nil {
		if err := watch(ctx, *addr, monitorID, log); err != nil {
			log.Warn().Err(err).Msg("feed lost")
		}
		select {
		case <-ctx.Done():
		case <-time.After(*retry):
		}
	}
	log.Info().Msg("shutting down")
}

func watch(ctx context.Context, addr string, monitorID uint32, log zerolog.Logger) error {
	client, err := elevnetwork.DialFeed(ctx, addr, monitorID, nil)
	if err != nil {
		return err
	}
	defer client.Close()
	log.Info().Str("remote", client.RemoteAddr().String()).Msg("connected")

	var last uint64
	return client.Events(ctx, func(ev elevnetwork.FeedEvent) {
		if last != 0 && ev.Seq != last+1 {
			log.Warn().Uint64("from", last+1).Uint64("to", ev.Seq-1).Msg("missed events")
		}
		last = ev.Seq
		log.Info().Str("event", ev.String()).Send()
	})
}
