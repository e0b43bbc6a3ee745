package elevbus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Clock is the only time source. It alternates Tick and RequestLocation so
// every elevator finishes its step before it is asked to report.
type Clock struct {
	Bus            *Bus
	TickInterval   time.Duration
	ReportInterval time.Duration
	Log            zerolog.Logger
}

// Run publishes until ctx is cancelled. A failed publish stops the clock and
// is returned, since time must not stop silently.
func (c *Clock) Run(ctx context.Context) error {
	timer := time.NewTimer(c.TickInterval)
	defer timer.Stop()

	next := TickCommand()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := c.Bus.Publish(next); err != nil {
			return fmt.Errorf("clock publish %s: %w", next.Kind, err)
		}
		c.Log.Trace().Str("cmd", next.Kind.String()).Msg("tick_tock")

		if next.Kind == Tick {
			next = RequestLocationCommand()
			timer.Reset(c.ReportInterval)
		} else {
			next = TickCommand()
			timer.Reset(c.TickInterval)
		}
	}
}
