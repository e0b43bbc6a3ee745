package elevsystem

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"liftsim/common"
	"liftsim/elevbus"
	"liftsim/elevfsm"
)

// fsmThread is the actor that owns one elevator. sub must be subscribed
// before the thread starts so no command published after registration is
// missed. The elevator is only ever touched from this goroutine.
func fsmThread(
	ctx context.Context,
	cfg common.Config,
	id common.ElevatorID,
	bus *elevbus.Bus,
	sub *elevbus.Subscription,
	log zerolog.Logger,
) {
	defer sub.Close()

	lift := elevfsm.NewElevator(id, cfg.StartFloor, log)
	if cfg.ReturnHomeOnStart {
		lift.AddRequest(elevfsm.ReturnHome())
	}
	log.Info().Int("floor", int(cfg.StartFloor)).Msg("creating new lift")

	if err := bus.Publish(elevbus.RegisterCommand(lift.LocationStatus())); err != nil {
		log.Error().Err(err).Msg("unable to register")
	}

	for {
		cmd, err := sub.Recv(ctx)
		var lag *elevbus.LagError
		switch {
		case err == nil:
		case errors.As(err, &lag):
			log.Warn().Uint64("missed", lag.Missed).Msg("lift lagged behind the bus")
			continue
		default:
			return
		}

		switch cmd.Kind {
		case elevbus.Tick:
			lift.Tick()

		case elevbus.RequestLocation:
			if err := bus.Publish(elevbus.ReportCommand(lift.LocationStatus())); err != nil {
				log.Error().Err(err).Msg("unable to send status")
			}

		case elevbus.Assign:
			if cmd.Target == id {
				log.Info().Str("request", cmd.Item.String()).Int("queued", lift.QueueLen()).Msg("work assigned")
				lift.AddRequest(cmd.Item)
			}
		}
	}
}
