// Package elevsystem wires the elevator actors, the bus and the status
// tracker together and exposes the small command/query surface used by the
// HTTP shell.
package elevsystem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"liftsim/common"
	"liftsim/elevassigner"
	"liftsim/elevbus"
	"liftsim/elevfsm"
	"liftsim/elevtracker"
)

var (
	ErrElevatorExists = errors.New("elevator already registered")
	ErrNotStarted     = errors.New("system not started")
	ErrBusPublish     = errors.New("bus publish failed")

	ErrNoElevatorsAvailable = elevassigner.ErrNoElevatorsAvailable
	ErrUnknownElevator      = elevtracker.ErrUnknownElevator
)

// Dispatch describes what a passenger request turned into.
type Dispatch struct {
	RequestID  uuid.UUID
	NoAction   bool
	ElevatorID common.ElevatorID
	Idle       bool
	Legs       []elevfsm.WorkItem
}

type System struct {
	cfg     common.Config
	bus     *elevbus.Bus
	tracker *elevtracker.Tracker
	log     zerolog.Logger

	mu    sync.Mutex
	ctx   context.Context
	lifts map[common.ElevatorID]bool

	wg sync.WaitGroup
}

func New(cfg common.Config, log zerolog.Logger) *System {
	return &System{
		cfg:     cfg,
		bus:     elevbus.New(cfg.BusCapacity),
		tracker: elevtracker.New(log.With().Str("component", "tracker").Logger()),
		log:     log,
		lifts:   make(map[common.ElevatorID]bool),
	}
}

// Start launches the status tracker and the configured fleet. Every thread
// stops when ctx is cancelled; Wait blocks until they have.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("system already started")
	}
	s.ctx = ctx
	s.mu.Unlock()

	trackerSub := s.bus.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tracker.Run(ctx, trackerSub)
	}()

	for _, id := range s.cfg.Elevators {
		if err := s.RegisterElevator(id); err != nil {
			return err
		}
	}
	s.log.Info().
		Int("bus_capacity", s.bus.Capacity()).
		Int("subscribers", s.bus.Subscribers()).
		Msg("fleet started")
	return nil
}

func (s *System) Wait() { s.wg.Wait() }

// Shutdown closes the bus and waits for every thread to drain it and exit.
func (s *System) Shutdown() {
	s.bus.Close()
	s.wg.Wait()
}

func (s *System) Bus() *elevbus.Bus { return s.bus }

// Clock returns a clock driving this system's bus at the configured pace.
func (s *System) Clock() *elevbus.Clock {
	return &elevbus.Clock{
		Bus:            s.bus,
		TickInterval:   s.cfg.TickInterval,
		ReportInterval: s.cfg.ReportInterval,
		Log:            s.log.With().Str("component", "clock").Logger(),
	}
}

// Subscribe opens a bus subscription for observers such as the status feed.
func (s *System) Subscribe() *elevbus.Subscription { return s.bus.Subscribe() }

func (s *System) Health() string { return "Ok" }

// RegisterElevator starts a new elevator actor. The actor registers itself
// with the tracker over the bus, so it shows up in status queries shortly
// after this returns.
func (s *System) RegisterElevator(id common.ElevatorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return ErrNotStarted
	}
	if s.lifts[id] {
		return fmt.Errorf("elevator %d: %w", id, ErrElevatorExists)
	}
	s.lifts[id] = true

	sub := s.bus.Subscribe()
	log := s.log.With().Str("component", "lift").Uint8("lift", uint8(id)).Logger()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fsmThread(s.ctx, s.cfg, id, s.bus, sub, log)
	}()
	return nil
}

// SubmitRequest dispatches one passenger request against a snapshot of the
// fleet and publishes the resulting legs. Publish failures are not retried.
func (s *System) SubmitRequest(ctx context.Context, req common.PassengerRequest) (Dispatch, error) {
	d := Dispatch{RequestID: uuid.New()}
	log := s.log.With().
		Str("component", "dispatch").
		Str("request", d.RequestID.String()).
		Logger()
	log.Info().Int("from", int(req.FromFloor)).Int("to", int(req.ToFloor)).Msg("passenger event received")

	decision, err := elevassigner.Assign(req, s.tracker.Snapshot())
	if err != nil {
		log.Warn().Err(err).Msg("unable to dispatch")
		return d, err
	}
	if decision.NoAction {
		d.NoAction = true
		log.Info().Msg("no action required")
		return d, nil
	}

	d.ElevatorID = decision.ElevatorID
	d.Idle = decision.Idle
	d.Legs = decision.Legs()
	if decision.Idle {
		log.Info().Uint8("lift", uint8(d.ElevatorID)).Msg("found idle lift to assign work to")
	} else {
		log.Info().Uint8("lift", uint8(d.ElevatorID)).Msg("found nearest lift to assign work to")
	}

	for _, cmd := range decision.Commands {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		if err := s.bus.Publish(cmd); err != nil {
			log.Error().Err(err).Str("cmd", cmd.String()).Msg("unable to notify lift")
			return d, fmt.Errorf("%w: %w", ErrBusPublish, err)
		}
	}
	return d, nil
}

// FleetStatus lists every registered elevator, ordered by id.
func (s *System) FleetStatus() []common.LocationStatus {
	return s.tracker.List()
}

func (s *System) ElevatorStatus(id common.ElevatorID) (elevtracker.Entry, error) {
	return s.tracker.Status(id)
}
