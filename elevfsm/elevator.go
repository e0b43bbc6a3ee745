package elevfsm

import (
	"github.com/rs/zerolog"

	"liftsim/common"
)

// Elevator is the physical state of one lift. It is owned by exactly one
// actor and advanced synchronously, one unit of work per Tick.
type Elevator struct {
	id       common.ElevatorID
	floor    common.Floor
	movement Movement
	work     *WorkQueue

	log zerolog.Logger
}

func NewElevator(id common.ElevatorID, startingFloor common.Floor, log zerolog.Logger) *Elevator {
	return &Elevator{
		id:       id,
		floor:    startingFloor,
		movement: Stay(),
		work:     NewWorkQueue(),
		log:      log,
	}
}

func (e *Elevator) ID() common.ElevatorID { return e.id }
func (e *Elevator) Floor() common.Floor { return e.floor }
func (e *Elevator) Movement() Movement { return e.movement }
func (e *Elevator) Pending() []WorkItem { return e.work.Items() }
func (e *Elevator) IsBusy() bool { return e.movement.Kind != Idle }
func (e *Elevator) QueueLen() int { return e.work.Len() }

// LocationStatus snapshots the elevator for the status tracker.
func (e *Elevator) LocationStatus() common.LocationStatus {
	return common.NewLocationStatus(e.id, e.IsBusy(), e.floor)
}

// AddRequest appends a leg to the work queue. Anything that is not a work
// item is dropped.
func (e *Elevator) AddRequest(w WorkItem) {
	if !w.IsWork() {
		e.log.Debug().Str("item", w.String()).Msg("ignoring non-work request")
		return
	}
	e.work.PushBack(w.normalized())
}

// Tick advances the state machine by exactly one step: one floor of travel
// or one phase transition, never both.
func (e *Elevator) Tick() {
	m := e.movement
	switch m.Kind {
	case ReturningHome:
		switch {
		case e.floor > common.HomeFloor:
			e.log.Info().Msg("returning home (downwards)")
			e.movement = Down(e.floor, common.HomeFloor)
		case e.floor < common.HomeFloor:
			e.log.Info().Msg("returning home (upwards)")
			e.movement = Up(e.floor, common.HomeFloor)
		default:
			e.movement = Movement{Kind: DoorOpen}
		}

	case MovingDown:
		switch {
		case e.floor > m.To:
			e.floor--
			e.log.Debug().Int("floor", int(e.floor)).Msg("moving down")
		case e.floor == m.To:
			e.log.Info().Int("floor", int(e.floor)).Msg("opening doors")
			e.movement = Movement{Kind: DoorOpen}
		default:
			e.movement = Up(m.From, m.To)
		}

	case MovingUp:
		switch {
		case e.floor < m.To:
			e.floor++
			e.log.Debug().Int("floor", int(e.floor)).Msg("moving up")
		case e.floor == m.To:
			e.log.Info().Int("floor", int(e.floor)).Msg("opening doors")
			e.movement = Movement{Kind: DoorOpen}
		default:
			e.movement = Down(m.From, m.To)
		}

	case DoorOpen:
		e.log.Debug().Msg("closing doors")
		e.movement = Movement{Kind: DoorClosing}

	case DoorClosing:
		e.movement = Stay()

	case Idle:
		w, ok := e.work.PopFront()
		if !ok {
			return
		}
		e.startWork(w)
	}
}

// startWork adopts w, or heads for w's origin first when the elevator is
// somewhere else. w then waits at the front of the queue.
func (e *Elevator) startWork(w WorkItem) {
	if w.Kind == ReturningHome || e.floor == w.Origin() || e.floor == w.Target() {
		e.log.Info().Str("request", w.String()).Msg("starting request")
		e.movement = w
		return
	}

	e.work.PushFront(w)
	toOrigin, _ := Leg(e.floor, w.Origin())
	e.log.Info().
		Str("request", w.String()).
		Int("origin", int(w.Origin())).
		Msg("travelling to request origin")
	e.movement = toOrigin
}
