// Package elevassigner decides which elevator serves a passenger request.
package elevassigner

import (
	"errors"

	"liftsim/common"
	"liftsim/elevbus"
	"liftsim/elevfsm"
	"liftsim/elevtracker"
)

var ErrNoElevatorsAvailable = errors.New("no elevators available")

// Decision is the outcome of one dispatch. Commands are ready to publish in
// order: pickup leg first, then drop-off leg.
type Decision struct {
	NoAction   bool
	ElevatorID common.ElevatorID
	// Idle is false when every elevator was busy and the nearest one was
	// taken anyway; its new legs queue behind its current work.
	Idle     bool
	Commands []elevbus.Command
}

// Assign picks the nearest idle elevator for req, falling back to the
// nearest elevator of any state. It never publishes anything itself.
func Assign(req common.PassengerRequest, table elevtracker.Table) (Decision, error) {
	if req.FromFloor == req.ToFloor {
		return Decision{NoAction: true}, nil
	}
	if len(table) == 0 {
		return Decision{}, ErrNoElevatorsAvailable
	}

	chosen, idle := nearest(rankCandidates(table, req.FromFloor))

	d := Decision{ElevatorID: chosen.id, Idle: idle}
	if pickup, ok := elevfsm.Leg(chosen.floor, req.FromFloor); ok {
		d.Commands = append(d.Commands, elevbus.AssignCommand(chosen.id, pickup))
	}
	if dropoff, ok := elevfsm.Leg(req.FromFloor, req.ToFloor); ok {
		d.Commands = append(d.Commands, elevbus.AssignCommand(chosen.id, dropoff))
	}
	return d, nil
}

// Legs returns the work items carried by the decision's commands.
func (d Decision) Legs() []elevfsm.WorkItem {
	legs := make([]elevfsm.WorkItem, 0, len(d.Commands))
	for _, cmd := range d.Commands {
		legs = append(legs, cmd.Item)
	}
	return legs
}
