package elevbus

import (
	"fmt"

	"liftsim/common"
	"liftsim/elevfsm"
)

type CommandKind int

const (
	Tick CommandKind = iota
	RequestLocation
	LocationReport
	Register
	Assign
)

func (k CommandKind) String() string {
	switch k {
	case Tick:
		return "Tick"
	case RequestLocation:
		return "RequestLocation"
	case LocationReport:
		return "LocationReport"
	case Register:
		return "Register"
	case Assign:
		return "Assign"
	default:
		return "UnknownCommand"
	}
}

// Command is the tagged value carried on the bus. Status is set for
// LocationReport and Register; Target and Item are set for Assign.
type Command struct {
	Kind   CommandKind
	Status common.LocationStatus
	Target common.ElevatorID
	Item   elevfsm.WorkItem
}

func TickCommand() Command { return Command{Kind: Tick} }
func RequestLocationCommand() Command { return Command{Kind: RequestLocation} }

func ReportCommand(status common.LocationStatus) Command {
	return Command{Kind: LocationReport, Status: status}
}

func RegisterCommand(status common.LocationStatus) Command {
	return Command{Kind: Register, Status: status}
}

func AssignCommand(target common.ElevatorID, item elevfsm.WorkItem) Command {
	return Command{Kind: Assign, Target: target, Item: item}
}

func (c Command) String() string {
	switch c.Kind {
	case LocationReport, Register:
		return fmt.Sprintf("%s(%d busy=%t floor=%d)", c.Kind, c.Status.ID, c.Status.IsBusy, c.Status.Floor)
	case Assign:
		return fmt.Sprintf("Assign(%d, %s)", c.Target, c.Item)
	default:
		return c.Kind.String()
	}
}
