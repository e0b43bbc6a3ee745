package elevfsm

import (
	"fmt"

	"liftsim/common"
)

// enums

type MovementKind int

const (
	Idle MovementKind = iota
	ReturningHome
	MovingUp
	MovingDown
	DoorOpen
	DoorClosing
)

func (k MovementKind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case ReturningHome:
		return "ReturningHome"
	case MovingUp:
		return "MovingUp"
	case MovingDown:
		return "MovingDown"
	case DoorOpen:
		return "DoorOpen"
	case DoorClosing:
		return "DoorClosing"
	default:
		return "UNDEFINED"
	}
}

func (k MovementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MovementKind) UnmarshalText(b []byte) error {
	for kind := Idle; kind <= DoorClosing; kind++ {
		if kind.String() == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown movement kind %q", b)
}

// Movement is the state of one elevator. From and To are only meaningful for
// MovingUp and MovingDown; From is informational, To is the target floor.
//
// A Movement of kind ReturningHome, MovingUp or MovingDown doubles as a work
// item: one leg of travel waiting in an elevator's queue.
type Movement struct {
	Kind MovementKind `json:"kind"`
	From common.Floor `json:"from"`
	To   common.Floor `json:"to"`
}

// WorkItem is a Movement used as a queued leg.
type WorkItem = Movement

func Stay() Movement { return Movement{Kind: Idle} }
func ReturnHome() Movement { return Movement{Kind: ReturningHome} }

func Up(from, to common.Floor) Movement {
	return Movement{Kind: MovingUp, From: from, To: to}
}

func Down(from, to common.Floor) Movement {
	return Movement{Kind: MovingDown, From: from, To: to}
}

// Leg returns the directional work item that rides from one floor to another.
// ok is false when the floors are equal and there is nothing to ride.
func Leg(from, to common.Floor) (item WorkItem, ok bool) {
	switch {
	case to > from:
		return Up(from, to), true
	case to < from:
		return Down(from, to), true
	default:
		return Movement{}, false
	}
}

func (m Movement) IsDirectional() bool {
	return m.Kind == MovingUp || m.Kind == MovingDown
}

// IsWork reports whether m may sit in a work queue.
func (m Movement) IsWork() bool {
	return m.IsDirectional() || m.Kind == ReturningHome
}

// Origin is where a leg starts. ReturningHome has no fixed origin.
func (m Movement) Origin() common.Floor { return m.From }

// Target is where a leg ends. ReturningHome always ends at home.
func (m Movement) Target() common.Floor {
	if m.Kind == ReturningHome {
		return common.HomeFloor
	}
	return m.To
}

// normalized fixes a directional item whose kind disagrees with its floors.
func (m Movement) normalized() Movement {
	if !m.IsDirectional() {
		return m
	}
	if m.To > m.From {
		m.Kind = MovingUp
	} else if m.To < m.From {
		m.Kind = MovingDown
	}
	return m
}

func (m Movement) String() string {
	if m.IsDirectional() {
		return fmt.Sprintf("%s(%d->%d)", m.Kind, m.From, m.To)
	}
	return m.Kind.String()
}
