package common

import (
	"fmt"
	"strconv"
)

// Floor is a signed floor number. Floor 0 is home; no bounds are enforced.
type Floor int

func (f Floor) String() string { return strconv.Itoa(int(f)) }

// Distance returns the absolute number of floors between f and other. It is
// exact for any pair of floors; the unsigned subtraction cannot overflow.
func (f Floor) Distance(other Floor) uint64 {
	if f >= other {
		return uint64(f) - uint64(other)
	}
	return uint64(other) - uint64(f)
}

const HomeFloor Floor = 0

type ElevatorID uint8

func (id ElevatorID) String() string { return strconv.Itoa(int(id)) }

// ParseElevatorID parses a decimal id as used in routes and env lists.
func ParseElevatorID(s string) (ElevatorID, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid elevator id %q: %w", s, err)
	}
	return ElevatorID(n), nil
}

// LocationStatus is a point-in-time report of one elevator.
type LocationStatus struct {
	ID     ElevatorID `json:"id"`
	IsBusy bool       `json:"is_busy"`
	Floor  Floor      `json:"floor"`
}

func NewLocationStatus(id ElevatorID, isBusy bool, floor Floor) LocationStatus {
	return LocationStatus{ID: id, IsBusy: isBusy, Floor: floor}
}

type PassengerRequest struct {
	FromFloor Floor `json:"from_floor"`
	ToFloor   Floor `json:"to_floor"`
}
