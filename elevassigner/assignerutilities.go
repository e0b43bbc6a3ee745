package elevassigner

import (
	"sort"

	"liftsim/common"
	"liftsim/elevtracker"
)

// candidate is one elevator ranked against a pickup floor.
type candidate struct {
	id       common.ElevatorID
	busy     bool
	floor    common.Floor
	distance uint64
}

// rankCandidates orders the fleet by distance to floor, lowest id first on
// ties, so the choice never depends on map iteration order.
func rankCandidates(table elevtracker.Table, floor common.Floor) []candidate {
	out := make([]candidate, 0, len(table))
	for id, e := range table {
		out = append(out, candidate{
			id:       id,
			busy:     e.Busy,
			floor:    e.Floor,
			distance: e.Floor.Distance(floor),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].distance != out[j].distance {
			return out[i].distance < out[j].distance
		}
		return out[i].id < out[j].id
	})
	return out
}

// nearest returns the first idle candidate, or the first overall when the
// whole fleet is busy.
func nearest(ranked []candidate) (c candidate, idle bool) {
	for _, c := range ranked {
		if !c.busy {
			return c, true
		}
	}
	return ranked[0], false
}
