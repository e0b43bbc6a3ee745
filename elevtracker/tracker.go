// Package elevtracker holds the authoritative view of where every elevator
// is. It is the only writer of the fleet status table; everything else reads
// point-in-time copies.
package elevtracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"liftsim/common"
	"liftsim/elevbus"
)

var ErrUnknownElevator = errors.New("unknown elevator")

// Entry is the last known state of one elevator.
type Entry struct {
	Busy  bool         `json:"is_busy"`
	Floor common.Floor `json:"current_floor"`
}

// Table maps elevator id to its last known entry. A missing id means the
// elevator never registered.
type Table map[common.ElevatorID]Entry

type Tracker struct {
	mu    sync.Mutex
	table Table
	log   zerolog.Logger
}

func New(log zerolog.Logger) *Tracker {
	return &Tracker{table: make(Table), log: log}
}

// Register inserts status if its id is not known yet. The first
// registration wins; it reports whether the entry was added.
func (t *Tracker) Register(status common.LocationStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.table[status.ID]; ok {
		return false
	}
	t.table[status.ID] = Entry{Busy: status.IsBusy, Floor: status.Floor}
	return true
}

// Report overwrites the entry of an already registered elevator.
func (t *Tracker) Report(status common.LocationStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.table[status.ID]; !ok {
		return fmt.Errorf("report from elevator %d: %w", status.ID, ErrUnknownElevator)
	}
	t.table[status.ID] = Entry{Busy: status.IsBusy, Floor: status.Floor}
	return nil
}

// Apply folds one bus command into the table. Commands other than Register
// and LocationReport are ignored.
func (t *Tracker) Apply(cmd elevbus.Command) error {
	switch cmd.Kind {
	case elevbus.Register:
		if t.Register(cmd.Status) {
			t.log.Info().Uint8("lift", uint8(cmd.Status.ID)).Msg("registering lift")
		} else {
			t.log.Debug().Uint8("lift", uint8(cmd.Status.ID)).Msg("lift already registered")
		}
	case elevbus.LocationReport:
		if err := t.Report(cmd.Status); err != nil {
			return err
		}
		t.log.Debug().
			Uint8("lift", uint8(cmd.Status.ID)).
			Int("floor", int(cmd.Status.Floor)).
			Bool("busy", cmd.Status.IsBusy).
			Msg("updating status")
	}
	return nil
}

// Snapshot returns a deep copy of the table taken under the lock.
func (t *Tracker) Snapshot() Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, err := common.DeepCopy(t.table)
	if err != nil {
		t.log.Error().Err(err).Msg("snapshot copy failed")
		snap = make(Table, len(t.table))
		for id, e := range t.table {
			snap[id] = e
		}
	}
	if snap == nil {
		snap = make(Table)
	}
	return snap
}

func (t *Tracker) Status(id common.ElevatorID) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.table[id]
	if !ok {
		return Entry{}, fmt.Errorf("elevator %d: %w", id, ErrUnknownElevator)
	}
	return e, nil
}

// List returns every entry as a status value, ordered by id.
func (t *Tracker) List() []common.LocationStatus {
	return t.Snapshot().Statuses()
}

func (tb Table) Statuses() []common.LocationStatus {
	out := make([]common.LocationStatus, 0, len(tb))
	for id, e := range tb {
		out = append(out, common.NewLocationStatus(id, e.Busy, e.Floor))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run consumes sub until ctx is cancelled or the bus closes. Missed
// commands are logged and skipped; the table only needs to be eventually
// consistent.
func (t *Tracker) Run(ctx context.Context, sub *elevbus.Subscription) {
	defer sub.Close()
	for {
		cmd, err := sub.Recv(ctx)
		var lag *elevbus.LagError
		switch {
		case err == nil:
		case errors.As(err, &lag):
			t.log.Warn().Uint64("missed", lag.Missed).Msg("status tracker lagged behind the bus")
			continue
		default:
			if ctx.Err() == nil && !errors.Is(err, elevbus.ErrClosed) {
				t.log.Error().Err(err).Msg("status tracker stopped")
			}
			return
		}

		if err := t.Apply(cmd); err != nil {
			t.log.Warn().Err(err).Msg("dropping status report")
		}
	}
}
