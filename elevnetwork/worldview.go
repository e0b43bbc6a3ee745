package elevnetwork

import (
	"encoding/json"
	"fmt"

	"liftsim/common"
	"liftsim/elevbus"
	"liftsim/elevfsm"
)

// FeedEvent is what monitors see of the bus. Seq is assigned by the server
// and increases by one per broadcast, so monitors can spot gaps.
type FeedEvent struct {
	Seq    uint64                 `json:"seq"`
	Kind   string                 `json:"kind"`
	Status *common.LocationStatus `json:"status,omitempty"`
	Target *common.ElevatorID     `json:"target,omitempty"`
	Item   *elevfsm.WorkItem      `json:"item,omitempty"`
}

// EventFromCommand maps a bus command to a feed event. Clock commands carry
// no state and are not forwarded.
func EventFromCommand(cmd elevbus.Command) (FeedEvent, bool) {
	ev := FeedEvent{Kind: cmd.Kind.String()}
	switch cmd.Kind {
	case elevbus.Register, elevbus.LocationReport:
		status := cmd.Status
		ev.Status = &status
	case elevbus.Assign:
		target, item := cmd.Target, cmd.Item
		ev.Target = &target
		ev.Item = &item
	default:
		return FeedEvent{}, false
	}
	return ev, true
}

func (ev FeedEvent) String() string {
	switch {
	case ev.Status != nil:
		return fmt.Sprintf("#%d %s lift=%d floor=%d busy=%t", ev.Seq, ev.Kind, ev.Status.ID, ev.Status.Floor, ev.Status.IsBusy)
	case ev.Target != nil && ev.Item != nil:
		return fmt.Sprintf("#%d %s lift=%d %s", ev.Seq, ev.Kind, *ev.Target, ev.Item)
	default:
		return fmt.Sprintf("#%d %s", ev.Seq, ev.Kind)
	}
}

func encodeFeedEvent(ev FeedEvent, frameSize int) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode feed event: %w", err)
	}
	if len(payload) > frameSize {
		return nil, fmt.Errorf("feed event too large: %d > %d", len(payload), frameSize)
	}
	return payload, nil
}

// DecodeFeedEvent parses one zero-padded frame.
func DecodeFeedEvent(frame []byte) (FeedEvent, error) {
	var ev FeedEvent
	if err := json.Unmarshal(common.TrimZeros(frame), &ev); err != nil {
		return FeedEvent{}, fmt.Errorf("decode feed event: %w", err)
	}
	return ev, nil
}
