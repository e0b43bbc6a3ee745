package elevbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"liftsim/common"
	"liftsim/elevfsm"
)

const TEST_DELAY = 100 * time.Millisecond

func recvWithin(t *testing.T, sub *Subscription, d time.Duration) (Command, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sub.Recv(ctx)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := New(4)
	if err := bus.Publish(TickCommand()); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("Publish() = %v, expected ErrNoSubscribers", err)
	}

	sub := bus.Subscribe()
	sub.Close()
	if err := bus.Publish(TickCommand()); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("Publish() after last Close = %v, expected ErrNoSubscribers", err)
	}
}

func TestEverySubscriberSeesEveryCommand(t *testing.T) {
	bus := New(8)
	a, b := bus.Subscribe(), bus.Subscribe()

	sent := []Command{
		TickCommand(),
		RequestLocationCommand(),
		AssignCommand(2, elevfsm.Up(0, 4)),
		ReportCommand(common.NewLocationStatus(2, true, 1)),
	}
	for _, cmd := range sent {
		if err := bus.Publish(cmd); err != nil {
			t.Fatalf("Publish(%v) = %v", cmd, err)
		}
	}

	for _, sub := range []*Subscription{a, b} {
		for i, expected := range sent {
			got, err := recvWithin(t, sub, TEST_DELAY)
			if err != nil {
				t.Fatalf("Recv() #%d = %v", i, err)
			}
			if got != expected {
				t.Errorf("Recv() #%d = %v, expected %v", i, got, expected)
			}
		}
	}
}

func TestSubscriberOnlySeesLaterCommands(t *testing.T) {
	bus := New(4)
	early := bus.Subscribe()
	bus.Publish(TickCommand())

	late := bus.Subscribe()
	bus.Publish(RequestLocationCommand())

	got, err := recvWithin(t, late, TEST_DELAY)
	if err != nil || got.Kind != RequestLocation {
		t.Errorf("late Recv() = %v, %v, expected RequestLocation", got, err)
	}
	got, err = recvWithin(t, early, TEST_DELAY)
	if err != nil || got.Kind != Tick {
		t.Errorf("early Recv() = %v, %v, expected Tick", got, err)
	}
}

func TestSlowSubscriberLags(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe()

	for i := 0; i < 10; i++ {
		bus.Publish(ReportCommand(common.NewLocationStatus(common.ElevatorID(i), false, 0)))
	}

	_, err := recvWithin(t, sub, TEST_DELAY)
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("Recv() = %v, expected *LagError", err)
	}
	if lag.Missed != 6 {
		t.Errorf("Missed = %d, expected 6", lag.Missed)
	}

	// resumes at the oldest retained command
	for i := 6; i < 10; i++ {
		got, err := recvWithin(t, sub, TEST_DELAY)
		if err != nil {
			t.Fatalf("Recv() after lag = %v", err)
		}
		if got.Status.ID != common.ElevatorID(i) {
			t.Errorf("Recv() = %v, expected report from %d", got, i)
		}
	}
}

func TestRecvBlocksUntilPublish(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe()

	done := make(chan Command, 1)
	go func() {
		cmd, err := recvWithin(t, sub, time.Second)
		if err == nil {
			done <- cmd
		}
		close(done)
	}()

	time.Sleep(TEST_DELAY / 2)
	bus.Publish(TickCommand())

	cmd, ok := <-done
	if !ok || cmd.Kind != Tick {
		t.Errorf("blocked Recv() = %v, %v, expected Tick", cmd, ok)
	}
}

func TestRecvHonoursContext(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sub.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Recv() = %v, expected context.Canceled", err)
	}
}

func TestCloseDrainsThenStops(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe()
	bus.Publish(TickCommand())
	bus.Close()

	if got, err := recvWithin(t, sub, TEST_DELAY); err != nil || got.Kind != Tick {
		t.Errorf("Recv() = %v, %v, expected buffered Tick", got, err)
	}
	if _, err := recvWithin(t, sub, TEST_DELAY); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv() = %v, expected ErrClosed", err)
	}
	if err := bus.Publish(TickCommand()); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() = %v, expected ErrClosed", err)
	}
}

func TestPerPublisherOrder(t *testing.T) {
	bus := New(256)
	sub := bus.Subscribe()

	const perPublisher = 50
	var wg sync.WaitGroup
	for p := 0; p < 2; p++ {
		wg.Add(1)
		go func(id common.ElevatorID) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish(ReportCommand(common.NewLocationStatus(id, false, common.Floor(i))))
			}
		}(common.ElevatorID(p))
	}
	wg.Wait()

	last := map[common.ElevatorID]common.Floor{0: -1, 1: -1}
	for i := 0; i < 2*perPublisher; i++ {
		cmd, err := recvWithin(t, sub, TEST_DELAY)
		if err != nil {
			t.Fatalf("Recv() = %v", err)
		}
		if cmd.Status.Floor <= last[cmd.Status.ID] {
			t.Fatalf("publisher %d out of order: %d after %d", cmd.Status.ID, cmd.Status.Floor, last[cmd.Status.ID])
		}
		last[cmd.Status.ID] = cmd.Status.Floor
	}
}

func TestClockAlternates(t *testing.T) {
	bus := New(1024)
	sub := bus.Subscribe()
	clock := &Clock{Bus: bus, TickInterval: time.Millisecond, ReportInterval: time.Millisecond, Log: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := clock.Run(ctx); err != nil {
			t.Errorf("Run() = %v", err)
		}
	}()

	expected := []CommandKind{Tick, RequestLocation, Tick, RequestLocation}
	for i, kind := range expected {
		cmd, err := recvWithin(t, sub, time.Second)
		if err != nil {
			t.Fatalf("Recv() #%d = %v", i, err)
		}
		if cmd.Kind != kind {
			t.Errorf("command #%d = %v, expected %v", i, cmd.Kind, kind)
		}
	}
}

func TestClockFailsWithoutSubscribers(t *testing.T) {
	clock := &Clock{Bus: New(4), TickInterval: time.Millisecond, ReportInterval: time.Millisecond, Log: zerolog.Nop()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.Run(ctx); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("Run() = %v, expected ErrNoSubscribers", err)
	}
}
