package elevnetwork

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/quic-go/quic-go/http3"
	"github.com/rs/zerolog"

	"liftsim/common"
	"liftsim/elevbus"
	"liftsim/elevfsm"
)

const TEST_TIMEOUT = 3 * time.Second

func TestFixedFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("first"), []byte(`{"seq":2}`)}
	for _, p := range payloads {
		n, err := WriteFixedFrameQUIC(&buf, p, 64, 0)
		if err != nil || n != 64 {
			t.Fatalf("WriteFixedFrameQUIC() = %d, %v", n, err)
		}
	}

	var got [][]byte
	err := ReadFixedFramesQUIC(context.Background(), &buf, 64, func(frame []byte) error {
		got = append(got, common.TrimZeros(frame))
		return nil
	})
	if err != nil {
		t.Fatalf("ReadFixedFramesQUIC() = %v", err)
	}
	if len(got) != len(payloads) {
		t.Fatalf("read %d frames, expected %d", len(got), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Errorf("frame %d = %q, expected %q", i, got[i], payloads[i])
		}
	}
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	if _, err := WriteFixedFrameQUIC(io.Discard, make([]byte, 65), 64, 0); err == nil {
		t.Errorf("expected error for payload larger than frame")
	}
}

func TestHelloFrame(t *testing.T) {
	id, ok := decodeHelloFrame(encodeHelloFrame(7))
	if !ok || id != 7 {
		t.Errorf("decodeHelloFrame() = %d, %t, expected 7", id, ok)
	}
	if _, ok := decodeHelloFrame(encodeHelloFrame(0)); ok {
		t.Errorf("id 0 accepted")
	}
	if _, ok := decodeHelloFrame([]byte("GARBAGE!")); ok {
		t.Errorf("bad magic accepted")
	}
	if _, ok := decodeHelloFrame([]byte{0x48}); ok {
		t.Errorf("short frame accepted")
	}
}

func TestHelloExchange(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	accepted := make(chan uint32, 1)
	go func() {
		id, err := acceptHello(server, QUIC_FRAME_SIZE)
		if err != nil {
			t.Errorf("acceptHello() = %v", err)
		}
		accepted <- id
	}()

	if err := exchangeHello(client, 42, QUIC_FRAME_SIZE); err != nil {
		t.Fatalf("exchangeHello() = %v", err)
	}
	if id := <-accepted; id != 42 {
		t.Errorf("server saw monitor %d, expected 42", id)
	}
}

func TestEventFromCommand(t *testing.T) {
	if _, ok := EventFromCommand(elevbus.TickCommand()); ok {
		t.Errorf("Tick forwarded")
	}
	if _, ok := EventFromCommand(elevbus.RequestLocationCommand()); ok {
		t.Errorf("RequestLocation forwarded")
	}

	ev, ok := EventFromCommand(elevbus.ReportCommand(common.NewLocationStatus(1, true, -2)))
	if !ok || ev.Status == nil || ev.Status.Floor != -2 || !ev.Status.IsBusy || ev.Target != nil {
		t.Errorf("report event = %+v, %t", ev, ok)
	}

	ev, ok = EventFromCommand(elevbus.AssignCommand(0, elevfsm.Down(5, 0)))
	if !ok || ev.Target == nil || *ev.Target != 0 || ev.Item == nil || *ev.Item != elevfsm.Down(5, 0) {
		t.Errorf("assign event = %+v, %t", ev, ok)
	}
}

func TestFeedEventEncoding(t *testing.T) {
	ev, _ := EventFromCommand(elevbus.AssignCommand(3, elevfsm.Up(0, 4)))
	ev.Seq = 9
	payload, err := encodeFeedEvent(ev, QUIC_FRAME_SIZE)
	if err != nil {
		t.Fatalf("encodeFeedEvent() = %v", err)
	}
	frame := make([]byte, QUIC_FRAME_SIZE)
	copy(frame, payload)

	got, err := DecodeFeedEvent(frame)
	if err != nil {
		t.Fatalf("DecodeFeedEvent() = %v", err)
	}
	if got.Seq != 9 || got.Kind != "Assign" || *got.Target != 3 || *got.Item != elevfsm.Up(0, 4) {
		t.Errorf("DecodeFeedEvent() = %s", got)
	}

	if _, err := DecodeFeedEvent([]byte("not json")); err == nil {
		t.Errorf("expected decode error")
	}
}

func TestFeedLoopback(t *testing.T) {
	srv, err := ListenFeed("127.0.0.1:0", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("ListenFeed() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ctx); err != nil {
			t.Errorf("Serve() = %v", err)
		}
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, TEST_TIMEOUT)
	defer dialCancel()
	client, err := DialFeed(dialCtx, srv.Addr().String(), 5, nil)
	if err != nil {
		t.Fatalf("DialFeed() = %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(TEST_TIMEOUT)
	for len(srv.Monitors()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ids := srv.Monitors(); len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("Monitors() = %v, expected [5]", ids)
	}

	events := make(chan FeedEvent, 4)
	eventsCtx, eventsCancel := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.Events(eventsCtx, func(ev FeedEvent) { events <- ev })
	}()
	defer eventsCancel()

	for _, cmd := range []elevbus.Command{
		elevbus.RegisterCommand(common.NewLocationStatus(1, false, 10)),
		elevbus.AssignCommand(1, elevfsm.Down(10, 5)),
	} {
		ev, _ := EventFromCommand(cmd)
		if n, err := srv.Broadcast(ev); err != nil || n != 1 {
			t.Fatalf("Broadcast() = %d, %v", n, err)
		}
	}

	for i, expected := range []string{"Register", "Assign"} {
		select {
		case ev := <-events:
			if ev.Kind != expected || ev.Seq != uint64(i+1) {
				t.Errorf("event %d = %s, expected %s with seq %d", i, ev, expected, i+1)
			}
		case <-time.After(TEST_TIMEOUT):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}
}

func TestReadFramesReturnsHandlerError(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"a", "b", "c"} {
		WriteFixedFrameQUIC(&buf, []byte(p), 16, 0)
	}

	boom := errors.New("boom")
	calls := 0
	err := ReadFixedFramesQUIC(context.Background(), bytes.NewReader(buf.Bytes()), 16, func([]byte) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || calls != 2 {
		t.Errorf("handler error: err = %v, calls = %d, expected boom and 2", err, calls)
	}
}

func TestFeedDropsMonitorSendingAfterHello(t *testing.T) {
	srv, err := ListenFeed("127.0.0.1:0", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("ListenFeed() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Serve(ctx)
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, TEST_TIMEOUT)
	defer dialCancel()
	conn, st, err := DialQUIC(dialCtx, srv.Addr().String(), DefaultQUICConfig(), TEST_TIMEOUT)
	if err != nil {
		t.Fatalf("DialQUIC() = %v", err)
	}
	defer CloseQUIC(conn, st, "test done")
	if err := exchangeHello(st, 9, QUIC_FRAME_SIZE); err != nil {
		t.Fatalf("exchangeHello() = %v", err)
	}

	waitMonitors := func(expected int) []uint32 {
		deadline := time.Now().Add(TEST_TIMEOUT)
		for len(srv.Monitors()) != expected && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		return srv.Monitors()
	}
	if ids := waitMonitors(1); len(ids) != 1 || ids[0] != 9 {
		t.Fatalf("Monitors() = %v, expected [9]", ids)
	}

	if _, err := WriteFixedFrameQUIC(st, []byte("hi"), QUIC_FRAME_SIZE, time.Second); err != nil {
		t.Fatalf("WriteFixedFrameQUIC() = %v", err)
	}
	if ids := waitMonitors(0); len(ids) != 0 {
		t.Fatalf("Monitors() = %v after stray frame, expected none", ids)
	}

	select {
	case <-conn.Context().Done():
	case <-time.After(TEST_TIMEOUT):
		t.Errorf("server did not close the connection")
	}
}

func TestDialFeedRejectsZeroID(t *testing.T) {
	if _, err := DialFeed(context.Background(), "127.0.0.1:1", 0, nil); err == nil {
		t.Errorf("expected error for monitor id 0")
	}
}

func TestServeHTTP3(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() = %v", err)
	}
	addr := pc.LocalAddr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Ok"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveHTTP3(ctx, pc, mux) }()

	tr := &http3.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	defer tr.Close()
	client := &http.Client{Transport: tr, Timeout: TEST_TIMEOUT}

	resp, err := client.Get("https://" + addr + "/status")
	if err != nil {
		cancel()
		t.Fatalf("GET /status = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != `{"status":"Ok"}` {
		t.Errorf("GET /status = %d %s", resp.StatusCode, body)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("serveHTTP3() = %v", err)
	}
}
