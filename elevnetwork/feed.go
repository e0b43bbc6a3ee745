package elevnetwork

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"
	"github.com/rs/zerolog"
)

const (
	acceptStreamTimeout = 3 * time.Second
	feedWriteTimeout    = 500 * time.Millisecond
)

var errUnexpectedFrame = errors.New("unexpected frame from monitor")

type monitor struct {
	id     uint32
	conn   *quic.Conn
	stream *quic.Stream
}

// FeedServer pushes fleet events to connected monitors. Monitors never send
// anything after the hello; one that does is disconnected.
type FeedServer struct {
	ln        *quic.Listener
	frameSize int
	log       zerolog.Logger

	sendMu sync.Mutex
	seq    uint64

	mu       sync.RWMutex
	monitors map[uint32]*monitor
}

func ListenFeed(listenAddr string, quicConf *quic.Config, log zerolog.Logger) (*FeedServer, error) {
	tlsConf, err := NewQUICServerTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("server tls config: %w", err)
	}
	if quicConf == nil {
		quicConf = DefaultQUICConfig()
	}

	ln, err := quic.ListenAddr(listenAddr, tlsConf, quicConf)
	if err != nil {
		return nil, fmt.Errorf("quic listen: %w", err)
	}
	return &FeedServer{
		ln:        ln,
		frameSize: QUIC_FRAME_SIZE,
		log:       log,
		monitors:  make(map[uint32]*monitor),
	}, nil
}

func (fs *FeedServer) Addr() net.Addr { return fs.ln.Addr() }

// Serve accepts monitors until ctx is cancelled, then closes the listener
// and every monitor connection.
func (fs *FeedServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		fs.ln.Close()
	}()
	defer fs.closeAll("shutdown")

	for {
		conn, err := fs.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("quic accept: %w", err)
		}
		go fs.handleIncomingConn(ctx, conn)
	}
}

func (fs *FeedServer) handleIncomingConn(ctx context.Context, conn *quic.Conn) {
	stCtx, cancel := context.WithTimeout(ctx, acceptStreamTimeout)
	st, err := conn.AcceptStream(stCtx)
	cancel()
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return
	}

	id, err := acceptHello(st, fs.frameSize)
	if err != nil {
		fs.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("monitor hello failed")
		CloseQUIC(conn, st, "hello failed")
		return
	}

	fs.addOrReplace(&monitor{id: id, conn: conn, stream: st})
	fs.log.Info().Uint32("monitor", id).Str("remote", conn.RemoteAddr().String()).Msg("monitor connected")

	err = ReadFixedFramesQUIC(ctx, st, fs.frameSize, func([]byte) error {
		return errUnexpectedFrame
	})
	switch {
	case errors.Is(err, errUnexpectedFrame):
		fs.log.Warn().Uint32("monitor", id).Msg("monitor sent data after hello; closing")
		CloseQUIC(conn, st, "unexpected frame")
	case err == nil:
		// Half-closed by the monitor; keep pushing until the session ends.
		<-conn.Context().Done()
	default:
		fs.log.Debug().Err(err).Uint32("monitor", id).Msg("monitor stream ended")
	}
	if fs.removeByConn(conn) {
		fs.log.Info().Uint32("monitor", id).Msg("monitor disconnected")
	}
}

// addOrReplace keeps the newest connection for a monitor id; a reconnecting
// monitor replaces its stale session.
func (fs *FeedServer) addOrReplace(m *monitor) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if existing := fs.monitors[m.id]; existing != nil {
		CloseQUIC(existing.conn, existing.stream, "replaced")
	}
	fs.monitors[m.id] = m
}

func (fs *FeedServer) removeByConn(conn *quic.Conn) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for id, m := range fs.monitors {
		if m.conn == conn {
			delete(fs.monitors, id)
			return true
		}
	}
	return false
}

func (fs *FeedServer) closeAll(reason string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for id, m := range fs.monitors {
		CloseQUIC(m.conn, m.stream, reason)
		delete(fs.monitors, id)
	}
}

// Monitors returns the connected monitor ids in ascending order.
func (fs *FeedServer) Monitors() []uint32 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]uint32, 0, len(fs.monitors))
	for id := range fs.monitors {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Broadcast stamps ev with the next sequence number and writes it to every
// monitor. Monitors whose write fails are dropped. It returns how many
// monitors received the event.
func (fs *FeedServer) Broadcast(ev FeedEvent) (int, error) {
	fs.sendMu.Lock()
	defer fs.sendMu.Unlock()

	fs.seq++
	ev.Seq = fs.seq
	payload, err := encodeFeedEvent(ev, fs.frameSize)
	if err != nil {
		return 0, err
	}

	fs.mu.RLock()
	targets := make([]*monitor, 0, len(fs.monitors))
	for _, m := range fs.monitors {
		targets = append(targets, m)
	}
	fs.mu.RUnlock()

	sent := 0
	for _, m := range targets {
		if _, err := WriteFixedFrameQUIC(m.stream, payload, fs.frameSize, feedWriteTimeout); err != nil {
			fs.log.Warn().Err(err).Uint32("monitor", m.id).Msg("dropping monitor")
			CloseQUIC(m.conn, m.stream, "write failed")
			fs.removeByConn(m.conn)
			continue
		}
		sent++
	}
	return sent, nil
}
