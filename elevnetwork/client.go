package elevnetwork

import (
	"context"
	"fmt"
	"net"
	"time"

	quic "github.com/quic-go/quic-go"
)

const (
	openStreamTimeout = 2 * time.Second
	dialTimeout       = 4 * time.Second
)

// FeedClient is the monitor end of a feed connection.
type FeedClient struct {
	id        uint32
	frameSize int
	conn      *quic.Conn
	stream    *quic.Stream
}

// DialFeed connects to a feed server and completes the hello exchange.
// monitorID must be non-zero.
func DialFeed(ctx context.Context, addr string, monitorID uint32, quicConf *quic.Config) (*FeedClient, error) {
	if monitorID == 0 {
		return nil, fmt.Errorf("monitor id must be non-zero")
	}
	if quicConf == nil {
		quicConf = DefaultQUICConfig()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, st, err := DialQUIC(attemptCtx, addr, quicConf, openStreamTimeout)
	if err != nil {
		return nil, err
	}
	if err := exchangeHello(st, monitorID, QUIC_FRAME_SIZE); err != nil {
		CloseQUIC(conn, st, "hello failed")
		return nil, err
	}
	return &FeedClient{id: monitorID, frameSize: QUIC_FRAME_SIZE, conn: conn, stream: st}, nil
}

// Events calls fn for every event until ctx is cancelled or the server goes
// away. Frames that do not decode are skipped.
func (c *FeedClient) Events(ctx context.Context, fn func(FeedEvent)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.stream.CancelRead(0)
		case <-done:
		}
	}()

	return ReadFixedFramesQUIC(ctx, c.stream, c.frameSize, func(frame []byte) error {
		if ev, err := DecodeFeedEvent(frame); err == nil {
			fn(ev)
		}
		return nil
	})
}

func (c *FeedClient) ID() uint32 { return c.id }

func (c *FeedClient) RemoteAddr() net.Addr {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func (c *FeedClient) Close() error {
	if c == nil {
		return nil
	}
	CloseQUIC(c.conn, c.stream, "bye")
	return nil
}
