package elevnetwork

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

// ServeHTTP3 serves handler over HTTP/3 on addr until ctx is cancelled.
func ServeHTTP3(ctx context.Context, addr string, handler http.Handler) error {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("http3 listen: %w", err)
	}
	return serveHTTP3(ctx, pc, handler)
}

func serveHTTP3(ctx context.Context, pc net.PacketConn, handler http.Handler) error {
	defer pc.Close()

	tlsConf, err := NewQUICServerTLSConfig()
	if err != nil {
		return fmt.Errorf("server tls config: %w", err)
	}
	srv := &http3.Server{
		Handler:   handler,
		TLSConfig: http3.ConfigureTLSConfig(tlsConf),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(pc) }()

	select {
	case <-ctx.Done():
		_ = srv.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http3 serve: %w", err)
	}
}
