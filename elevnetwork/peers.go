package elevnetwork

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	helloMagic   uint32 = 0x48454C4F // "HELO"
	helloTimeout        = 2 * time.Second
)

// encodeHelloFrame produces the 8 byte hello header; WriteFixedFrameQUIC pads
// it to a full frame.
func encodeHelloFrame(monitorID uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], helloMagic)
	binary.BigEndian.PutUint32(b[4:8], monitorID)
	return b
}

func decodeHelloFrame(frame []byte) (monitorID uint32, ok bool) {
	if len(frame) < 8 {
		return 0, false
	}
	if binary.BigEndian.Uint32(frame[0:4]) != helloMagic {
		return 0, false
	}
	id := binary.BigEndian.Uint32(frame[4:8])
	if id == 0 {
		return 0, false
	}
	return id, true
}

func readHelloFrame(r io.Reader, frameSize int, timeout time.Duration) (uint32, error) {
	if frameSize <= 0 {
		frameSize = QUIC_FRAME_SIZE
	}
	if d, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok && timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(timeout))
		defer d.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, frameSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	id, ok := decodeHelloFrame(buf)
	if !ok {
		return 0, fmt.Errorf("invalid hello")
	}
	return id, nil
}

func writeHelloFrame(w io.Writer, monitorID uint32, frameSize int, timeout time.Duration) error {
	_, err := WriteFixedFrameQUIC(w, encodeHelloFrame(monitorID), frameSize, timeout)
	return err
}

// exchangeHello runs the monitor side of the handshake: send our id, then
// expect the server to echo it back.
func exchangeHello(rw io.ReadWriter, monitorID uint32, frameSize int) error {
	if err := writeHelloFrame(rw, monitorID, frameSize, helloTimeout); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	echoed, err := readHelloFrame(rw, frameSize, helloTimeout)
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if echoed != monitorID {
		return fmt.Errorf("hello mismatch: sent %d, got %d", monitorID, echoed)
	}
	return nil
}

// acceptHello runs the server side: read the monitor's id and echo it.
func acceptHello(rw io.ReadWriter, frameSize int) (uint32, error) {
	id, err := readHelloFrame(rw, frameSize, helloTimeout)
	if err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if err := writeHelloFrame(rw, id, frameSize, helloTimeout); err != nil {
		return 0, fmt.Errorf("send hello: %w", err)
	}
	return id, nil
}
