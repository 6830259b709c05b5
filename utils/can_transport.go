package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// CANReader delivers received frames one at a time.
type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketCANWriter{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// ErrReaderClosed is returned by ReadFrame once Close has been called.
var ErrReaderClosed = errors.New("can reader closed")

// frameReceiver is the part of socketcan.Receiver the reader consumes.
type frameReceiver interface {
	Receive() bool
	HasErrorFrame() bool
	Frame() can.Frame
	Err() error
}

// SocketCANReader pumps frames from a receiver goroutine so ReadFrame can
// honour context cancellation.
type SocketCANReader struct {
	conn      io.Closer
	frames    chan can.Frame
	done      chan struct{}
	closeOnce sync.Once
	err       error // set before frames is closed
}

func NewSocketCANReader(ctx context.Context, iface string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return newPumpedReader(conn, socketcan.NewReceiver(conn)), nil
}

func newPumpedReader(conn io.Closer, recv frameReceiver) *SocketCANReader {
	r := &SocketCANReader{
		conn:   conn,
		frames: make(chan can.Frame, 64),
		done:   make(chan struct{}),
	}
	go r.pump(recv)
	return r
}

func (r *SocketCANReader) pump(recv frameReceiver) {
	defer close(r.frames)
	for recv.Receive() {
		select {
		case <-r.done:
			r.err = ErrReaderClosed
			return
		default:
		}
		if recv.HasErrorFrame() {
			continue
		}
		select {
		case r.frames <- recv.Frame():
		case <-r.done:
			r.err = ErrReaderClosed
			return
		}
	}
	select {
	case <-r.done:
		r.err = ErrReaderClosed
	default:
		r.err = recv.Err()
		if r.err == nil {
			r.err = fmt.Errorf("socketcan receiver closed")
		}
	}
}

// ReadFrame blocks until a frame arrives, the receiver fails or ctx is done.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case frame, ok := <-r.frames:
		if !ok {
			return can.Frame{}, r.err
		}
		return frame, nil
	}
}

// Close stops the pump and closes the connection. It is safe to call twice.
func (r *SocketCANReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.conn != nil {
			err = r.conn.Close()
		}
	})
	return err
}
