package hostnet

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/netstack"
)

var (
	ErrNotConnected = errors.New("hostnet: socket not connected")
	ErrSocketClosed = errors.New("hostnet: socket closed")
)

// TCPSocket is a netstack.Socket over a kernel TCP connection. The rx/tx
// lengths size the kernel socket buffers.
type TCPSocket struct {
	dialer  net.Dialer
	rxSize  int
	txSize  int
	timeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

var _ netstack.Socket = (*TCPSocket)(nil)

func NewTCPSocket(rx, tx []byte) *TCPSocket {
	return &TCPSocket{rxSize: len(rx), txSize: len(tx)}
}

func (s *TCPSocket) SetTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

func (s *TCPSocket) Connect(ctx context.Context, remote netip.AddrPort) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSocketClosed
	}
	d := s.dialer
	d.Timeout = s.timeout
	s.mu.Unlock()

	conn, err := d.DialContext(ctx, "tcp", remote.String())
	if err != nil {
		return err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if s.rxSize > 0 {
			_ = tcp.SetReadBuffer(s.rxSize)
		}
		if s.txSize > 0 {
			_ = tcp.SetWriteBuffer(s.txSize)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return ErrSocketClosed
	}
	s.conn = conn
	return nil
}

func (s *TCPSocket) WriteAll(ctx context.Context, p []byte) error {
	conn, stop, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer stop()
	for len(p) > 0 {
		n, err := conn.Write(p)
		if err != nil {
			return ctxErr(ctx, err)
		}
		p = p[n:]
	}
	return nil
}

func (s *TCPSocket) Read(ctx context.Context, p []byte) (int, error) {
	conn, stop, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer stop()
	n, err := conn.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	if err != nil {
		return n, ctxErr(ctx, err)
	}
	return n, nil
}

func (s *TCPSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// begin arms the idle deadline and unblocks the pending operation when ctx
// is cancelled.
func (s *TCPSocket) begin(ctx context.Context) (net.Conn, func() bool, error) {
	s.mu.Lock()
	conn, closed, timeout := s.conn, s.closed, s.timeout
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrSocketClosed
	}
	if conn == nil {
		return nil, nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	return conn, stop, nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
