package hostnet

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

// listen accepts one connection and hands it to serve.
func listen(t *testing.T, serve func(net.Conn)) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	return netip.MustParseAddrPort(ln.Addr().String())
}

func TestTCPSocketExchangeReadsToEOF(t *testing.T) {
	testlog.Start(t)
	remote := listen(t, func(conn net.Conn) {
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		_, _ = conn.Write([]byte("echo:" + string(buf[:n])))
	})

	sock := NewTCPSocket(make([]byte, 4096), make([]byte, 4096))
	sock.SetTimeout(5 * time.Second)
	ctx := context.Background()
	if err := sock.Connect(ctx, remote); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := sock.WriteAll(ctx, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []byte
	buf := make([]byte, 3)
	for {
		n, err := sock.Read(ctx, buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "echo:ping" {
		t.Fatalf("unexpected response: %q", got)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := sock.Read(ctx, buf); !errors.Is(err, ErrSocketClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestTCPSocketRequiresConnect(t *testing.T) {
	testlog.Start(t)
	sock := NewTCPSocket(nil, nil)
	if err := sock.WriteAll(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	_ = sock.Close()
	if err := sock.Connect(context.Background(), netip.MustParseAddrPort("127.0.0.1:1")); !errors.Is(err, ErrSocketClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestTCPSocketIdleTimeout(t *testing.T) {
	testlog.Start(t)
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	remote := listen(t, func(conn net.Conn) { <-hold })

	sock := NewTCPSocket(nil, nil)
	defer sock.Close()
	sock.SetTimeout(50 * time.Millisecond)
	if err := sock.Connect(context.Background(), remote); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err := sock.Read(context.Background(), make([]byte, 8))
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestTCPSocketCancelUnblocksRead(t *testing.T) {
	testlog.Start(t)
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	remote := listen(t, func(conn net.Conn) { <-hold })

	sock := NewTCPSocket(nil, nil)
	defer sock.Close()
	if err := sock.Connect(context.Background(), remote); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := sock.Read(ctx, make([]byte, 8))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTCPSocketConnectRefused(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	remote := netip.MustParseAddrPort(ln.Addr().String())
	_ = ln.Close()

	sock := NewTCPSocket(nil, nil)
	defer sock.Close()
	sock.SetTimeout(time.Second)
	if err := sock.Connect(context.Background(), remote); err == nil {
		t.Fatalf("expected connect error")
	}
	if _, err := sock.Read(context.Background(), make([]byte, 1)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
}
