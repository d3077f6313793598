package dispatch

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

// startEcho runs a TCP echo upstream and returns its target.
func startEcho(t *testing.T) Target {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				io.Copy(c, c)
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return Target{Host: addr.IP.String(), Port: addr.Port}
}

// upcase is a test inspector that uppercases client-to-server traffic.
type upcase struct{}

func (upcase) Name() string { return "upcase" }

func (upcase) Inspect(dir Direction, p []byte) []byte {
	if dir != ClientToServer {
		return p
	}
	return bytes.ToUpper(p)
}

func TestBridge_PlainRelay(t *testing.T) {
	target := startEcho(t)
	bridge := NewBridge(time.Second, nil)

	local, remote := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- bridge.Bridge(context.Background(), remote, target) }()

	if _, err := local.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(local, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("echoed %q, want %q", buf, "ping")
	}

	local.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not return after the client closed")
	}
}

func TestBridge_InspectorChainModifiesTraffic(t *testing.T) {
	target := startEcho(t)
	bridge := NewBridge(time.Second, []Inspector{upcase{}})

	local, remote := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- bridge.Bridge(context.Background(), remote, target) }()

	if _, err := local.Write([]byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(local, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "PING" {
		t.Fatalf("echoed %q, want the inspected form %q", buf, "PING")
	}

	local.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not return after the client closed")
	}
}

func TestBridge_DialFailure(t *testing.T) {
	// Bind a port and close it immediately so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	bridge := NewBridge(500*time.Millisecond, nil)
	local, remote := net.Pipe()
	defer local.Close()

	if err := bridge.Bridge(context.Background(), remote, Target{Host: addr.IP.String(), Port: addr.Port}); err == nil {
		t.Fatal("expected dial error for a dead upstream")
	}
}

func TestBridge_ContextCancelUnblocks(t *testing.T) {
	target := startEcho(t)
	bridge := NewBridge(time.Second, []Inspector{upcase{}})

	ctx, cancel := context.WithCancel(context.Background())
	local, remote := net.Pipe()
	defer local.Close()

	done := make(chan error, 1)
	go func() { done <- bridge.Bridge(ctx, remote, target) }()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("cancelled bridge should report the context error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not return after cancellation")
	}
}

func TestDirection_String(t *testing.T) {
	if got := ClientToServer.String(); got != "c2s" {
		t.Fatalf("ClientToServer = %q", got)
	}
	if got := ServerToClient.String(); got != "s2c" {
		t.Fatalf("ServerToClient = %q", got)
	}
}
