// Package relay owns the local listeners: per-server game listeners handing
// connections to the dispatch engine, and raw passthrough listeners for
// auxiliary endpoints that are redirected but not inspected.
package relay

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	xnetutil "golang.org/x/net/netutil"

	"github.com/loopgate/loopgate/internal/dispatch"
	"github.com/loopgate/loopgate/internal/metrics"
)

// BindError indicates a local listen address could not be bound. Recoverable
// per binding: the caller skips it and continues with its siblings.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("relay: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ListenerConfig configures one game listener.
type ListenerConfig struct {
	Region   string
	ServerID int

	LocalHost    string
	LocalPort    int
	UpstreamHost string
	UpstreamPort int

	Engine   dispatch.Engine
	MaxConns int
	Metrics  *metrics.Metrics
}

// Listener accepts inbound connections on a local address and bridges each
// toward the binding's upstream endpoint. States: binding, listening,
// closed; closed is terminal, a listener is never reused.
type Listener struct {
	cfg ListenerConfig
	ln  net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Open binds the local address and starts accepting. Registration of the
// binding's redirected address must already have happened: callers uphold
// the register-then-listen ordering.
func Open(cfg ListenerConfig) (*Listener, error) {
	addr := net.JoinHostPort(cfg.LocalHost, strconv.Itoa(cfg.LocalPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	if cfg.MaxConns > 0 {
		ln = xnetutil.LimitListener(ln, cfg.MaxConns)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{cfg: cfg, ln: ln, ctx: ctx, cancel: cancel}
	l.wg.Add(1)
	go l.acceptLoop()

	log.Printf("[relay] %s server %d listening on %s (upstream %s:%d)",
		cfg.Region, cfg.ServerID, addr, cfg.UpstreamHost, cfg.UpstreamPort)
	return l, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting and tears down in-flight bridges. Idempotent.
// Active connections are abandoned, not drained.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() {
				return
			}
			log.Printf("[relay] %s server %d accept: %v", l.cfg.Region, l.cfg.ServerID, err)
			return
		}
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	pairID := uuid.NewString()[:8]
	l.cfg.Metrics.ConnOpened(l.cfg.Region, "game")
	log.Printf("[relay] %s server %d pair %s opened from %s",
		l.cfg.Region, l.cfg.ServerID, pairID, conn.RemoteAddr())

	counted := l.cfg.Metrics.CountConn(conn, l.cfg.Region)
	defer func() {
		conn.Close()
		l.cfg.Metrics.ConnClosed(l.cfg.Region)
	}()

	target := dispatch.Target{Host: l.cfg.UpstreamHost, Port: l.cfg.UpstreamPort}
	if err := l.cfg.Engine.Bridge(l.ctx, counted, target); err != nil && l.ctx.Err() == nil {
		log.Printf("[relay] %s server %d pair %s closed: %v", l.cfg.Region, l.cfg.ServerID, pairID, err)
		return
	}
	log.Printf("[relay] %s server %d pair %s closed", l.cfg.Region, l.cfg.ServerID, pairID)
}
