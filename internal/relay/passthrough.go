package relay

import (
	"context"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sagernet/sing/common/bufio"

	"github.com/loopgate/loopgate/internal/metrics"
)

// PassthroughConfig configures one auxiliary passthrough listener.
type PassthroughConfig struct {
	Region    string
	LocalHost string
	LocalPort int

	// Upstream is the real auxiliary endpoint (host:port). It must be
	// dialable without name redirection.
	Upstream string

	DialTimeout time.Duration
	Metrics     *metrics.Metrics
}

// Passthrough relays bytes unmodified between an inbound connection and the
// region's real auxiliary endpoint. No protocol awareness, no redirection
// logic, just connection-level forwarding.
type Passthrough struct {
	cfg PassthroughConfig
	ln  net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// OpenPassthrough binds the local address and starts relaying.
func OpenPassthrough(cfg PassthroughConfig) (*Passthrough, error) {
	addr := net.JoinHostPort(cfg.LocalHost, strconv.Itoa(cfg.LocalPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Passthrough{cfg: cfg, ln: ln, ctx: ctx, cancel: cancel}
	p.wg.Add(1)
	go p.acceptLoop()

	log.Printf("[relay] %s passthrough listening on %s (upstream %s)", cfg.Region, addr, cfg.Upstream)
	return p, nil
}

// Addr returns the bound local address.
func (p *Passthrough) Addr() net.Addr { return p.ln.Addr() }

// Close stops accepting and tears down in-flight relays. Idempotent.
func (p *Passthrough) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	err := p.ln.Close()
	p.wg.Wait()
	return err
}

func (p *Passthrough) acceptLoop() {
	defer p.wg.Done()
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if p.closed.Load() {
				return
			}
			log.Printf("[relay] %s passthrough accept: %v", p.cfg.Region, err)
			return
		}
		go p.handle(conn)
	}
}

func (p *Passthrough) handle(conn net.Conn) {
	p.cfg.Metrics.ConnOpened(p.cfg.Region, "passthrough")
	defer func() {
		conn.Close()
		p.cfg.Metrics.ConnClosed(p.cfg.Region)
	}()

	upstream, err := net.DialTimeout("tcp", p.cfg.Upstream, p.cfg.DialTimeout)
	if err != nil {
		log.Printf("[relay] %s passthrough dial %s: %v", p.cfg.Region, p.cfg.Upstream, err)
		return
	}
	defer upstream.Close()

	if err := bufio.CopyConn(p.ctx, conn, upstream); err != nil && p.ctx.Err() == nil {
		log.Printf("[relay] %s passthrough relay ended: %v", p.cfg.Region, err)
	}
}
