package dispatch

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sagernet/sing/common/bufio"
)

const relayBufferSize = 32 * 1024

// Bridge is the default engine: a plain TCP bridge that runs each loaded
// inspector over both directions of traffic.
type Bridge struct {
	DialTimeout time.Duration
	Inspectors  []Inspector
}

// NewBridge creates a bridge engine with the given inspection modules.
func NewBridge(dialTimeout time.Duration, inspectors []Inspector) *Bridge {
	return &Bridge{DialTimeout: dialTimeout, Inspectors: inspectors}
}

// Bridge dials the target and relays traffic until either side closes.
// Send coalescing is disabled on both legs: this is interactive traffic,
// latency wins over throughput.
func (b *Bridge) Bridge(ctx context.Context, client net.Conn, target Target) error {
	addr := net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
	upstream, err := net.DialTimeout("tcp", addr, b.DialTimeout)
	if err != nil {
		return fmt.Errorf("dispatch: dial %s: %w", addr, err)
	}
	defer upstream.Close()

	setNoDelay(client)
	setNoDelay(upstream)

	if len(b.Inspectors) == 0 {
		return bufio.CopyConn(ctx, client, upstream)
	}
	return b.inspectedRelay(ctx, client, upstream)
}

// inspectedRelay pumps both directions through the inspector chain.
// Returns once either direction finishes; closing both conns unblocks the
// other pump.
func (b *Bridge) inspectedRelay(ctx context.Context, client, upstream net.Conn) error {
	errCh := make(chan error, 2)
	go func() { errCh <- b.pump(ClientToServer, client, upstream) }()
	go func() { errCh <- b.pump(ServerToClient, upstream, client) }()

	var first error
	select {
	case <-ctx.Done():
		first = ctx.Err()
	case first = <-errCh:
	}
	client.Close()
	upstream.Close()
	<-errCh
	return first
}

func (b *Bridge) pump(dir Direction, src, dst net.Conn) error {
	buf := make([]byte, relayBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			p := buf[:n]
			for _, insp := range b.Inspectors {
				p = insp.Inspect(dir, p)
			}
			if len(p) > 0 {
				if _, werr := dst.Write(p); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			return err
		}
	}
}

func setNoDelay(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
}
