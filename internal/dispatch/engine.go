// Package dispatch bridges accepted client connections to their upstream
// targets, with pluggable per-connection inspection modules.
package dispatch

import (
	"context"
	"net"
)

// Target is the upstream endpoint a bridged connection forwards to.
type Target struct {
	Host string
	Port int
}

// Engine terminates a client connection and bridges it to the target.
// Bridge blocks until both directions are done and owns closing the
// upstream side; the caller closes the client side.
type Engine interface {
	Bridge(ctx context.Context, client net.Conn, target Target) error
}

// Direction identifies which way a chunk of bridged traffic is flowing.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ClientToServer {
		return "c2s"
	}
	return "s2c"
}

// Inspector sees every chunk of bridged traffic and may return a modified
// replacement. Returning the input unchanged is a pure observer.
type Inspector interface {
	Name() string
	Inspect(dir Direction, p []byte) []byte
}
