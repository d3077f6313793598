// Package directory implements the client side of the discovery service:
// roster fetching plus the mutable address-override table consulted when
// answering later queries.
package directory

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
)

// Endpoint is one addressable server endpoint.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Roster maps server id to its live upstream endpoint.
type Roster map[int]Endpoint

// FetchError wraps a roster fetch/parse failure. Recoverable per region:
// the caller skips that region and continues with its siblings.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("directory: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OverrideTable is the mutable server-id to redirected-address table the
// client consults when answering subsequent external queries.
type OverrideTable struct {
	entries *xsync.Map[int, Endpoint]
}

// NewOverrideTable creates an empty override table.
func NewOverrideTable() *OverrideTable {
	return &OverrideTable{entries: xsync.NewMap[int, Endpoint]()}
}

// Set registers (or replaces) the redirected address for a server id.
func (t *OverrideTable) Set(id int, ep Endpoint) {
	t.entries.Store(id, ep)
}

// Get returns the redirected address for a server id, if registered.
func (t *OverrideTable) Get(id int) (Endpoint, bool) {
	return t.entries.Load(id)
}

// Len returns the number of registered overrides.
func (t *OverrideTable) Len() int {
	return t.entries.Size()
}

// Range iterates the table until fn returns false.
func (t *OverrideTable) Range(fn func(id int, ep Endpoint) bool) {
	t.entries.Range(fn)
}

// Resolve answers a roster query through the override table: a registered
// id reports its redirected address instead of the fetched upstream one.
func (t *OverrideTable) Resolve(id int, upstream Endpoint) Endpoint {
	if ep, ok := t.entries.Load(id); ok {
		return ep
	}
	return upstream
}

// Client is the directory-client capability surface.
type Client interface {
	// Fetch returns the region's current upstream server roster.
	Fetch(ctx context.Context) (Roster, error)

	// Overrides returns the client's mutable address-override table.
	Overrides() *OverrideTable

	// Close releases any held resources. Idempotent.
	Close() error
}
