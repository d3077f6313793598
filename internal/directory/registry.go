package directory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loopgate/loopgate/internal/config"
	"github.com/loopgate/loopgate/internal/netutil"
)

// Config describes the client to construct. Type selects the registered
// constructor; the remaining fields are consumed as each type needs.
type Config struct {
	Type       string
	Locator    config.Locator
	Downloader netutil.Downloader
	CacheTTL   time.Duration

	// Static is the fixed roster for the "static" client type.
	Static Roster
}

// Constructor builds a Client from its configuration.
type Constructor func(Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a client type available to New. Registering a duplicate
// name panics: type names are compile-time decisions.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("directory: duplicate client type " + name)
	}
	registry[name] = ctor
}

// New constructs a client of the configured type; empty Type means "http".
func New(cfg Config) (Client, error) {
	name := cfg.Type
	if name == "" {
		name = "http"
	}
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("directory: unknown client type %q (known: %v)", name, knownTypes())
	}
	return ctor(cfg)
}

func knownTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
