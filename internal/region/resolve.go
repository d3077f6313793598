package region

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/loopgate/loopgate/internal/config"
	"github.com/loopgate/loopgate/internal/directory"
	"github.com/loopgate/loopgate/internal/relay"
)

const (
	// UnknownCode marks an entry whose region code was not configured at all.
	UnknownCode = "???"

	// UnrecognizedSuffix is appended to a configured code missing from the
	// registry, so it stays visually distinguishable in logs while the entry
	// is still processed.
	UnrecognizedSuffix = "*"

	// FallbackBindHost is the generic loopback-class bind address used when
	// neither configuration nor registry supplies one.
	FallbackBindHost = "127.0.0.1"
)

// Selector decides which roster ids a unit provisions.
type Selector struct {
	// AllServers selects exactly the ids the fetched roster reports.
	AllServers bool

	// Explicit maps a configured server id to its field overrides.
	Explicit map[int]config.BindingOverride
}

// Unit is one per-region orchestration unit: the resolved configuration row
// plus the runtime handles it exclusively owns.
type Unit struct {
	Code          string
	Locator       config.Locator
	BindHost      string
	Selector      Selector
	RedirectNames []string
	Aux           *AuxEndpoint

	// Runtime handles, populated as provisioning completes and torn down
	// exactly once at shutdown.
	Client      directory.Client
	Listeners   *xsync.Map[int, *relay.Listener]
	Passthrough *relay.Passthrough
}

// NewUnit creates a Unit with empty runtime handles.
func NewUnit(code string) *Unit {
	return &Unit{
		Code:      code,
		Listeners: xsync.NewMap[int, *relay.Listener](),
	}
}

// Resolve normalizes raw configuration into the ordered unit sequence.
// Pure transformation: no network or filesystem I/O. Order only affects
// log ordering, not correctness.
func Resolve(cfg *config.File, reg *Registry) []*Unit {
	if cfg.AllRegions {
		units := make([]*Unit, 0, len(reg.Codes()))
		for _, code := range reg.Codes() {
			units = append(units, resolveEntry(config.ServerEntry{Region: code}, reg))
		}
		return units
	}

	units := make([]*Unit, 0, len(cfg.Servers))
	for _, entry := range cfg.Servers {
		units = append(units, resolveEntry(entry, reg))
	}
	return units
}

func resolveEntry(entry config.ServerEntry, reg *Registry) *Unit {
	info, recognized := reg.Lookup(entry.Region)

	code := entry.Region
	switch {
	case code == "":
		code = UnknownCode
	case !recognized:
		code += UnrecognizedSuffix
	}

	unit := NewUnit(code)

	unit.Locator = entry.Locator
	if unit.Locator.IsZero() && recognized {
		unit.Locator = config.Locator(info.Locator)
	}

	unit.BindHost = entry.BindHost
	if unit.BindHost == "" {
		if recognized && info.BindHost != "" {
			unit.BindHost = info.BindHost
		} else {
			unit.BindHost = FallbackBindHost
		}
	}

	if entry.IDs == nil {
		unit.Selector = Selector{AllServers: true}
	} else {
		unit.Selector = Selector{Explicit: entry.IDs}
	}

	if recognized {
		unit.RedirectNames = info.RedirectNames
		unit.Aux = info.Aux
	}
	return unit
}
