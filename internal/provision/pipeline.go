// Package provision turns a region's fetched roster into registered
// overrides and open listeners, and schedules roster refreshes.
package provision

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/loopgate/loopgate/internal/config"
	"github.com/loopgate/loopgate/internal/directory"
	"github.com/loopgate/loopgate/internal/dispatch"
	"github.com/loopgate/loopgate/internal/metrics"
	"github.com/loopgate/loopgate/internal/netutil"
	"github.com/loopgate/loopgate/internal/region"
	"github.com/loopgate/loopgate/internal/relay"
)

const (
	// BasePort anchors the deterministic local port formula
	// localPort = BasePort + serverId. Fixed, not configurable.
	BasePort = 30000

	// PassthroughPort is the local port auxiliary passthrough listeners
	// bind; the auxiliary channel is TLS, so it mirrors the HTTPS port.
	PassthroughPort = 443
)

// Binding is the provisioning output for one upstream server.
type Binding struct {
	ID           int
	UpstreamHost string
	UpstreamPort int
	LocalHost    string
	LocalPort    int
}

// ComputeBinding derives a binding from a roster entry, the unit's bind
// host, and the deterministic port formula. Caller-supplied overrides are
// merged last and win over computed defaults.
func ComputeBinding(id int, ep directory.Endpoint, bindHost string, ov config.BindingOverride) Binding {
	b := Binding{
		ID:           id,
		UpstreamHost: ep.IP,
		UpstreamPort: ep.Port,
		LocalHost:    bindHost,
		LocalPort:    BasePort + id,
	}
	if ov.UpstreamHost != "" {
		b.UpstreamHost = ov.UpstreamHost
	}
	if ov.UpstreamPort != 0 {
		b.UpstreamPort = ov.UpstreamPort
	}
	if ov.LocalHost != "" {
		b.LocalHost = ov.LocalHost
	}
	if ov.LocalPort != 0 {
		b.LocalPort = ov.LocalPort
	}
	return b
}

// Pipeline provisions units: fetch roster, compute bindings, register
// redirected addresses, open listeners. Every failure below the unit level
// is isolated to its id; every failure at the unit level is isolated to
// its region.
type Pipeline struct {
	Engine     dispatch.Engine
	Metrics    *metrics.Metrics
	Downloader netutil.Downloader

	RosterCacheTTL      time.Duration
	DialTimeout         time.Duration
	MaxConnsPerListener int
}

// ProvisionAll provisions every unit concurrently and returns when all are
// done. One region's slow fetch never delays another region's progress.
func (p *Pipeline) ProvisionAll(ctx context.Context, units []*region.Unit) {
	var wg sync.WaitGroup
	for _, unit := range units {
		wg.Add(1)
		go func(u *region.Unit) {
			defer wg.Done()
			p.ProvisionUnit(ctx, u)
		}(unit)
	}
	wg.Wait()
}

// ProvisionUnit runs one region's pipeline. Idempotent: ids that already
// have a listener keep it, so refreshes only add. Steps are strictly
// ordered within the unit; in particular every id's override is registered
// before its listener starts accepting, so an intercepted roster query can
// never leak the true upstream address.
func (p *Pipeline) ProvisionUnit(ctx context.Context, u *region.Unit) {
	if u.Client == nil {
		client, err := directory.New(directory.Config{
			Locator:    u.Locator,
			Downloader: p.Downloader,
			CacheTTL:   p.RosterCacheTTL,
		})
		if err != nil {
			log.Printf("[provision] %s: directory client: %v; skipping region", u.Code, err)
			return
		}
		u.Client = client
	}

	roster, err := u.Client.Fetch(ctx)
	p.Metrics.RosterFetch(u.Code, err == nil)
	if err != nil {
		log.Printf("[provision] %s: roster fetch failed: %v; skipping region", u.Code, err)
		return
	}

	for _, id := range workingIDs(u.Selector, roster) {
		ep, ok := roster[id]
		if !ok {
			log.Printf("[provision] %s: server %d not in roster; skipping", u.Code, id)
			continue
		}
		binding := ComputeBinding(id, ep, u.BindHost, u.Selector.Explicit[id])

		u.Client.Overrides().Set(id, directory.Endpoint{IP: binding.LocalHost, Port: binding.LocalPort})
		if _, exists := u.Listeners.Load(id); exists {
			continue
		}

		listener, err := relay.Open(relay.ListenerConfig{
			Region:       u.Code,
			ServerID:     id,
			LocalHost:    binding.LocalHost,
			LocalPort:    binding.LocalPort,
			UpstreamHost: binding.UpstreamHost,
			UpstreamPort: binding.UpstreamPort,
			Engine:       p.Engine,
			MaxConns:     p.MaxConnsPerListener,
			Metrics:      p.Metrics,
		})
		if err != nil {
			log.Printf("[provision] %s: server %d: %v; skipping binding", u.Code, id, err)
			p.Metrics.BindFailure(u.Code)
			continue
		}
		u.Listeners.Store(id, listener)
		p.Metrics.BindingProvisioned(u.Code)
	}

	p.logDepartedIDs(u, roster)
	p.openPassthrough(u)
}

func (p *Pipeline) openPassthrough(u *region.Unit) {
	if u.Aux == nil || u.Passthrough != nil {
		return
	}
	pass, err := relay.OpenPassthrough(relay.PassthroughConfig{
		Region:      u.Code,
		LocalHost:   u.BindHost,
		LocalPort:   PassthroughPort,
		Upstream:    u.Aux.Upstream,
		DialTimeout: p.DialTimeout,
		Metrics:     p.Metrics,
	})
	if err != nil {
		log.Printf("[provision] %s: passthrough: %v; skipping", u.Code, err)
		return
	}
	u.Passthrough = pass
}

// logDepartedIDs reports listeners whose server id has left the roster.
// The listener stays open: established sessions outlive roster churn.
func (p *Pipeline) logDepartedIDs(u *region.Unit, roster directory.Roster) {
	u.Listeners.Range(func(id int, _ *relay.Listener) bool {
		if _, ok := roster[id]; !ok {
			log.Printf("[provision] %s: server %d no longer in roster; keeping listener", u.Code, id)
		}
		return true
	})
}

// workingIDs returns the ids to provision in deterministic order: the
// roster's ids under the "all servers" selector, the configured ids
// otherwise.
func workingIDs(sel region.Selector, roster directory.Roster) []int {
	var ids []int
	if sel.AllServers {
		ids = make([]int, 0, len(roster))
		for id := range roster {
			ids = append(ids, id)
		}
	} else {
		ids = make([]int, 0, len(sel.Explicit))
		for id := range sel.Explicit {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
