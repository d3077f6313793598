package hostsfile

import (
	"log"
	"sync"

	"github.com/loopgate/loopgate/internal/scanloop"
)

// Guard periodically re-reads the table and warns when an applied override
// no longer resolves to the address this process set. It never rewrites the
// table: an external edit wins until shutdown-time reconciliation.
type Guard struct {
	redirector *Redirector

	lastFingerprint uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewGuard creates a guard over the redirector's table.
func NewGuard(r *Redirector) *Guard {
	return &Guard{
		redirector: r,
		stopCh:     make(chan struct{}),
	}
}

// Start takes a fingerprint baseline and launches the scan loop.
func (g *Guard) Start() {
	if table, err := ReadFile(g.redirector.Path()); err == nil {
		g.lastFingerprint = table.Fingerprint()
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		scanloop.Run(g.stopCh, scanloop.DefaultMinInterval, scanloop.DefaultJitterRange, g.scan)
	}()
}

// Stop signals the guard to stop and waits for the loop to exit.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
	g.wg.Wait()
}

func (g *Guard) scan() {
	table, err := ReadFile(g.redirector.Path())
	if err != nil {
		log.Printf("[hosts] guard scan: %v", err)
		return
	}

	fp := table.Fingerprint()
	if fp == g.lastFingerprint {
		return
	}
	g.lastFingerprint = fp

	for _, a := range g.redirector.Applied() {
		current, ok := table.Lookup(a.Name)
		switch {
		case !ok:
			log.Printf("[hosts] override for %s was removed externally", a.Name)
		case current != a.Addr:
			log.Printf("[hosts] override for %s was changed externally (%s -> %s)", a.Name, a.Addr, current)
		}
	}
}
