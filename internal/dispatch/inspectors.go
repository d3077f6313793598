package dispatch

import (
	"fmt"
	"log"
	"sync/atomic"
)

func init() {
	RegisterInspector("trafficlog", newTrafficLog)
}

// trafficLog is a built-in observer module: it counts relayed bytes per
// direction and logs a line every logEvery bytes. It never modifies traffic.
type trafficLog struct {
	label    string
	logEvery int64

	c2s atomic.Int64
	s2c atomic.Int64
}

func newTrafficLog(options map[string]any) (Inspector, error) {
	t := &trafficLog{label: "trafficlog", logEvery: 1 << 20}
	if v, ok := options["label"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("trafficlog: label must be a string, got %T", v)
		}
		t.label = s
	}
	return t, nil
}

func (t *trafficLog) Name() string { return t.label }

func (t *trafficLog) Inspect(dir Direction, p []byte) []byte {
	counter := &t.c2s
	if dir == ServerToClient {
		counter = &t.s2c
	}
	before := counter.Load()
	after := counter.Add(int64(len(p)))
	if before/t.logEvery != after/t.logEvery {
		log.Printf("[%s] %s relayed %d bytes", t.label, dir, after)
	}
	return p
}
