package directory

import "context"

func init() {
	Register("static", newStaticClient)
}

// staticClient serves a fixed roster. Used for offline operation against a
// known server list and as a deterministic double in tests.
type staticClient struct {
	roster    Roster
	overrides *OverrideTable
}

func newStaticClient(cfg Config) (Client, error) {
	roster := make(Roster, len(cfg.Static))
	for id, ep := range cfg.Static {
		roster[id] = ep
	}
	return &staticClient{
		roster:    roster,
		overrides: NewOverrideTable(),
	}, nil
}

func (c *staticClient) Fetch(context.Context) (Roster, error) {
	out := make(Roster, len(c.roster))
	for id, ep := range c.roster {
		out[id] = ep
	}
	return out, nil
}

func (c *staticClient) Overrides() *OverrideTable { return c.overrides }

func (c *staticClient) Close() error { return nil }
