package hostsfile

import (
	"log"
	"sync"
)

// Override is one requested canonical-name to local-address substitution.
type Override struct {
	Name string
	Addr string
}

// Applied is an override that has been written to the table, together with
// the original value captured at apply time.
type Applied struct {
	Name        string
	Addr        string
	Original    string
	HadOriginal bool
}

// Redirector owns the override set applied to one table file and the
// captured originals needed to revert it.
type Redirector struct {
	path string

	mu      sync.Mutex
	applied []Applied
}

// NewRedirector creates a Redirector for the table at path. Nothing is
// touched until Apply.
func NewRedirector(path string) *Redirector {
	return &Redirector{path: path}
}

// Path returns the table file path.
func (r *Redirector) Path() string { return r.path }

// Applied returns a copy of the overrides applied so far.
func (r *Redirector) Applied() []Applied {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Applied, len(r.applied))
	copy(out, r.applied)
	return out
}

// Apply reads the table, records the original value for every override,
// writes the substitutions, and persists the result. Every original is
// captured before the table is persisted, so a revert is always possible.
// A non-nil preWrite hook runs between capture and persist; callers use it
// to journal the originals so even a crash mid-write can be rolled back.
func (r *Redirector) Apply(overrides []Override, preWrite func([]Applied) error) ([]Applied, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := ReadFile(r.path)
	if err != nil {
		return nil, err
	}

	applied := make([]Applied, 0, len(overrides))
	for _, ov := range overrides {
		original, had := table.Lookup(ov.Name)
		applied = append(applied, Applied{
			Name:        ov.Name,
			Addr:        ov.Addr,
			Original:    original,
			HadOriginal: had,
		})
		table.Set(ov.Name, ov.Addr)
	}

	if preWrite != nil {
		if err := preWrite(applied); err != nil {
			return nil, err
		}
	}
	if err := WriteFile(r.path, table); err != nil {
		return nil, err
	}
	r.applied = append(r.applied, applied...)
	return applied, nil
}

// Revert restores the originals for every override this redirector applied.
func (r *Redirector) Revert() error {
	r.mu.Lock()
	applied := r.applied
	r.applied = nil
	r.mu.Unlock()
	return RevertApplied(r.path, applied)
}

// RevertApplied re-reads the table and restores originals for the given
// applied overrides. The table is process-wide mutable state outside this
// program's exclusive control, so restoration reconciles against the live
// value: an entry we set is rolled back to its original, while an entry
// changed externally since apply is preserved as the new value.
func RevertApplied(path string, applied []Applied) error {
	if len(applied) == 0 {
		return nil
	}

	table, err := ReadFile(path)
	if err != nil {
		return err
	}

	for _, a := range applied {
		current, ok := table.Lookup(a.Name)
		if !ok || current != a.Addr {
			log.Printf("[hosts] %s changed externally since apply (now %q), leaving as-is", a.Name, current)
			continue
		}
		if a.HadOriginal {
			table.Set(a.Name, a.Original)
		} else {
			table.Remove(a.Name)
		}
	}

	return WriteFile(path, table)
}
