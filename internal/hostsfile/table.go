// Package hostsfile reads and rewrites the system name-resolution table,
// applying reversible canonical-name to local-address overrides.
package hostsfile

import (
	"os"
	"runtime"
	"strings"

	"github.com/zeebo/xxh3"
)

// line is one physical line of the table. Lines that parse as an address
// entry carry addr/names; everything else (comments, blanks, malformed
// input) is preserved verbatim through raw.
type line struct {
	raw   string
	addr  string
	names []string
}

func (l *line) isEntry() bool { return len(l.names) > 0 }

func (l *line) rebuild() {
	l.raw = l.addr + "\t" + strings.Join(l.names, " ")
}

// Table is an in-memory, order- and comment-preserving view of the
// name-resolution table.
type Table struct {
	lines []line
}

// Parse builds a Table from raw file content. Never fails: anything that
// does not parse as an entry is kept verbatim.
func Parse(content string) *Table {
	t := &Table{}
	for _, raw := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		t.lines = append(t.lines, parseLine(raw))
	}
	return t
}

func parseLine(raw string) line {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return line{raw: raw}
	}
	// Strip an inline comment before splitting into fields.
	entry := trimmed
	if i := strings.IndexByte(entry, '#'); i >= 0 {
		entry = strings.TrimSpace(entry[:i])
	}
	fields := strings.Fields(entry)
	if len(fields) < 2 {
		return line{raw: raw}
	}
	return line{raw: raw, addr: fields[0], names: fields[1:]}
}

// ReadFile reads and parses the table at path.
func ReadFile(path string) (*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}
	return Parse(string(content)), nil
}

// Lookup returns the address mapped to name, resolution-order first match.
func (t *Table) Lookup(name string) (addr string, ok bool) {
	for i := range t.lines {
		l := &t.lines[i]
		for _, n := range l.names {
			if strings.EqualFold(n, name) {
				return l.addr, true
			}
		}
	}
	return "", false
}

// Set maps name to addr. An existing single-name entry is rewritten in
// place; a name sharing a multi-name entry is split out; otherwise a new
// entry is appended. Only the targeted name is mutated.
func (t *Table) Set(name, addr string) {
	for i := range t.lines {
		l := &t.lines[i]
		for j, n := range l.names {
			if !strings.EqualFold(n, name) {
				continue
			}
			if len(l.names) == 1 {
				l.addr = addr
				l.rebuild()
				return
			}
			l.names = append(l.names[:j], l.names[j+1:]...)
			l.rebuild()
			t.append(name, addr)
			return
		}
	}
	t.append(name, addr)
}

func (t *Table) append(name, addr string) {
	l := line{addr: addr, names: []string{name}}
	l.rebuild()
	t.lines = append(t.lines, l)
}

// Remove deletes every mapping for name. Entries left without names are
// dropped entirely.
func (t *Table) Remove(name string) {
	kept := t.lines[:0]
	for _, l := range t.lines {
		if l.isEntry() {
			names := l.names[:0]
			for _, n := range l.names {
				if !strings.EqualFold(n, name) {
					names = append(names, n)
				}
			}
			if len(names) == 0 {
				continue
			}
			if len(names) != len(l.names) {
				l.names = names
				l.rebuild()
			}
		}
		kept = append(kept, l)
	}
	t.lines = kept
}

// Render serializes the table back to file content.
func (t *Table) Render() string {
	var b strings.Builder
	for _, l := range t.lines {
		b.WriteString(l.raw)
		b.WriteByte('\n')
	}
	return b.String()
}

// Fingerprint returns a cheap content digest used to detect external edits
// between guard scans.
func (t *Table) Fingerprint() uint64 {
	return xxh3.HashString(t.Render())
}

// WriteFile persists the table to path, classifying failures into
// actionable kinds.
func WriteFile(path string, t *Table) error {
	if err := os.WriteFile(path, []byte(t.Render()), 0o644); err != nil {
		return classifyWriteError(path, err)
	}
	return nil
}

// DefaultPath returns the platform's name-resolution table location.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}
