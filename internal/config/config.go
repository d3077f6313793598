// Package config handles configuration-file loading, environment overrides,
// and the shared config models.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// WildcardAll is the servers value that selects every known region.
const WildcardAll = "all"

// File is the on-disk configuration. The only schema requirement is that
// `servers` is present; everything else falls back to defaults.
type File struct {
	// AllRegions is true when `servers: all` was configured. Exactly one of
	// AllRegions / Servers is populated.
	AllRegions bool
	Servers    []ServerEntry

	NoHostsEdit     bool
	HostsPath       string
	ModuleDir       string
	MetricsListen   string
	RefreshSchedule string
	Verbose         bool
}

// ServerEntry is one configured region row, before registry resolution.
type ServerEntry struct {
	Region   string
	Locator  Locator
	BindHost string

	// IDs is nil for "all servers"; otherwise an explicit id-to-override map.
	IDs map[int]BindingOverride
}

// Locator describes how to reach a region's discovery service: either a
// single URL, or a structured host/port/path-set expanded into URLs.
type Locator struct {
	URL   string
	Host  string
	Port  int
	Paths []string
}

// IsZero reports whether no locator was configured.
func (l Locator) IsZero() bool {
	return l.URL == "" && l.Host == ""
}

// URLs expands the locator into the ordered list of candidate fetch URLs.
func (l Locator) URLs() []string {
	if l.URL != "" {
		return []string{l.URL}
	}
	if l.Host == "" {
		return nil
	}
	port := l.Port
	if port == 0 {
		port = 80
	}
	paths := l.Paths
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		urls = append(urls, fmt.Sprintf("http://%s:%d%s", l.Host, port, p))
	}
	return urls
}

// BindingOverride carries per-id field overrides merged into a computed
// binding; zero-valued fields mean "use the computed default".
type BindingOverride struct {
	LocalHost    string
	LocalPort    int
	UpstreamHost string
	UpstreamPort int
}

// Load reads the configuration file at path. The format is inferred from the
// file extension (yaml/json/toml). A missing or unparsable file, or a file
// without `servers`, is a fatal configuration error.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if !v.IsSet("servers") {
		return nil, fmt.Errorf("config: %s: required field `servers` is missing", path)
	}

	cfg := &File{
		NoHostsEdit:     v.GetBool("nohostsedit"),
		HostsPath:       v.GetString("hostspath"),
		ModuleDir:       v.GetString("moduledir"),
		MetricsListen:   v.GetString("metricslisten"),
		RefreshSchedule: v.GetString("refreshschedule"),
		Verbose:         v.GetBool("verbose"),
	}

	all, entries, err := parseServers(v.Get("servers"))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.AllRegions = all
	cfg.Servers = entries
	return cfg, nil
}

// parseServers decodes the `servers` value: either the wildcard string "all"
// or a list of server entry maps. Pure, so the union handling is unit-testable
// without touching the filesystem.
func parseServers(raw any) (all bool, entries []ServerEntry, err error) {
	switch val := raw.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(val), WildcardAll) {
			return true, nil, nil
		}
		return false, nil, fmt.Errorf("servers: unsupported value %q (expected %q or a list)", val, WildcardAll)
	case []any:
		entries = make([]ServerEntry, 0, len(val))
		for i, item := range val {
			m, ok := asStringMap(item)
			if !ok {
				return false, nil, fmt.Errorf("servers[%d]: expected an object, got %T", i, item)
			}
			entry, err := parseServerEntry(m)
			if err != nil {
				return false, nil, fmt.Errorf("servers[%d]: %w", i, err)
			}
			entries = append(entries, entry)
		}
		return false, entries, nil
	default:
		return false, nil, fmt.Errorf("servers: unsupported type %T", raw)
	}
}

func parseServerEntry(m map[string]any) (ServerEntry, error) {
	entry := ServerEntry{}
	for key, val := range m {
		switch strings.ToLower(key) {
		case "region":
			entry.Region = asString(val)
		case "bindhost":
			entry.BindHost = asString(val)
		case "locator":
			loc, err := parseLocator(val)
			if err != nil {
				return entry, err
			}
			entry.Locator = loc
		case "ids":
			ids, err := parseIDs(val)
			if err != nil {
				return entry, err
			}
			entry.IDs = ids
		}
	}
	return entry, nil
}

func parseLocator(raw any) (Locator, error) {
	if s, ok := raw.(string); ok {
		return Locator{URL: s}, nil
	}
	if val, ok := asStringMap(raw); ok {
		loc := Locator{}
		for key, v := range val {
			switch strings.ToLower(key) {
			case "host":
				loc.Host = asString(v)
			case "port":
				p, err := asInt(v)
				if err != nil {
					return loc, fmt.Errorf("locator.port: %w", err)
				}
				loc.Port = p
			case "paths":
				items, ok := v.([]any)
				if !ok {
					return loc, fmt.Errorf("locator.paths: expected a list, got %T", v)
				}
				for _, item := range items {
					loc.Paths = append(loc.Paths, asString(item))
				}
			}
		}
		if loc.Host == "" {
			return loc, fmt.Errorf("locator: structured form requires `host`")
		}
		return loc, nil
	}
	return Locator{}, fmt.Errorf("locator: unsupported type %T", raw)
}

// parseIDs decodes the per-entry server selector: the wildcard "all" (or
// absence) selects every roster id; an id-to-override map selects explicitly.
func parseIDs(raw any) (map[int]BindingOverride, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		if strings.EqualFold(strings.TrimSpace(s), WildcardAll) {
			return nil, nil
		}
		return nil, fmt.Errorf("ids: unsupported value %q (expected %q or an id map)", s, WildcardAll)
	}
	val, ok := asStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("ids: unsupported type %T", raw)
	}
	ids := make(map[int]BindingOverride, len(val))
	for k, v := range val {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("ids: invalid server id %q", k)
		}
		ov, err := parseBindingOverride(v)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: %w", id, err)
		}
		ids[id] = ov
	}
	return ids, nil
}

func parseBindingOverride(raw any) (BindingOverride, error) {
	ov := BindingOverride{}
	if raw == nil {
		return ov, nil
	}
	m, ok := asStringMap(raw)
	if !ok {
		return ov, fmt.Errorf("expected an object, got %T", raw)
	}
	for key, v := range m {
		switch strings.ToLower(key) {
		case "localhost":
			ov.LocalHost = asString(v)
		case "localport":
			p, err := asInt(v)
			if err != nil {
				return ov, fmt.Errorf("localPort: %w", err)
			}
			ov.LocalPort = p
		case "upstreamhost":
			ov.UpstreamHost = asString(v)
		case "upstreamport":
			p, err := asInt(v)
			if err != nil {
				return ov, fmt.Errorf("upstreamPort: %w", err)
			}
			ov.UpstreamPort = p
		}
	}
	return ov, nil
}

// asStringMap normalizes the two map shapes yaml decoding can produce.
// Integer keys (`ids: {1: ...}`) arrive as map[any]any.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
