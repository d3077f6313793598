// Package region provides the static region registry and the topology
// resolver that turns raw configuration into per-region orchestration units.
package region

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/loopgate/loopgate/internal/config"
)

//go:embed regions.yaml
var registryYAML []byte

// AuxEndpoint describes a region's auxiliary encrypted endpoint that must be
// reachable under its redirected name but is not inspected at the protocol
// layer. Upstream is a dialable host:port that is itself never redirected.
type AuxEndpoint struct {
	Name     string `yaml:"name"`
	Upstream string `yaml:"upstream"`
}

// Locator wraps config.Locator with YAML decoding that accepts either a
// plain URL scalar or a structured {host, port, paths} mapping.
type Locator config.Locator

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Locator) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var url string
		if err := value.Decode(&url); err != nil {
			return err
		}
		l.URL = url
		return nil
	}
	var structured struct {
		Host  string   `yaml:"host"`
		Port  int      `yaml:"port"`
		Paths []string `yaml:"paths"`
	}
	if err := value.Decode(&structured); err != nil {
		return err
	}
	if structured.Host == "" {
		return fmt.Errorf("region: structured locator requires `host`")
	}
	l.Host = structured.Host
	l.Port = structured.Port
	l.Paths = structured.Paths
	return nil
}

// Info is one registry row: the per-region defaults merged into configured
// entries during resolution.
type Info struct {
	Locator       Locator      `yaml:"locator"`
	BindHost      string       `yaml:"bindHost"`
	RedirectNames []string     `yaml:"redirectNames"`
	Aux           *AuxEndpoint `yaml:"aux"`
}

// Registry maps canonical region codes to their defaults.
type Registry struct {
	regions map[string]Info
}

type registryFile struct {
	Regions map[string]Info `yaml:"regions"`
}

// NewRegistry builds a registry from YAML bytes.
func NewRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &Registry{regions: file.Regions}, nil
}

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(registryYAML)
	if err != nil {
		panic("region: embedded registry is invalid: " + err.Error())
	}
	return reg
}

// Lookup returns the registry row for a canonical code.
func (r *Registry) Lookup(code string) (Info, bool) {
	info, ok := r.regions[code]
	return info, ok
}

// Codes returns all known region codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.regions))
	for code := range r.regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
