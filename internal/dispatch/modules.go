package dispatch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// InspectorConstructor builds an inspector from its module options.
type InspectorConstructor func(options map[string]any) (Inspector, error)

var (
	inspectorsMu sync.RWMutex
	inspectors   = map[string]InspectorConstructor{}
)

// RegisterInspector makes an inspector type loadable from module files.
func RegisterInspector(name string, ctor InspectorConstructor) {
	inspectorsMu.Lock()
	defer inspectorsMu.Unlock()
	if _, dup := inspectors[name]; dup {
		panic("dispatch: duplicate inspector type " + name)
	}
	inspectors[name] = ctor
}

// moduleFile is one inspection-module definition on disk.
type moduleFile struct {
	Module  string         `yaml:"module"`
	Options map[string]any `yaml:"options"`
}

// LoadModules loads every inspection module defined under dir, once at
// startup. An unreadable directory is fatal to the caller; an individual
// module that fails to load is logged and skipped.
func LoadModules(dir string) ([]Inspector, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read module dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var loaded []Inspector
	for _, name := range names {
		insp, err := loadModuleFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("[dispatch] skipping module %s: %v", name, err)
			continue
		}
		log.Printf("[dispatch] loaded module %s (%s)", insp.Name(), name)
		loaded = append(loaded, insp)
	}
	return loaded, nil
}

func loadModuleFile(path string) (Inspector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file moduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Module == "" {
		return nil, fmt.Errorf("missing `module` field")
	}

	inspectorsMu.RLock()
	ctor, ok := inspectors[file.Module]
	inspectorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown module type %q", file.Module)
	}
	return ctor(file.Options)
}
