// Package store keeps command presets: scripts of wire commands under a
// root directory, one YAML or JSON file per preset.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/drunkod/fcast/internal/ingest"
)

var ErrPresetNotFound = errors.New("preset not found")

type FS struct{ Root string }

// Preset is a named command script. Each entry is one command or
// controller message in its JSON wire form.
type Preset struct {
	Name     string            `json:"name"`
	Commands []json.RawMessage `json:"commands"`
}

func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{Root: root}, nil
}

var presetExts = []string{".yaml", ".yml", ".json"}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid preset name %q", name)
	}
	return nil
}

// PresetPath returns the file backing name, trying each supported
// extension in turn.
func (s *FS) PresetPath(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	for _, ext := range presetExts {
		p := filepath.Join(s.Root, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

// Presets lists the preset names under the root, sorted.
func (s *FS) Presets() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch ingest.DetectType(e.Name()) {
		case ingest.YAML, ingest.JSON:
			name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FS) LoadPreset(name string) (*Preset, error) {
	path, err := s.PresetPath(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ingest.ToJSON(ingest.DetectType(path), raw)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	var p Preset
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	if len(p.Commands) == 0 {
		return nil, fmt.Errorf("preset %s has no commands", name)
	}
	p.Name = name
	return &p, nil
}

// SavePreset writes commands as a YAML preset, replacing any existing
// preset of the same name.
func (s *FS) SavePreset(name string, commands []json.RawMessage) error {
	if err := validName(name); err != nil {
		return err
	}
	doc, err := json.Marshal(Preset{Name: name, Commands: commands})
	if err != nil {
		return err
	}
	out, err := ingest.FromJSON(ingest.YAML, doc)
	if err != nil {
		return err
	}
	for _, ext := range presetExts[1:] {
		_ = os.Remove(filepath.Join(s.Root, name+ext))
	}
	return os.WriteFile(filepath.Join(s.Root, name+".yaml"), out, 0o644)
}
