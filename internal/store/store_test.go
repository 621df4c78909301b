package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const showYAML = `commands:
  - createsource:
      id: s1
      uri: file:///clip.mp4
  - createdestination:
      id: d1
      family: LocalPlayback
  - connect:
      link_id: l1
      src_id: s1
      sink_id: d1
`

func TestLoadYAMLPreset(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root, "show.yaml"), []byte(showYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := fs.LoadPreset("show")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "show" || len(p.Commands) != 3 {
		t.Fatalf("preset = %+v", p)
	}
	var first map[string]map[string]string
	if err := json.Unmarshal(p.Commands[0], &first); err != nil {
		t.Fatalf("command 0 %s: %v", p.Commands[0], err)
	}
	if first["createsource"]["uri"] != "file:///clip.mp4" {
		t.Errorf("command 0 = %s", p.Commands[0])
	}
}

func TestPresetErrors(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.LoadPreset("missing"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("missing preset err = %v", err)
	}
	if _, err := fs.LoadPreset("../etc/passwd"); err == nil {
		t.Error("path traversal should be rejected")
	}
	if err := os.WriteFile(filepath.Join(fs.Root, "empty.json"), []byte(`{"commands":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.LoadPreset("empty"); err == nil {
		t.Error("empty preset should be rejected")
	}
}

func TestSaveAndListPresets(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cmds := []json.RawMessage{
		json.RawMessage(`{"remove":{"id":"s1"}}`),
		json.RawMessage(`{"getinfo":{}}`),
	}
	if err := fs.SavePreset("teardown", cmds); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.Root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := fs.Presets()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"teardown"}) {
		t.Errorf("names = %v", names)
	}
	p, err := fs.LoadPreset("teardown")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Commands) != 2 || string(p.Commands[0]) != `{"remove":{"id":"s1"}}` {
		t.Errorf("round trip = %s", p.Commands)
	}
}
