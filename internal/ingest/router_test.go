package ingest

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestDetectType(t *testing.T) {
	cases := map[string]Format{
		"show.yaml": YAML,
		"SHOW.YML":  YAML,
		"cmd.json":  JSON,
		"cmd.cbor":  CBOR,
		"notes.txt": Unknown,
		"no-ext":    Unknown,
	}
	for name, want := range cases {
		if got := DetectType(name); got != want {
			t.Errorf("DetectType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestDetectContentType(t *testing.T) {
	cases := map[string]Format{
		"":                                JSON,
		"application/json; charset=utf-8": JSON,
		"application/cbor":                CBOR,
		"text/html, application/cbor":     CBOR,
		"application/x-yaml":              YAML,
		"*/*":                             JSON,
		"text/plain":                      Unknown,
	}
	for header, want := range cases {
		if got := DetectContentType(header); got != want {
			t.Errorf("DetectContentType(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestCBORToJSON(t *testing.T) {
	in, err := cbor.Marshal(map[string]any{
		"connect": map[string]any{"link_id": "l1", "src_id": "s1", "sink_id": "m1", "config": map[string]any{"video::zorder": 2}},
	})
	if err != nil {
		t.Fatalf("marshal cbor: %v", err)
	}
	out, err := ToJSON(CBOR, in)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var got map[string]map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", out, err)
	}
	if got["connect"]["link_id"] != "l1" {
		t.Errorf("converted = %s", out)
	}

	if _, err := ToJSON(CBOR, []byte{0xff, 0x00}); err == nil {
		t.Error("expected error for garbage cbor")
	}
}

func TestYAMLToJSON(t *testing.T) {
	out, err := ToJSON(YAML, []byte("start:\n  id: s1\n  cue_time: \"2024-03-01T12:00:00Z\"\n"))
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	want := `{"start":{"cue_time":"2024-03-01T12:00:00Z","id":"s1"}}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestFromJSONToCBOR(t *testing.T) {
	out, err := FromJSON(CBOR, []byte(`{"id":null,"result":"success"}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	var back map[string]any
	if err := cbor.Unmarshal(out, &back); err != nil {
		t.Fatalf("cbor unmarshal: %v", err)
	}
	if back["result"] != "success" || back["id"] != nil {
		t.Errorf("decoded = %v", back)
	}
	if _, err := FromJSON(Unknown, []byte(`{}`)); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNormalizeNonStringKeys(t *testing.T) {
	v := Normalize(map[any]any{1: []any{map[any]any{"a": true}}})
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"1":[{"a":true}]}` {
		t.Errorf("got %s", b)
	}
}
