// Package ingest detects the encoding of command payloads and preset
// files and normalises them to JSON, the form the validator and the
// wire decoder understand.
package ingest

import (
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	JSON    Format = "json"
	CBOR    Format = "cbor"
	YAML    Format = "yaml"
	Unknown Format = "unknown"
)

// ContentType is the media type announced for f.
func (f Format) ContentType() string {
	switch f {
	case CBOR:
		return "application/cbor"
	case YAML:
		return "application/yaml"
	}
	return "application/json"
}

// DetectType picks a format from a file name.
func DetectType(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return JSON
	case ".cbor":
		return CBOR
	case ".yaml", ".yml":
		return YAML
	default:
		return Unknown
	}
}

// DetectContentType picks a format from a Content-Type or Accept value.
// An empty header means JSON.
func DetectContentType(header string) Format {
	if strings.TrimSpace(header) == "" {
		return JSON
	}
	for _, part := range strings.Split(header, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "application/json", "text/json", "*/*", "application/*":
			return JSON
		case "application/cbor":
			return CBOR
		case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
			return YAML
		}
	}
	return Unknown
}

var cborDec = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// ToJSON re-encodes a payload in format f as JSON.
func ToJSON(f Format, b []byte) ([]byte, error) {
	switch f {
	case JSON:
		return b, nil
	case CBOR:
		var v any
		if err := cborDec.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode cbor: %w", err)
		}
		return json.Marshal(Normalize(v))
	case YAML:
		v, err := DecodeYAML(b)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported payload format %q", f)
}

// FromJSON re-encodes a JSON document in format f.
func FromJSON(f Format, b []byte) ([]byte, error) {
	switch f {
	case JSON:
		return b, nil
	case CBOR, YAML:
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		if f == CBOR {
			return cbor.Marshal(v)
		}
		return yaml.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported payload format %q", f)
}

// DecodeYAML parses one YAML document into JSON-compatible values.
func DecodeYAML(b []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return Normalize(v), nil
}

// Normalize rewrites maps with non-string keys, as produced by the CBOR
// and YAML decoders, into map[string]any so the value marshals as JSON.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = Normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = Normalize(e)
		}
		return t
	}
	return v
}
