// Package validate checks inbound command payloads against the
// embedded command schema before they are decoded.
package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://fcast.dev/schema/command.schema.json"

//go:embed schema/command.schema.json
var commandSchema string

var (
	once    sync.Once
	schema  *jsonschema.Schema
	loadErr error
)

func load() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(schemaURL, strings.NewReader(commandSchema)); err != nil {
		loadErr = err
		return
	}
	schema, loadErr = c.Compile(schemaURL)
}

// Payload validates raw JSON.
func Payload(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after command")
	}
	return Value(v)
}

// Value validates an already decoded JSON document.
func Value(v any) error {
	once.Do(load)
	if loadErr != nil {
		return fmt.Errorf("loading command schema: %w", loadErr)
	}
	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := deepest(ve)
			return fmt.Errorf("%s: %s", location(leaf.InstanceLocation), leaf.Message)
		}
		return err
	}
	return nil
}

// deepest picks the cause pointing furthest into the document, which is
// usually the most useful one to report.
func deepest(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	best := ve
	for _, c := range ve.Causes {
		if d := deepest(c); len(d.InstanceLocation) > len(best.InstanceLocation) {
			best = d
		}
	}
	return best
}

func location(ptr string) string {
	if ptr == "" {
		return "payload"
	}
	return ptr
}
