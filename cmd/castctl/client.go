package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drunkod/fcast/internal/runtime"
	"github.com/drunkod/fcast/pkg/types"
)

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *client) Health() (*runtime.Health, error) {
	var out runtime.Health
	if err := c.do("GET", "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send posts a command. A bare command is wrapped in a controller
// message with a fresh id; the reply must echo that id.
func (c *client) Send(payload []byte) (*types.ServerMessage, error) {
	id, cmd, err := types.DecodeInbound(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	msg := types.ControllerMessage{ID: uuid.New(), Command: cmd}
	if id != nil {
		msg.ID = *id
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var reply types.ServerMessage
	if err := c.do("POST", "/command", body, &reply); err != nil {
		return nil, err
	}
	if reply.ID == nil || *reply.ID != msg.ID {
		return nil, fmt.Errorf("reply id %v does not match request id %s", reply.ID, msg.ID)
	}
	return &reply, nil
}

func (c *client) Presets() ([]string, error) {
	var out struct {
		Presets []string `json:"presets"`
	}
	if err := c.do("GET", "/presets", nil, &out); err != nil {
		return nil, err
	}
	return out.Presets, nil
}

func (c *client) ApplyPreset(name string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do("POST", "/presets/"+url.PathEscape(name)+"/apply", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) do(method, path string, body []byte, out any) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var env types.ServerMessage
		if json.Unmarshal(data, &env) == nil && env.Result.Err != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, env.Result.Err)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.Unmarshal(data, out)
}
