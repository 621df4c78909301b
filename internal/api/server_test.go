package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"github.com/drunkod/fcast/internal/bridge"
	"github.com/drunkod/fcast/internal/clock"
	"github.com/drunkod/fcast/internal/runtime"
	"github.com/drunkod/fcast/internal/store"
	"github.com/drunkod/fcast/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *runtime.Runtime) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := runtime.New(runtime.Options{
		Clock:  clock.Fake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		Logger: log,
	})
	t.Cleanup(rt.Shutdown)
	presets, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(rt, presets, log), rt
}

func post(h http.Handler, body, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/command", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) types.ServerMessage {
	t.Helper()
	var msg types.ServerMessage
	if err := json.NewDecoder(w.Body).Decode(&msg); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return msg
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var h runtime.Health
	if err := json.NewDecoder(w.Body).Decode(&h); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !h.OK || h.Service != "castd" {
		t.Errorf("health = %+v", h)
	}
}

func TestBridgeStats(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()
	for _, body := range []string{
		`{"createsource":{"id":"s1","uri":"file:///a.mp4","video":true}}`,
		`{"createdestination":{"id":"d1","family":"LocalPlayback","video":true}}`,
		`{"connect":{"link_id":"l1","src_id":"s1","sink_id":"d1","video":true}}`,
	} {
		if msg := decodeMessage(t, post(h, body, "")); !msg.Result.OK() {
			t.Fatalf("%s: %+v", body, msg.Result)
		}
	}

	req := httptest.NewRequest("GET", "/bridges", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var stats []bridge.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(stats) != 1 || stats[0].Key != "s1:video" || stats[0].Producer {
		t.Fatalf("bridges = %+v", stats)
	}
	if c := stats[0].Consumers; len(c) != 1 || c[0].LinkID != "l1" || c[0].Dropped != 0 {
		t.Errorf("consumers = %+v", c)
	}
}

func TestCommandStatusCodes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"create", `{"createsource":{"id":"s1","uri":"file:///a.mp4"}}`, http.StatusOK, ""},
		{"duplicate", `{"createsource":{"id":"s1","uri":"file:///a.mp4"}}`, http.StatusOK, "duplicate id"},
		{"unknown node", `{"remove":{"id":"ghost"}}`, http.StatusOK, "not found"},
		{"not json", `{"createsource":`, http.StatusBadRequest, "malformed input"},
		{"unknown tag", `{"launch":{"id":"s1"}}`, http.StatusBadRequest, "malformed input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, tt.body, "application/json")
			if w.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, w.Code, w.Body)
			}
			msg := decodeMessage(t, w)
			if tt.wantErr == "" {
				if !msg.Result.OK() {
					t.Errorf("unexpected error %q", msg.Result.Err)
				}
				return
			}
			if !strings.HasPrefix(msg.Result.Err, tt.wantErr) {
				t.Errorf("error = %q, want prefix %q", msg.Result.Err, tt.wantErr)
			}
		})
	}
}

func TestCommandUnsupportedContentType(t *testing.T) {
	s, _ := newTestServer(t)
	w := post(s.Router(), `{"getinfo":{}}`, "text/plain")
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected status 415, got %d", w.Code)
	}
}

func TestCommandEchoesControllerID(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"id":"6f1c1f4e-7f0e-4f8e-9a56-0b1f3f9d2a11","command":{"getinfo":{}}}`
	w := post(s.Router(), body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	msg := decodeMessage(t, w)
	if msg.ID == nil || msg.ID.String() != "6f1c1f4e-7f0e-4f8e-9a56-0b1f3f9d2a11" {
		t.Errorf("id = %v", msg.ID)
	}
	if msg.Result.Info == nil || len(msg.Result.Info.Nodes) != 0 {
		t.Errorf("result = %+v", msg.Result)
	}
}

func TestCommandCBOR(t *testing.T) {
	s, rt := newTestServer(t)
	body, err := cbor.Marshal(map[string]any{
		"createdestination": map[string]any{"id": "d1", "family": "LocalPlayback"},
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/command", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set("Accept", "application/cbor")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/cbor" {
		t.Errorf("content type = %q", ct)
	}
	var reply map[string]any
	if err := cbor.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode cbor reply: %v", err)
	}
	if reply["result"] != "success" {
		t.Errorf("reply = %v", reply)
	}
	if rt.Health().Nodes != 1 {
		t.Error("destination was not created")
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()
	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{"GET", "/nowhere", http.StatusNotFound},
		{"GET", "/command", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Errorf("%s %s: expected status %d, got %d", tc.method, tc.path, tc.want, w.Code)
			continue
		}
		if msg := decodeMessage(t, w); msg.ID != nil || msg.Result.Err == "" {
			t.Errorf("%s %s: envelope = %+v", tc.method, tc.path, msg)
		}
	}
}

func TestResponsesAreCompressed(t *testing.T) {
	s, rt := newTestServer(t)
	for i := 0; i < 30; i++ {
		rt.HandleCommand(types.CreateSource{ID: fmt.Sprintf("source-%02d", i), URI: "file:///clip.mp4", Audio: true, Video: true})
	}
	req := httptest.NewRequest("POST", "/command", strings.NewReader(`{"getinfo":{}}`))
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, headers = %v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var msg types.ServerMessage
	if err := json.NewDecoder(zr).Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Result.Info == nil || len(msg.Result.Info.Nodes) != 30 {
		t.Errorf("info has %d nodes", len(msg.Result.Info.Nodes))
	}
}

func TestApplyPreset(t *testing.T) {
	s, rt := newTestServer(t)
	script := "commands:\n  - createsource: {id: s1, uri: \"file:///a.mp4\"}\n  - createsource: {id: s1, uri: \"file:///a.mp4\"}\n"
	if err := os.WriteFile(filepath.Join(s.presets.Root, "demo.yaml"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	h := s.Router()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/presets", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"demo"`) {
		t.Fatalf("list = %d %s", w.Code, w.Body)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/presets/demo/apply", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body)
	}
	var resp applyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Results) != 2 || resp.Failed != 1 {
		t.Errorf("apply = %+v", resp)
	}
	if rt.Health().Nodes != 1 {
		t.Error("preset did not create the source")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/presets/absent/apply", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestWebSocketCommandsAndStatus(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	send := func(payload string) {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(`{"createsource":{"id":"s1","uri":"file:///a.mp4"}}`)
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"id":null,"result":"success"}` {
		t.Fatalf("reply = %s", data)
	}

	send(`{"start":{"id":"s1"}}`)
	var sawReply, sawStatus bool
	for !sawReply || !sawStatus {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var frame map[string]json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("frame %s: %v", data, err)
		}
		if raw, ok := frame["status"]; ok {
			var st types.NodeStatus
			if err := json.Unmarshal(raw, &st); err != nil {
				t.Fatalf("status %s: %v", raw, err)
			}
			if st.ID != "s1" || st.State != types.StateStarting {
				t.Errorf("status = %+v", st)
			}
			sawStatus = true
			continue
		}
		if string(frame["result"]) != `"success"` {
			t.Errorf("reply = %s", data)
		}
		sawReply = true
	}

	send(`garbage`)
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"error":"malformed input`) {
		t.Errorf("reply = %s", data)
	}
}
