package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drunkod/fcast/pkg/types"
)

func TestSendWrapsBareCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/command" || r.Method != "POST" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var msg types.ControllerMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Errorf("server got %s: %v", body, err)
			return
		}
		if _, ok := msg.Command.(types.Remove); !ok {
			t.Errorf("command = %#v", msg.Command)
		}
		json.NewEncoder(w).Encode(types.ServerMessage{ID: &msg.ID, Result: types.Failure("not found: node ghost")})
	}))
	defer srv.Close()

	reply, err := newClient(srv.URL).Send([]byte(`{"remove":{"id":"ghost"}}`))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Result.Err != "not found: node ghost" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestSendRejectsInvalidCommand(t *testing.T) {
	if _, err := newClient("http://127.0.0.1:0").Send([]byte(`{"nope":{}}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestErrorEnvelopeIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(types.ServerMessage{Result: types.Failure("presets are not configured")})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL + "/").Presets()
	if err == nil || !strings.Contains(err.Error(), "presets are not configured") {
		t.Fatalf("err = %v", err)
	}
}

func TestHealthDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"service":"castd","running":true,"started":"2024-03-01T12:00:00Z","nodes":2,"links":1,"bridges":2}`))
	}))
	defer srv.Close()

	h, err := newClient(srv.URL).Health()
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !h.OK || h.Nodes != 2 || h.Links != 1 {
		t.Errorf("health = %+v", h)
	}
}
