// Package api exposes a Runtime over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/drunkod/fcast/internal/ingest"
	"github.com/drunkod/fcast/internal/runtime"
	"github.com/drunkod/fcast/internal/store"
	"github.com/drunkod/fcast/pkg/types"
)

// MaxCommandBytes bounds a single command body.
const MaxCommandBytes = 1 << 20

type Server struct {
	rt       *runtime.Runtime
	presets  *store.FS
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer wires handlers for rt. presets may be nil, in which case
// the preset routes answer 404.
func NewServer(rt *runtime.Runtime, presets *store.FS, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		rt:      rt,
		presets: presets,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed: "+r.Method+" "+r.URL.Path)
	})

	// Upgraded connections must not pass through the gzip writer.
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
		r.Get("/health", s.handleHealth)
		r.Get("/bridges", s.handleBridges)
		r.Post("/command", s.handleCommand)
		r.Get("/presets", s.handleListPresets)
		r.Post("/presets/{name}/apply", s.handleApplyPreset)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Health())
}

// handleBridges reports per-consumer delivery counters for every live
// bridge.
func (s *Server) handleBridges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Manager().BridgeStats())
}

// handleCommand accepts a command or controller message as JSON, CBOR
// or YAML and answers with a ServerMessage in the format named by
// Accept. Payloads that do not decode get a 400; everything else,
// including commands the graph rejects, gets a 200.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	format := ingest.DetectContentType(r.Header.Get("Content-Type"))
	if format == ingest.Unknown {
		writeError(w, r, http.StatusUnsupportedMediaType, "malformed input: unsupported content type "+r.Header.Get("Content-Type"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCommandBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "malformed input: command too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "malformed input: "+err.Error())
		return
	}
	payload, err := ingest.ToJSON(format, body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed input: "+err.Error())
		return
	}
	id, cmd, err := runtime.Decode(payload)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeMessage(w, r, http.StatusOK, s.rt.HandleMessage(id, cmd))
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		writeError(w, r, http.StatusNotFound, "presets are not configured")
		return
	}
	names, err := s.presets.Presets()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"presets": names})
}

type applyResponse struct {
	Preset  string            `json:"preset"`
	Failed  int               `json:"failed"`
	Results []json.RawMessage `json:"results"`
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		writeError(w, r, http.StatusNotFound, "presets are not configured")
		return
	}
	name := chi.URLParam(r, "name")
	p, err := s.presets.LoadPreset(name)
	switch {
	case errors.Is(err, store.ErrPresetNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	results, failed := s.rt.RunScript(p.Commands)
	s.log.Info("preset applied", "preset", name, "commands", len(results), "failed", failed)
	writeJSON(w, http.StatusOK, applyResponse{Preset: name, Failed: failed, Results: results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with a ServerMessage carrying a null id, the same
// envelope a rejected command gets.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeMessage(w, r, status, types.ServerMessage{Result: types.Failure(msg)})
}

// writeMessage encodes msg as JSON or, when the client asks for it,
// CBOR or YAML.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg types.ServerMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	format := ingest.DetectContentType(r.Header.Get("Accept"))
	if format == ingest.Unknown {
		format = ingest.JSON
	}
	if format != ingest.JSON {
		if body, err = ingest.FromJSON(format, body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	w.Write(body)
}
