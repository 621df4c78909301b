package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/drunkod/fcast/pkg/types"
)

const writeWait = 10 * time.Second

type statusPush struct {
	Status types.NodeStatus `json:"status"`
}

// handleWS answers every text or binary message with a ServerMessage
// and pushes node status events as {"status":{...}} between replies.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	statuses, cancel := s.rt.Subscribe()
	defer cancel()

	replies := make(chan []byte, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn, replies, statuses)
	}()

read:
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		select {
		case replies <- s.rt.TryHandleCommandJSON(data):
		case <-writerDone:
			break read
		}
	}
	close(replies)
	<-writerDone
}

// writeLoop is the only goroutine writing to conn.
func (s *Server) writeLoop(conn *websocket.Conn, replies <-chan []byte, statuses <-chan types.NodeStatus) {
	write := func(b []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug("websocket write failed", "error", err)
			conn.Close()
			return false
		}
		return true
	}
	for {
		select {
		case msg, ok := <-replies:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(msg) {
				return
			}
		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			b, err := json.Marshal(statusPush{Status: st})
			if err != nil {
				continue
			}
			if !write(b) {
				return
			}
		}
	}
}
