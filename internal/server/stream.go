package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/forgebuild/foreman/internal/events"
	"github.com/forgebuild/foreman/internal/session"
)

// streamBuffer is the per-connection event buffer. A consumer that falls
// this far behind is disconnected and expected to reconnect with catch-up.
const streamBuffer = 1024

// frame is one WebSocket message: the event plus its log index, so
// clients can dedupe across a replay/live boundary.
type frame struct {
	Index int                `json:"index"`
	Event events.StreamEvent `json:"event"`
}

// handleStream serves a session's event log over WebSocket: an optional
// full replay (?catchUp=true), then live events until session_end.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	catchUp := r.URL.Query().Get("catchUp") == "true"

	// Probe before upgrading so unknown sessions get a proper 404.
	if _, err := s.sessions.GetStatus(id); errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Snapshot the log first. The replay is written straight to the
	// connection; Subscribe picks up from the snapshot's top index, so
	// events landing between the two still reach the channel.
	replay, err := s.sessions.GetEvents(id, -1)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "session not found")
		return
	}
	top := len(replay) - 1

	if !catchUp {
		// A live-only view of an already-ended stream has nothing
		// left to deliver.
		closed, err := s.sessions.StreamClosed(id)
		if err != nil || closed {
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		}
	}

	ch := make(chan frame, streamBuffer)
	unsub, err := s.sessions.Subscribe(id, top, func(index int, ev events.StreamEvent) {
		select {
		case ch <- frame{Index: index, Event: ev}:
		default:
			// Buffer full: drop the connection rather than the event.
			cancel()
		}
	})
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "session not found")
		return
	}
	defer unsub()

	// Reads are discarded; the read loop only detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	lastSent := top
	if catchUp {
		for i, ev := range replay {
			if !s.send(ctx, conn, frame{Index: i, Event: ev}) {
				return
			}
			if ev.IsTerminal() {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		}
	}

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case f := <-ch:
			if f.Index <= lastSent {
				continue
			}
			if !s.send(ctx, conn, f) {
				return
			}
			lastSent = f.Index
			if f.Event.IsTerminal() {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, f frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		return false
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return false
	}
	return true
}
