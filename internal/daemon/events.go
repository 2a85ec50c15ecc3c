package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"pipcast/internal/api"
	"pipcast/internal/logging"
	"pipcast/internal/pipeline"
	"pipcast/internal/progress"
	"pipcast/internal/services"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Access is gated by the bearer token, not by origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleRenderStream runs a render and streams its progress as server-sent
// events, ending with a result or error event.
func (s *apiServer) handleRenderStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	u, err := s.readUpload(w, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	defer u.release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan progress.Event)
	var (
		result pipeline.Result
		runErr error
	)
	go func() {
		defer close(events)
		result, runErr = s.jobs.Render(r.Context(), u.req, progress.ChanSink(events))
	}()

	// Keep draining after a write failure so the render never blocks on
	// its sink; the request context cancels it.
	live := true
	for ev := range events {
		if !live {
			continue
		}
		if err := writeSSE(w, "progress", ev); err != nil {
			live = false
			continue
		}
		flusher.Flush()
	}
	if !live {
		return
	}
	if runErr != nil {
		_ = writeSSE(w, "error", api.ErrorResponse{Error: runErr.Error(), Class: services.Class(runErr)})
	} else {
		_ = writeSSE(w, "result", api.FromResult(result))
	}
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// handleJobEvents replays a job's progress over a websocket and follows it
// until the job finishes, then sends the final snapshot and closes.
func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	past, events, cancel, ok := s.jobs.Subscribe(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg api.StreamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg) == nil
	}
	for i := range past {
		if !send(api.StreamMessage{Type: api.StreamProgress, Event: &past[i]}) {
			return
		}
	}
	if events != nil {
	follow:
		for {
			select {
			case ev, open := <-events:
				if !open {
					break follow
				}
				if !send(api.StreamMessage{Type: api.StreamProgress, Event: &ev}) {
					return
				}
			case <-gone:
				return
			}
		}
	}
	if job, ok := s.jobs.Get(id); ok {
		send(api.StreamMessage{Type: api.StreamJob, Job: &job})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}
