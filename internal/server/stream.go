package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/qvarlab/qvar/internal/events"
	"github.com/qvarlab/qvar/internal/runs"
)

// handleStreamRun handles GET /api/vqe/runs/{uuid}/stream. It upgrades
// to a websocket and forwards the run's events until the run reaches a
// terminal state or the client goes away.
func (s *Server) handleStreamRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	run, err := s.cfg.Repository.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	// Subscribe before checking status so no completion event is missed.
	ch, cancel := s.cfg.Bus.Subscribe(id, 256)
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("run", id).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()

	// A terminal run has nothing left to stream; send its state and close.
	if run.Status == runs.StatusCompleted || run.Status == runs.StatusFailed {
		ev := events.Event{Type: events.RunCompleted, RunID: id, Payload: run.Status}
		if run.Status == runs.StatusFailed {
			ev.Type = events.RunFailed
			ev.Payload = run.Error
		}
		wsjson.Write(ctx, conn, ev)
		conn.Close(websocket.StatusNormalClosure, "run already finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "client context done")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "bus closed")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
			if ev.Type == events.RunCompleted || ev.Type == events.RunFailed {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
		}
	}
}
