package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/health"
	"github.com/gorilla/websocket"
)

const (
	monitorWriteWait  = 10 * time.Second
	monitorPingPeriod = 30 * time.Second
)

// reportView is the /report payload while the run is still in progress.
type reportView struct {
	RunID  string           `json:"run_id"`
	Status string           `json:"status"`
	States map[string]State `json:"states"`
}

// ReportHandler serves the orchestration report as JSON. While the run is
// in progress it serves the current states with status "running". Mount it
// on a health server:
//
//	health.NewServer("monitor", ":8081", h,
//	    health.WithRoute("/report", orch.ReportHandler()),
//	    health.WithRoute("/events", orch.EventsHandler()),
//	)
func (o *Orchestrator) ReportHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if report := o.Report(); report != nil {
			if err := json.NewEncoder(w).Encode(report); err != nil {
				o.logger.Error().Err(err).Msg("Failed to encode report")
			}
			return
		}

		view := reportView{RunID: o.runID, Status: "running", States: o.States()}
		if err := json.NewEncoder(w).Encode(view); err != nil {
			o.logger.Error().Err(err).Msg("Failed to encode report")
		}
	})
}

// EventsHandler streams the event log over a WebSocket. Events with
// sequence numbers greater than ?since (default 0, i.e. full history) are
// replayed first, then live events follow as they are published. The
// stream stays open until the client disconnects.
func (o *Orchestrator) EventsHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var since uint64
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				errors.WriteHTTPError(w, errors.NewPermanent("invalid since parameter", err))
				return
			}
			since = parsed
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			o.logger.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The reader only consumes control frames; any error means the
		// client went away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		events := o.events.Subscribe(ctx, since)

		ticker := time.NewTicker(monitorPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}

// MonitorFromGraph registers every spec's health checker on h, keyed by
// service ID, so the aggregate health endpoints keep probing the stack
// after orchestration completes. Services without a checker are skipped.
func MonitorFromGraph(h *health.Health, g *Graph) {
	for _, id := range g.Services() {
		spec, ok := g.Spec(id)
		if !ok || spec.Check == nil {
			continue
		}
		h.RegisterChecker(id, spec.Check)
	}
}
