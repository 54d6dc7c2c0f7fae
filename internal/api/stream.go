package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/realtime"
)

// stream holds a server-sent event connection on the caller's realtime
// channel. A newer stream of the same user closes this one.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if s.subscriber == nil {
		writeError(w, commonerrors.NewRealtimeSubscribeFailedError(fmt.Errorf("realtime is disabled")))
		return
	}
	claims := claimsFrom(r.Context())

	events := make(chan realtime.Event, s.config.StreamBuffer)
	ch, err := s.subscriber.Watch(claims.UserID, claims.Role, claims.TeamID, func(ev realtime.Event) {
		select {
		case events <- ev:
		default:
			s.logger.Warn("stream buffer full, dropping event", map[string]interface{}{
				"userId": claims.UserID,
				"table":  ev.Table,
			})
		}
	})
	if err != nil {
		writeError(w, commonerrors.NewRealtimeSubscribeFailedError(err))
		return
	}
	defer s.subscriber.Release(ch)

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(event string, data interface{}) bool {
		payload, err := json.Marshal(data)
		if err != nil {
			s.logger.Error("encode stream event", map[string]interface{}{"error": err})
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("ready", map[string]string{"channel": ch.Key()}) {
		return
	}

	heartbeat := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch.Done():
			send("closed", map[string]string{"channel": ch.Key()})
			return
		case ev := <-events:
			if !send("notification", ev) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}
