package server

import (
	"encoding/json"
	"net/http"

	"igcurator/pkg/events"
)

// Observers must never block a broadcast, so each connection gets a buffered
// queue; a client that falls this far behind loses the oldest events, which
// is acceptable for a progress feed.
const streamBuffer = 256

// handleEvents streams the event log over Server-Sent Events: the retained
// history first, then live events until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	queue := make(chan events.Event, streamBuffer)
	unsubscribe := s.broadcaster.Subscribe(events.ObserverFunc(func(e events.Event) {
		select {
		case queue <- e:
		default:
		}
	}))
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-queue:
			data, err := json.Marshal(e)
			if err != nil {
				s.logger.WithError(err).Error("failed to encode event")
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
