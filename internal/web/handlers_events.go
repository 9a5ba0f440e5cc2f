package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/JonMunkholm/ClientImport/internal/notify"
)

// eventHeartbeat keeps idle event streams open through proxies.
const eventHeartbeat = 25 * time.Second

// handleEvents streams import completions as Server-Sent Events. Event ids
// are "<epoch>-<seq>". Clients reconnecting with Last-Event-ID (or
// ?lastEventId=) first get the retained events they missed; an id from an
// earlier server instance replays everything retained.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, r, http.StatusNotFound, "EVT001", "Event stream is not available", "")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "EVT002", "Streaming is not supported", "")
		return
	}

	var (
		backlog     []notify.ImportCompleted
		events      <-chan notify.ImportCompleted
		unsubscribe func()
	)
	if after, resuming := resumePoint(r, s.hub.Epoch()); resuming {
		backlog, events, unsubscribe = s.hub.SubscribeAfter(after)
	} else {
		events, unsubscribe = s.hub.Subscribe()
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	for _, ev := range backlog {
		writeEvent(w, s.hub.Epoch(), ev)
	}
	flusher.Flush()

	heartbeat := time.NewTicker(eventHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Fprint(w, "event: close\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			writeEvent(w, s.hub.Epoch(), ev)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// resumePoint reads the client's last event id. resuming is false for a
// client that sent none. An id from another epoch resumes from 0.
func resumePoint(r *http.Request, epoch string) (after uint64, resuming bool) {
	id := r.Header.Get("Last-Event-ID")
	if id == "" {
		id = r.URL.Query().Get("lastEventId")
	}
	if id == "" {
		return 0, false
	}
	idEpoch, seq, ok := strings.Cut(id, "-")
	if !ok || idEpoch != epoch {
		return 0, true
	}
	return cast.ToUint64(seq), true
}

func writeEvent(w http.ResponseWriter, epoch string, ev notify.ImportCompleted) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s-%d\nevent: import\ndata: %s\n\n", epoch, ev.Seq, data)
}
