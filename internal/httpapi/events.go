package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
)

type eventWire struct {
	ID            string         `json:"id"`
	Offset        int            `json:"offset"`
	Kind          string         `json:"kind"`
	Source        string         `json:"source"`
	CorrelationID string         `json:"correlation_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Data          map[string]any `json:"data"`
}

type eventsResponse struct {
	Events []eventWire `json:"events"`
}

// handleEvents implements the §6.3 long-polling feed: GET
// /sessions/{id}/events?min_offset=N&source=...&kinds=...&wait_for_data=T.
// It re-checks the store every PollInterval until new events appear or T
// seconds elapse, then returns whatever it has (possibly none).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	q := r.URL.Query()

	minOffset, _ := strconv.Atoi(q.Get("min_offset"))

	var filter store.EventFilter
	if raw := q.Get("kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			filter.Kinds = append(filter.Kinds, model.EventKind(strings.TrimSpace(k)))
		}
	}
	if raw := q.Get("source"); raw != "" {
		for _, src := range strings.Split(raw, ",") {
			filter.Sources = append(filter.Sources, model.EventSource(strings.TrimSpace(src)))
		}
	}

	waitSeconds, _ := strconv.Atoi(q.Get("wait_for_data"))
	deadline := time.Now().Add(time.Duration(waitSeconds) * time.Second)

	ctx := r.Context()
	for {
		events, err := s.deps.Sessions.ListEventsSince(ctx, sessionID, minOffset, filter)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		if len(events) > 0 || waitSeconds <= 0 || time.Now().After(deadline) {
			writeJSON(w, http.StatusOK, eventsResponse{Events: toWire(events)})
			return
		}

		select {
		case <-ctx.Done():
			writeJSON(w, http.StatusOK, eventsResponse{Events: nil})
			return
		case <-time.After(s.deps.PollInterval):
		}
	}
}

func toWire(events []model.Event) []eventWire {
	out := make([]eventWire, 0, len(events))
	for _, ev := range events {
		out = append(out, eventWire{
			ID:            ev.ID,
			Offset:        ev.Offset,
			Kind:          string(ev.Kind),
			Source:        string(ev.Source),
			CorrelationID: ev.CorrelationID,
			CreatedAt:     ev.CreatedAt,
			Data:          ev.Data,
		})
	}
	return out
}
