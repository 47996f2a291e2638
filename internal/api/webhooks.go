package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/siteplanhq/notify/internal/model"
)

// inboundPayload is the Cloud API webhook envelope, reduced to the fields
// the window check needs.
type inboundPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundEvent `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundEvent struct {
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (p *inboundPayload) events() []inboundEvent {
	var out []inboundEvent
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			out = append(out, c.Value.Messages...)
		}
	}
	return out
}

// receivedAt parses the provider's unix-seconds timestamp, falling back to
// the current time when it is missing or malformed.
func (m inboundEvent) receivedAt() time.Time {
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC()
}

// InboundWhatsApp records customer-initiated messages delivered by the
// provider webhook. Their timestamps are what opens the 24h freeform
// conversation window for a phone number.
func (h *Handler) InboundWhatsApp(w http.ResponseWriter, r *http.Request) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	recorded := 0
	for _, ev := range payload.events() {
		if ev.From == "" {
			continue
		}

		msg := &model.InboundMessage{
			Phone:      ev.From,
			Body:       ev.Text.Body,
			ReceivedAt: ev.receivedAt(),
		}
		if err := h.inbound.Record(r.Context(), msg); err != nil {
			slog.Error("inbound message record failed", "phone", ev.From, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		recorded++
	}

	if recorded > 0 {
		slog.Info("inbound messages recorded", "count", recorded)
	}
	writeJSON(w, http.StatusOK, map[string]any{"recorded": recorded})
}
