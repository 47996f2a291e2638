package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const inboundWebhookBody = `{
	"entry": [{
		"changes": [{
			"value": {
				"messages": [
					{"from": "+361234567", "timestamp": "1756300000", "text": {"body": "Is the floor plan ready?"}},
					{"from": "+367654321", "timestamp": "not-a-number", "text": {"body": "hello"}}
				]
			}
		}]
	}]
}`

func TestInboundWhatsApp_RecordsMessages(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/webhooks/whatsapp",
		strings.NewReader(inboundWebhookBody)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeJSON(t, rr); body["recorded"] != float64(2) {
		t.Fatalf("expected 2 recorded, got %v", body)
	}

	msgs := ts.inbound.messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(msgs))
	}
	if msgs[0].Phone != "+361234567" || msgs[0].Body != "Is the floor plan ready?" {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if want := time.Unix(1756300000, 0).UTC(); !msgs[0].ReceivedAt.Equal(want) {
		t.Fatalf("expected provider timestamp %v, got %v", want, msgs[0].ReceivedAt)
	}
	// Malformed timestamp falls back to the current time.
	if msgs[1].ReceivedAt.IsZero() {
		t.Fatalf("expected a fallback timestamp, got zero")
	}

	// The recorded message opens the freeform window for that phone.
	if _, err := ts.inbound.LastInboundAt(context.Background(), "+361234567"); err != nil {
		t.Fatalf("expected inbound timestamp for phone, got %v", err)
	}
}

func TestInboundWhatsApp_BadPayload(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/webhooks/whatsapp",
		strings.NewReader("not json")))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestInboundWhatsApp_EmptyEnvelope(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	// Status-only webhook deliveries carry no messages array.
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/webhooks/whatsapp",
		strings.NewReader(`{"entry":[{"changes":[{"value":{}}]}]}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := decodeJSON(t, rr); body["recorded"] != float64(0) {
		t.Fatalf("expected 0 recorded, got %v", body)
	}
}
