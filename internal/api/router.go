package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /magic/{token}", h.RedeemMagicLink)
	mux.HandleFunc("GET /magic/{token}/validate", h.ValidateMagicLink)

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("POST /v1/webhooks/whatsapp", h.InboundWhatsApp)

	mux.HandleFunc("GET /v1/deliveries", h.ListDeliveries)
	mux.HandleFunc("GET /v1/queue/status", h.QueueStatus)
	mux.HandleFunc("GET /v1/cache/stats", h.CacheStats)

	mux.HandleFunc("GET /v1/reminders/status", h.ReminderStatus)
	mux.HandleFunc("POST /v1/reminders/start", h.ReminderStart)
	mux.HandleFunc("POST /v1/reminders/stop", h.ReminderStop)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("siteplan-notify"))
	})

	return mux
}
