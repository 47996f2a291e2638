package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/siteplanhq/notify/internal/cache"
	"github.com/siteplanhq/notify/internal/magiclink"
	"github.com/siteplanhq/notify/internal/model"
	"github.com/siteplanhq/notify/internal/queue"
	"github.com/siteplanhq/notify/internal/repo"
	"github.com/siteplanhq/notify/internal/scheduler"
	"github.com/siteplanhq/notify/internal/session"
)

// Redemption failure codes surfaced to the browser. Deliberately coarse:
// a missing, used and expired token all map to link_expired so the
// response leaks nothing about which it was.
const (
	errLinkExpired    = "link_expired"
	errUserNotFound   = "user_not_found"
	errAccountPending = "account_pending"
	errServerError    = "server_error"
)

type Handler struct {
	magic      *magiclink.Service
	sessions   *session.Manager
	users      repo.UserRepository
	deliveries repo.DeliveryLogRepository
	inbound    repo.InboundRepository
	reminders  *scheduler.Scheduler
	queue      *queue.Queue
	worker     *queue.Worker
	cache      cache.Cache
}

func NewHandler(
	magic *magiclink.Service,
	sessions *session.Manager,
	users repo.UserRepository,
	deliveries repo.DeliveryLogRepository,
	inbound repo.InboundRepository,
	reminders *scheduler.Scheduler,
	q *queue.Queue,
	worker *queue.Worker,
	c cache.Cache,
) *Handler {
	return &Handler{
		magic:      magic,
		sessions:   sessions,
		users:      users,
		deliveries: deliveries,
		inbound:    inbound,
		reminders:  reminders,
		queue:      q,
		worker:     worker,
		cache:      c,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// RedeemMagicLink consumes the token, issues the session cookie and
// redirects into the application. All failures redirect to the login page
// with an opaque code.
func (h *Handler) RedeemMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	rec, err := h.magic.Consume(r.Context(), token)
	if errors.Is(err, magiclink.ErrInvalidToken) {
		// Logged distinctly server-side; indistinct to the browser.
		slog.Info("magic link rejected", "reason", "invalid_or_used_or_expired")
		h.redirectLogin(w, r, errLinkExpired)
		return
	}
	if err != nil {
		slog.Error("magic link consume failed", "error", err)
		h.redirectLogin(w, r, errServerError)
		return
	}

	user, err := h.users.FindByID(r.Context(), rec.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		slog.Warn("magic link user no longer exists", "user_id", rec.UserID)
		h.redirectLogin(w, r, errUserNotFound)
		return
	}
	if err != nil {
		slog.Error("magic link user lookup failed", "user_id", rec.UserID, "error", err)
		h.redirectLogin(w, r, errServerError)
		return
	}
	if user.Status == model.UserPending {
		slog.Info("magic link for pending account", "user_id", user.ID)
		h.redirectLogin(w, r, errAccountPending)
		return
	}

	sessionToken, err := h.sessions.Issue(user.ID, rec.UserRole)
	if err != nil {
		slog.Error("session issue failed", "user_id", user.ID, "error", err)
		h.redirectLogin(w, r, errServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sessionToken,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL() / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	dest := magiclink.ResolveDestination(rec)
	slog.Info("magic link redeemed", "user_id", user.ID, "dest", dest)
	http.Redirect(w, r, dest, http.StatusFound)
}

// ValidateMagicLink is the non-consuming preflight check.
func (h *Handler) ValidateMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	rec, err := h.magic.Validate(r.Context(), token)
	if errors.Is(err, magiclink.ErrInvalidToken) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":            true,
		"destination_type": rec.DestType,
		"expires_at":       rec.ExpiresAt,
	})
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.deliveries.List(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	running := false
	if h.worker != nil {
		running = h.worker.IsRunning()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depth":          h.queue.Len(),
		"worker_running": running,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

func (h *Handler) ReminderStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.reminders.IsRunning()})
}

func (h *Handler) ReminderStart(w http.ResponseWriter, r *http.Request) {
	h.reminders.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.reminders.IsRunning()})
}

func (h *Handler) ReminderStop(w http.ResponseWriter, r *http.Request) {
	h.reminders.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.reminders.IsRunning()})
}

func (h *Handler) redirectLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?error="+code, http.StatusFound)
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
