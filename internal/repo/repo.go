package repo

import (
	"context"
	"errors"
	"time"

	"github.com/siteplanhq/notify/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing. Token consumption
// deliberately folds "missing", "already used" and "expired" into this one
// error so callers cannot distinguish them.
var ErrNotFound = errors.New("not found")

type TokenRepository interface {
	Insert(ctx context.Context, token *model.MagicToken) error
	// Find is the read-only preflight lookup; it does not mutate.
	Find(ctx context.Context, token string) (*model.MagicToken, error)
	// Consume atomically flips the used flag on a token that is still
	// unused and unexpired at now, returning its record. One conditional
	// update, not a read-then-write pair: two concurrent redemptions can
	// never both succeed.
	Consume(ctx context.Context, token string, now time.Time) (*model.MagicToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type DeliveryLogRepository interface {
	Append(ctx context.Context, entry *model.DeliveryLogEntry) error
	List(ctx context.Context, limit, offset int) ([]model.DeliveryLogEntry, error)
}

type DrawingRepository interface {
	// ListAwaitingApproval returns drawings with under_review and neither
	// approved nor not_applicable set.
	ListAwaitingApproval(ctx context.Context) ([]model.Drawing, error)
	MarkSubmitted(ctx context.Context, id string, at time.Time) error
	// MarkReminderSent stamps last_reminder_at and increments the reminder
	// counter in one update.
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

type InboundRepository interface {
	Record(ctx context.Context, msg *model.InboundMessage) error
	// LastInboundAt returns the most recent customer-initiated message
	// timestamp for a phone number, or ErrNotFound if none exists.
	LastInboundAt(ctx context.Context, phone string) (time.Time, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *model.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}
