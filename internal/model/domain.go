package model

import "time"

type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserPending UserStatus = "pending"
)

type User struct {
	ID     string
	Name   string
	Email  string
	Phone  string
	Role   string
	Status UserStatus
}

// Drawing carries only the fields the reminder scheduler and triggers read;
// the rest of the drawing document belongs to the main application.
type Drawing struct {
	ID        string
	ProjectID string
	Title     string
	OwnerID   string

	UnderReview   bool
	Approved      bool
	NotApplicable bool

	SubmittedAt    *time.Time
	RemindersSent  int
	LastReminderAt *time.Time
}

// Notification is an in-app notification row, written synchronously by the
// trigger layer before any external delivery is attempted.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	LinkPath  string
	Read      bool
	CreatedAt time.Time
}

// InboundMessage records a customer-initiated WhatsApp message; its
// timestamp drives the 24-hour freeform window check.
type InboundMessage struct {
	ID         int64
	Phone      string
	Body       string
	ReceivedAt time.Time
}
