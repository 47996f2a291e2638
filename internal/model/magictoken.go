package model

import "time"

type DestinationType string

const (
	DestProject          DestinationType = "project"
	DestDrawing          DestinationType = "drawing"
	DestDrawingReview    DestinationType = "drawing_review"
	DestImageReview      DestinationType = "image_review"
	DestComment          DestinationType = "comment"
	DestDashboard        DestinationType = "dashboard"
	DestPendingApprovals DestinationType = "pending_approvals"
)

// MagicToken is the server-side record behind an opaque single-use login
// link. The token string itself carries no decodable context; everything is
// looked up by it.
type MagicToken struct {
	Token     string
	UserID    string
	UserEmail string
	UserRole  string

	DestType    DestinationType
	DestID      string
	ExtraParams map[string]string

	IssuedAt  time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

// Valid reports whether the token could still be consumed at instant now.
func (t *MagicToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
