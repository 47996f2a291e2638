// Package reminder escalates drawings that sit in review past a grace
// period. Eligibility is a pure function of absolute timestamps, so a
// missed or restarted scheduler never double-sends within an hour window
// and needs no state beyond what is already on the drawing.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/siteplanhq/notify/internal/model"
	"github.com/siteplanhq/notify/internal/repo"
)

// Escalator sends the actual reminder; implemented by the trigger layer.
type Escalator interface {
	NotifyApprovalReminder(ctx context.Context, d *model.Drawing) error
}

type Scanner struct {
	drawings  repo.DrawingRepository
	escalator Escalator

	grace     time.Duration
	rateLimit time.Duration

	now func() time.Time
}

func NewScanner(drawings repo.DrawingRepository, escalator Escalator, grace, rateLimit time.Duration) (*Scanner, error) {
	if drawings == nil {
		return nil, errors.New("drawings repository must not be nil")
	}
	if escalator == nil {
		return nil, errors.New("escalator must not be nil")
	}
	if grace < 0 {
		return nil, errors.New("grace must be >= 0")
	}
	if rateLimit <= 0 {
		return nil, errors.New("rateLimit must be > 0")
	}
	return &Scanner{
		drawings:  drawings,
		escalator: escalator,
		grace:     grace,
		rateLimit: rateLimit,
		now:       time.Now,
	}, nil
}

// Tick scans every drawing still awaiting approval and escalates the
// eligible ones. Passed to a scheduler; safe to run on any cadence.
func (s *Scanner) Tick(ctx context.Context) {
	drawings, err := s.drawings.ListAwaitingApproval(ctx)
	if err != nil {
		slog.Error("reminder scan failed", "error", err)
		return
	}

	now := s.now()
	sent := 0
	for i := range drawings {
		d := &drawings[i]
		if !s.eligible(d, now) {
			continue
		}

		if err := s.escalator.NotifyApprovalReminder(ctx, d); err != nil {
			slog.Error("reminder escalation failed", "drawing_id", d.ID, "error", err)
			continue
		}

		if err := s.drawings.MarkReminderSent(ctx, d.ID, now); err != nil {
			slog.Error("reminder stamp failed", "drawing_id", d.ID, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		slog.Info("reminder scan complete", "scanned", len(drawings), "sent", sent)
	}
}

// eligible: past the grace period since submission and at least rateLimit
// since the previous reminder.
func (s *Scanner) eligible(d *model.Drawing, now time.Time) bool {
	if d.SubmittedAt == nil {
		return false
	}
	if now.Sub(*d.SubmittedAt) < s.grace {
		return false
	}
	if d.LastReminderAt != nil && now.Sub(*d.LastReminderAt) < s.rateLimit {
		return false
	}
	return true
}
