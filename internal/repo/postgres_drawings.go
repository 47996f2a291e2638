package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/siteplanhq/notify/internal/model"
)

type PostgresDrawingRepo struct {
	db *sql.DB
}

func NewPostgresDrawingRepo(db *sql.DB) *PostgresDrawingRepo {
	return &PostgresDrawingRepo{db: db}
}

const drawingColumns = `
	id, project_id, title, owner_id,
	under_review, approved, not_applicable,
	submitted_at, reminders_sent, last_reminder_at`

func (r *PostgresDrawingRepo) ListAwaitingApproval(ctx context.Context) ([]model.Drawing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+drawingColumns+`
		FROM drawings
		WHERE under_review = true
		  AND approved = false
		  AND not_applicable = false
		ORDER BY submitted_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Drawing
	for rows.Next() {
		d, err := scanDrawing(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PostgresDrawingRepo) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE drawings
		SET under_review = true,
		    submitted_at = $2,
		    reminders_sent = 0,
		    last_reminder_at = NULL
		WHERE id = $1
	`, id, at.UTC())
	return err
}

func (r *PostgresDrawingRepo) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	// One update: stamp and increment together.
	_, err := r.db.ExecContext(ctx, `
		UPDATE drawings
		SET last_reminder_at = $2,
		    reminders_sent = reminders_sent + 1
		WHERE id = $1
	`, id, at.UTC())
	return err
}

func scanDrawing(scan func(...any) error) (*model.Drawing, error) {
	var d model.Drawing
	var submittedAt, lastReminderAt sql.NullTime

	err := scan(
		&d.ID, &d.ProjectID, &d.Title, &d.OwnerID,
		&d.UnderReview, &d.Approved, &d.NotApplicable,
		&submittedAt, &d.RemindersSent, &lastReminderAt,
	)
	if err != nil {
		return nil, err
	}

	if submittedAt.Valid {
		t := submittedAt.Time
		d.SubmittedAt = &t
	}
	if lastReminderAt.Valid {
		t := lastReminderAt.Time
		d.LastReminderAt = &t
	}
	return &d, nil
}
