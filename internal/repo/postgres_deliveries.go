package repo

import (
	"context"
	"database/sql"

	"github.com/siteplanhq/notify/internal/model"
)

type PostgresDeliveryLogRepo struct {
	db *sql.DB
}

func NewPostgresDeliveryLogRepo(db *sql.DB) *PostgresDeliveryLogRepo {
	return &PostgresDeliveryLogRepo{db: db}
}

func (r *PostgresDeliveryLogRepo) Append(ctx context.Context, e *model.DeliveryLogEntry) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO delivery_log
			(job_id, kind, recipient, body, status,
			 provider_message_id, error_detail, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		e.JobID, string(e.Kind), e.Recipient, e.Body, string(e.Status),
		e.ProviderMessageID, e.ErrorDetail, e.AttemptedAt.UTC(),
	).Scan(&e.ID)
}

func (r *PostgresDeliveryLogRepo) List(ctx context.Context, limit, offset int) ([]model.DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, kind, recipient, body, status,
		       provider_message_id, error_detail, attempted_at
		FROM delivery_log
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeliveryLogEntry
	for rows.Next() {
		var e model.DeliveryLogEntry
		var kind, status string

		if err := rows.Scan(
			&e.ID, &e.JobID, &kind, &e.Recipient, &e.Body, &status,
			&e.ProviderMessageID, &e.ErrorDetail, &e.AttemptedAt,
		); err != nil {
			return nil, err
		}

		e.Kind = model.JobKind(kind)
		e.Status = model.DeliveryStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
