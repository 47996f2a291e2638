package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/siteplanhq/notify/internal/model"
)

type PostgresInboundRepo struct {
	db *sql.DB
}

func NewPostgresInboundRepo(db *sql.DB) *PostgresInboundRepo {
	return &PostgresInboundRepo{db: db}
}

func (r *PostgresInboundRepo) Record(ctx context.Context, m *model.InboundMessage) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO inbound_messages (phone, body, received_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, m.Phone, m.Body, m.ReceivedAt.UTC()).Scan(&m.ID)
}

func (r *PostgresInboundRepo) LastInboundAt(ctx context.Context, phone string) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT received_at
		FROM inbound_messages
		WHERE phone = $1
		ORDER BY received_at DESC
		LIMIT 1
	`, phone).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}
