package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/siteplanhq/notify/internal/model"
)

type PostgresTokenRepo struct {
	db *sql.DB
}

func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

func (r *PostgresTokenRepo) Insert(ctx context.Context, t *model.MagicToken) error {
	extra, err := json.Marshal(t.ExtraParams)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO magic_tokens
			(token, user_id, user_email, user_role,
			 dest_type, dest_id, extra_params,
			 issued_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
	`,
		t.Token, t.UserID, t.UserEmail, t.UserRole,
		string(t.DestType), t.DestID, extra,
		t.IssuedAt, t.ExpiresAt,
	)
	return err
}

func (r *PostgresTokenRepo) Find(ctx context.Context, token string) (*model.MagicToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, user_email, user_role,
		       dest_type, dest_id, extra_params,
		       issued_at, expires_at, used, used_at
		FROM magic_tokens
		WHERE token = $1
	`, token)

	return scanToken(row)
}

func (r *PostgresTokenRepo) Consume(ctx context.Context, token string, now time.Time) (*model.MagicToken, error) {
	// Single conditional update; the WHERE clause is the validity check and
	// the RETURNING clause hands back the record in the same statement.
	row := r.db.QueryRowContext(ctx, `
		UPDATE magic_tokens
		SET used = true, used_at = $2
		WHERE token = $1 AND used = false AND expires_at > $2
		RETURNING token, user_id, user_email, user_role,
		          dest_type, dest_id, extra_params,
		          issued_at, expires_at, used, used_at
	`, token, now.UTC())

	return scanToken(row)
}

func (r *PostgresTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM magic_tokens
		WHERE expires_at <= $1 OR used = true
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanToken(row *sql.Row) (*model.MagicToken, error) {
	var t model.MagicToken
	var destType string
	var extra []byte
	var usedAt sql.NullTime

	err := row.Scan(
		&t.Token, &t.UserID, &t.UserEmail, &t.UserRole,
		&destType, &t.DestID, &extra,
		&t.IssuedAt, &t.ExpiresAt, &t.Used, &usedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.DestType = model.DestinationType(destType)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &t.ExtraParams); err != nil {
			return nil, err
		}
	}
	if usedAt.Valid {
		at := usedAt.Time
		t.UsedAt = &at
	}
	return &t, nil
}
