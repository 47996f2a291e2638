package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/siteplanhq/notify/internal/model"
)

type PostgresUserRepo struct {
	db *sql.DB
}

func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, role, status
		FROM users
		WHERE id = $1
	`, id)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUser(scan func(...any) error) (*model.User, error) {
	var u model.User
	var status string

	if err := scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &status); err != nil {
		return nil, err
	}
	u.Status = model.UserStatus(status)
	return &u, nil
}
