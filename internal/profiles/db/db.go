package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-events/internal/models"
	"ms-events/internal/profiles"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateUser(ctx context.Context, u models.User) error {
	_, err := d.Bun.NewInsert().Model(&u).Exec(ctx)
	if isUniqueViolation(err) {
		return profiles.ErrUsernameTaken
	}
	return err
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return d.getUser(ctx, "u.username = ?", username)
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return d.getUser(ctx, "u.id = ?", id)
}

func (d *DB) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profiles.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// isUniqueViolation recognizes duplicate keys from postgres and sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
