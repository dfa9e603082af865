package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/ports"
)

// UserRepo reads and seeds users with plain SQL.
type UserRepo struct{}

func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

// CreateUser inserts u. The caller assigns the ID.
func (repo *UserRepo) CreateUser(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	return tx.QueryRow(ctx, `
		INSERT INTO users (id, first_name, last_name, email, phone, avatar, role, status, preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET updated_at = users.updated_at
		RETURNING created_at, updated_at
	`,
		u.ID, u.FirstName, u.LastName, u.Email, u.Phone, u.Avatar,
		u.Role.String(), u.Status.String(), prefs,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByID returns one user by id.
func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out        user.User
		roleText   string
		statusText string
		prefsRaw   []byte
	)
	err = tx.QueryRow(ctx, `
		SELECT id, created_at, updated_at, first_name, last_name, email, phone, avatar,
		       role, status, preferences
		FROM users
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.FirstName, &out.LastName, &out.Email,
		&out.Phone, &out.Avatar, &roleText, &statusText, &prefsRaw,
	)
	if err != nil {
		return nil, notFound(err)
	}

	out.Role = user.Role(roleText)
	out.Status = user.Status(statusText)
	out.Preferences = user.DefaultNotificationPrefs()
	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &out.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return &out, nil
}
