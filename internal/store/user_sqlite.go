package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/util"
)

// Compile-time check that SQLiteStore implements UserRepo.
var _ UserRepo = (*SQLiteStore)(nil)

const sqliteUserColumns = `id, email, name, created_at, updated_at, deleted_at`

func (s *SQLiteStore) CreateUser(dbtx DBTX, email, name string) (models.User, error) {
	if dbtx == nil {
		dbtx = s.db
	}
	now := time.Now()
	user := models.User{
		ID:        util.GenerateUserID(),
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := dbtx.Exec(
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, email, name, now, now,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("create user failed: %w", err)
	}
	slog.Debug("SQLiteStore.CreateUser", "id", user.ID, "email", email)
	return user, nil
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	return s.getUserWhere(`id = ?`, id)
}

func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	return s.getUserWhere(`email = ?`, email)
}

func (s *SQLiteStore) getUserWhere(predicate string, arg interface{}) (*models.User, error) {
	var u models.User
	var deletedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT `+sqliteUserColumns+` FROM users WHERE `+predicate+` AND deleted_at IS NULL`, arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) ListActiveUsers() ([]models.User, error) {
	rows, err := s.db.Query(
		`SELECT ` + sqliteUserColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active users failed: %w", err)
	}
	return collectUsers(rows)
}

func (s *SQLiteStore) UpdateUser(id, email, name string) (*models.User, error) {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		email, name, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user rows affected check failed: %w", err)
	}
	if n == 0 {
		return nil, models.ErrUserNotFound
	}
	slog.Debug("SQLiteStore.UpdateUser", "id", id)
	return s.GetUser(id)
}

func (s *SQLiteStore) SoftDeleteUser(id string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("soft delete user failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete rows affected check failed: %w", err)
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	slog.Debug("SQLiteStore.SoftDeleteUser", "id", id)
	return nil
}
