package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/util"
)

// Compile-time check that PostgresStore implements UserRepo.
var _ UserRepo = (*PostgresStore)(nil)

const postgresUserColumns = `id, email, name, created_at, updated_at, deleted_at`

func (s *PostgresStore) CreateUser(dbtx DBTX, email, name string) (models.User, error) {
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
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, email, name, now, now,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("create user failed: %w", err)
	}
	slog.Debug("PostgresStore.CreateUser", "id", user.ID, "email", email)
	return user, nil
}

func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	return s.getUserWhere(`id = $1`, id)
}

func (s *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	return s.getUserWhere(`email = $1`, email)
}

func (s *PostgresStore) getUserWhere(predicate string, arg interface{}) (*models.User, error) {
	var u models.User
	var deletedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT `+postgresUserColumns+` FROM users WHERE `+predicate+` AND deleted_at IS NULL`, arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListActiveUsers() ([]models.User, error) {
	rows, err := s.db.Query(
		`SELECT ` + postgresUserColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active users failed: %w", err)
	}
	return collectUsers(rows)
}

func (s *PostgresStore) UpdateUser(id, email, name string) (*models.User, error) {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE users SET email = $1, name = $2, updated_at = $3 WHERE id = $4 AND deleted_at IS NULL`,
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
	slog.Debug("PostgresStore.UpdateUser", "id", id)
	return s.GetUser(id)
}

func (s *PostgresStore) SoftDeleteUser(id string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE users SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, id,
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
	slog.Debug("PostgresStore.SoftDeleteUser", "id", id)
	return nil
}
