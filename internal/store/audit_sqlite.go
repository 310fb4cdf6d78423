package store

import (
	"fmt"

	"github.com/pulseboard/pulseboard/internal/models"
)

// Compile-time check that SQLiteStore implements AuditRepo.
var _ AuditRepo = (*SQLiteStore)(nil)

func (s *SQLiteStore) ListAuditLogs(limit int) ([]models.AuditLog, error) {
	rows, err := s.db.Query(
		`SELECT id, actor, action, target_id, metadata, created_at FROM audit_logs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs failed: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit log iteration failed: %w", err)
	}
	return logs, nil
}
