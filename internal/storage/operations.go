package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OperationInfo contains the locally recorded metadata of one remote
// operation.
type OperationInfo struct {
	BuildID     string    `json:"build_id"`
	Operation   string    `json:"operation"` // build, codesign, cleanup
	Platform    string    `json:"platform"`
	ProjectName string    `json:"project_name"`
	SubmittedAt time.Time `json:"submitted_at"`
	State       string    `json:"state"` // PENDING, STARTED, SUCCESS, FAILURE
	ResultURL   string    `json:"result_url"`
	LogsURL     string    `json:"logs_url"`
	Artifacts   []string  `json:"artifacts"`
	Error       string    `json:"error"`
}

// OperationStore handles operation history persistence in SQLite
type OperationStore struct {
	db            *DB
	maxOperations int
}

// NewOperationStore creates a new operation store
func NewOperationStore(db *DB, maxOperations int) *OperationStore {
	if maxOperations <= 0 {
		maxOperations = 1000 // Default maximum history rows
	}
	return &OperationStore{
		db:            db,
		maxOperations: maxOperations,
	}
}

// RecordOperation stores or refreshes an operation row
func (s *OperationStore) RecordOperation(op OperationInfo) error {
	query := `
		INSERT INTO operations (
			build_id, operation, platform, project_name, submitted_at,
			state, result_url, logs_url, artifacts, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id) DO UPDATE SET
			operation = excluded.operation,
			platform = excluded.platform,
			project_name = excluded.project_name,
			state = excluded.state,
			result_url = excluded.result_url,
			logs_url = excluded.logs_url,
			artifacts = excluded.artifacts,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		op.BuildID, op.Operation, op.Platform, op.ProjectName, op.SubmittedAt,
		op.State, op.ResultURL, op.LogsURL, strings.Join(op.Artifacts, "\n"), op.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}

	if err := s.cleanupOldOperations(); err != nil {
		return fmt.Errorf("failed to cleanup old operations: %w", err)
	}

	return nil
}

// UpdateOperationState updates only the state and error text of a row
func (s *OperationStore) UpdateOperationState(buildID, state, errText string) error {
	query := `
		UPDATE operations
		SET state = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE build_id = ?
	`
	result, err := s.db.Exec(query, state, errText, buildID)
	if err != nil {
		return fmt.Errorf("failed to update operation state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("operation not found: %s", buildID)
	}
	return nil
}

// GetOperation fetches one operation by build ID
func (s *OperationStore) GetOperation(buildID string) (OperationInfo, error) {
	query := `
		SELECT build_id, operation, platform, project_name, submitted_at,
		       state, result_url, logs_url, artifacts, error
		FROM operations
		WHERE build_id = ?
	`
	row := s.db.QueryRow(query, buildID)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return op, fmt.Errorf("operation not found: %s", buildID)
	}
	if err != nil {
		return op, fmt.Errorf("failed to get operation: %w", err)
	}
	return op, nil
}

// ListOperations returns the most recent operations first
func (s *OperationStore) ListOperations(limit int) ([]OperationInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT build_id, operation, platform, project_name, submitted_at,
		       state, result_url, logs_url, artifacts, error
		FROM operations
		ORDER BY submitted_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var ops []OperationInfo
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (OperationInfo, error) {
	var op OperationInfo
	var artifacts string
	err := row.Scan(
		&op.BuildID, &op.Operation, &op.Platform, &op.ProjectName, &op.SubmittedAt,
		&op.State, &op.ResultURL, &op.LogsURL, &artifacts, &op.Error,
	)
	if err != nil {
		return op, err
	}
	if len(artifacts) > 0 {
		op.Artifacts = strings.Split(artifacts, "\n")
	}
	return op, nil
}

// cleanupOldOperations drops the oldest rows beyond the configured maximum
func (s *OperationStore) cleanupOldOperations() error {
	query := `
		DELETE FROM operations
		WHERE id NOT IN (
			SELECT id FROM operations
			ORDER BY submitted_at DESC
			LIMIT ?
		)
	`
	_, err := s.db.Exec(query, s.maxOperations)
	return err
}
