package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/scan-attendance/internal/persistence"
)

// EnrollmentRepository implements persistence.EnrollmentRepository using SQLite.
// A single enrollments row backs both sides of the relation.
type EnrollmentRepository struct {
	pool  *ConnectionPool
	retry *RetryHelper
}

// NewEnrollmentRepository creates a new SQLite enrollment repository.
func NewEnrollmentRepository(pool *ConnectionPool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool, retry: NewRetryHelper(DefaultRetryConfig())}
}

// Enroll links the person and the session. Existing pairs keep their original position.
func (r *EnrollmentRepository) Enroll(ctx context.Context, personID, sessionID string) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := requireRow(ctx, tx, `SELECT 1 FROM persons WHERE id = ?`, personID); err != nil {
				return err
			}
			if err := requireRow(ctx, tx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO enrollments (person_id, session_id) VALUES (?, ?) ON CONFLICT (person_id, session_id) DO NOTHING`,
				personID, sessionID)
			return err
		})
	})
}

func requireRow(ctx context.Context, tx *sql.Tx, query string, arg any) error {
	var one int
	if err := tx.QueryRowContext(ctx, query, arg).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return persistence.ErrNotFound
		}
		return err
	}
	return nil
}
