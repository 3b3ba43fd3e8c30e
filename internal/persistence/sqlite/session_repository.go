package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/scan-attendance/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
// Rules live in session_rules and keep their list order through position.
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateSession inserts the session and its rules in one transaction.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	createdAt, updatedAt := recordTimestamps(session.CreatedAt, session.UpdatedAt)

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sessions (id, name, owner, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				session.ID,
				session.Name,
				session.Owner,
				formatTimestamp(createdAt),
				formatTimestamp(updatedAt),
			)
			if err != nil {
				return err
			}
			return insertRules(ctx, tx, session.ID, session.Rules)
		})
	})
}

// UpdateSession replaces name, owner and rules of an existing session.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	_, updatedAt := recordTimestamps(session.CreatedAt, session.UpdatedAt)

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx, `
				UPDATE sessions SET name = ?, owner = ?, updated_at = ? WHERE id = ?`,
				session.Name,
				session.Owner,
				formatTimestamp(updatedAt),
				session.ID,
			)
			if err != nil {
				return err
			}
			if err := requireAffected(result); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_rules WHERE session_id = ?`, session.ID); err != nil {
				return err
			}
			return insertRules(ctx, tx, session.ID, session.Rules)
		})
	})
}

// GetSession retrieves a session with its rules and enrolled person ids.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	if id == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	db := r.pool.DB()
	row := db.QueryRowContext(ctx,
		`SELECT id, name, owner, created_at, updated_at FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	rules, err := rulesFor(ctx, db, id)
	if err != nil {
		return persistence.Session{}, err
	}
	session.Rules = rules[id]

	enrolled, err := enrollmentsBy(ctx, db, "session_id", id)
	if err != nil {
		return persistence.Session{}, err
	}
	session.EnrolledPersonIDs = enrolled[id]
	if session.EnrolledPersonIDs == nil {
		session.EnrolledPersonIDs = []string{}
	}
	return session, nil
}

// ListSessions returns all sessions ordered by creation time then id.
func (r *SessionRepository) ListSessions(ctx context.Context) ([]persistence.Session, error) {
	db := r.pool.DB()
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, owner, created_at, updated_at
		FROM sessions
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	sessions := make([]persistence.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, r.mapper.MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Close(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	rules, err := rulesFor(ctx, db, "")
	if err != nil {
		return nil, err
	}
	enrolled, err := enrollmentsBy(ctx, db, "session_id", "")
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Rules = rules[sessions[i].ID]
		sessions[i].EnrolledPersonIDs = enrolled[sessions[i].ID]
		if sessions[i].EnrolledPersonIDs == nil {
			sessions[i].EnrolledPersonIDs = []string{}
		}
	}
	return sessions, nil
}

// DeleteSession removes a session, its rules and its enrollments. Facts are kept.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE session_id = ?`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_rules WHERE session_id = ?`, id); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
			if err != nil {
				return err
			}
			return requireAffected(result)
		})
	})
}

func insertRules(ctx context.Context, tx *sql.Tx, sessionID string, rules []persistence.RecurrenceRule) error {
	for position, rule := range rules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_rules (session_id, position, day, start_time, end_time, location)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, position, rule.Day, rule.Start, rule.End, rule.Location,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule %d: %w", position, err)
		}
	}
	return nil
}

// rulesFor groups rules by session in list order. An empty id loads every session's rules.
func rulesFor(ctx context.Context, q querier, sessionID string) (map[string][]persistence.RecurrenceRule, error) {
	query := `SELECT session_id, day, start_time, end_time, location FROM session_rules`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY session_id ASC, position ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewErrorMapper().MapError(err)
	}
	defer rows.Close()

	grouped := make(map[string][]persistence.RecurrenceRule)
	for rows.Next() {
		var (
			owner string
			rule  persistence.RecurrenceRule
		)
		if err := rows.Scan(&owner, &rule.Day, &rule.Start, &rule.End, &rule.Location); err != nil {
			return nil, NewErrorMapper().MapError(err)
		}
		grouped[owner] = append(grouped[owner], rule)
	}
	if err := rows.Err(); err != nil {
		return nil, NewErrorMapper().MapError(err)
	}
	return grouped, nil
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session              persistence.Session
		createdAt, updatedAt string
	)
	if err := row.Scan(&session.ID, &session.Name, &session.Owner, &createdAt, &updatedAt); err != nil {
		return persistence.Session{}, err
	}

	var err error
	if session.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}

func validateSession(session persistence.Session) error {
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	return nil
}
