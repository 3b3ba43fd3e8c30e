package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/scan-attendance/internal/persistence"
)

// factTimeLayout keeps the recording offset so the local date survives a round trip.
const factTimeLayout = time.RFC3339Nano

// FactRepository implements persistence.FactRepository using SQLite.
type FactRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewFactRepository creates a new SQLite fact repository.
func NewFactRepository(pool *ConnectionPool) *FactRepository {
	return &FactRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// SaveFact appends an attendance fact.
func (r *FactRepository) SaveFact(ctx context.Context, fact persistence.AttendanceFact) error {
	if strings.TrimSpace(fact.ID) == "" || fact.PersonID == "" || fact.SessionID == "" || fact.RecordedAt.IsZero() {
		return persistence.ErrConstraintViolation
	}
	status := fact.Status
	if status == "" {
		status = persistence.StatusPresent
	}

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO attendance_facts (id, person_id, session_id, recorded_at, recorded_on, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			fact.ID,
			fact.PersonID,
			fact.SessionID,
			fact.RecordedAt.Format(factTimeLayout),
			fact.RecordedOn(),
			status,
		)
		return err
	})
}

// ListFactsForSessionOnDate returns the session's facts for date in insertion order.
func (r *FactRepository) ListFactsForSessionOnDate(ctx context.Context, sessionID, date string) ([]persistence.AttendanceFact, error) {
	return r.listFacts(ctx, `session_id = ? AND recorded_on = ?`, sessionID, date)
}

// ListFactsForPerson returns the person's facts in insertion order.
func (r *FactRepository) ListFactsForPerson(ctx context.Context, personID string) ([]persistence.AttendanceFact, error) {
	return r.listFacts(ctx, `person_id = ?`, personID)
}

func (r *FactRepository) listFacts(ctx context.Context, where string, args ...any) ([]persistence.AttendanceFact, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, person_id, session_id, recorded_at, status
		FROM attendance_facts
		WHERE `+where+`
		ORDER BY sequence ASC`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	facts := make([]persistence.AttendanceFact, 0)
	for rows.Next() {
		var (
			fact       persistence.AttendanceFact
			recordedAt string
		)
		if err := rows.Scan(&fact.ID, &fact.PersonID, &fact.SessionID, &recordedAt, &fact.Status); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if fact.RecordedAt, err = time.Parse(factTimeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return facts, nil
}
