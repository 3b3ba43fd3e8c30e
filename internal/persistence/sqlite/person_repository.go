package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/scan-attendance/internal/persistence"
)

// timestampLayout is fixed width so stored values sort chronologically as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// PersonRepository implements persistence.PersonRepository using SQLite.
type PersonRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewPersonRepository creates a new SQLite person repository.
func NewPersonRepository(pool *ConnectionPool) *PersonRepository {
	return &PersonRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreatePerson inserts a new person. Enrollment lists are ignored.
func (r *PersonRepository) CreatePerson(ctx context.Context, person persistence.Person) error {
	if err := validatePerson(person); err != nil {
		return err
	}
	createdAt, updatedAt := recordTimestamps(person.CreatedAt, person.UpdatedAt)

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO persons (id, display_name, biometric_token, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			person.ID,
			person.DisplayName,
			nullableString(person.BiometricToken),
			formatTimestamp(createdAt),
			formatTimestamp(updatedAt),
		)
		return err
	})
}

// UpdatePerson replaces the display name and token of an existing person.
func (r *PersonRepository) UpdatePerson(ctx context.Context, person persistence.Person) error {
	if err := validatePerson(person); err != nil {
		return err
	}
	_, updatedAt := recordTimestamps(person.CreatedAt, person.UpdatedAt)

	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `
			UPDATE persons
			SET display_name = ?, biometric_token = ?, updated_at = ?
			WHERE id = ?`,
			person.DisplayName,
			nullableString(person.BiometricToken),
			formatTimestamp(updatedAt),
			person.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// GetPerson retrieves a person and its enrolled session ids.
func (r *PersonRepository) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	if id == "" {
		return persistence.Person{}, persistence.ErrNotFound
	}
	return r.getPersonWhere(ctx, "id = ?", id)
}

// GetPersonByToken retrieves the person holding token.
func (r *PersonRepository) GetPersonByToken(ctx context.Context, token string) (persistence.Person, error) {
	if token == "" {
		return persistence.Person{}, persistence.ErrNotFound
	}
	return r.getPersonWhere(ctx, "biometric_token = ?", token)
}

func (r *PersonRepository) getPersonWhere(ctx context.Context, where string, arg any) (persistence.Person, error) {
	db := r.pool.DB()
	row := db.QueryRowContext(ctx,
		`SELECT id, display_name, biometric_token, created_at, updated_at FROM persons WHERE `+where, arg)

	person, err := scanPerson(row)
	if err != nil {
		return persistence.Person{}, r.mapper.MapError(err)
	}

	enrolled, err := enrollmentsBy(ctx, db, "person_id", person.ID)
	if err != nil {
		return persistence.Person{}, err
	}
	person.EnrolledSessionIDs = enrolled[person.ID]
	if person.EnrolledSessionIDs == nil {
		person.EnrolledSessionIDs = []string{}
	}
	return person, nil
}

// ListPersons returns all persons ordered by creation time then id.
func (r *PersonRepository) ListPersons(ctx context.Context) ([]persistence.Person, error) {
	db := r.pool.DB()
	rows, err := db.QueryContext(ctx, `
		SELECT id, display_name, biometric_token, created_at, updated_at
		FROM persons
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	persons := make([]persistence.Person, 0)
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return nil, r.mapper.MapError(err)
		}
		persons = append(persons, person)
	}
	if err := rows.Close(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	enrolled, err := enrollmentsBy(ctx, db, "person_id", "")
	if err != nil {
		return nil, err
	}
	for i := range persons {
		persons[i].EnrolledSessionIDs = enrolled[persons[i].ID]
		if persons[i].EnrolledSessionIDs == nil {
			persons[i].EnrolledSessionIDs = []string{}
		}
	}
	return persons, nil
}

// DeletePerson removes a person and its enrollments in one transaction. Facts are kept.
func (r *PersonRepository) DeletePerson(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE person_id = ?`, id); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
			if err != nil {
				return err
			}
			return requireAffected(result)
		})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (persistence.Person, error) {
	var (
		person               persistence.Person
		token                sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&person.ID, &person.DisplayName, &token, &createdAt, &updatedAt); err != nil {
		return persistence.Person{}, err
	}
	if token.Valid {
		value := token.String
		person.BiometricToken = &value
	}

	var err error
	if person.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Person{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if person.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Person{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return person, nil
}

// enrollmentsBy groups enrollment rows by key column ("person_id" or
// "session_id") in enrollment order. An empty id loads every row.
func enrollmentsBy(ctx context.Context, q querier, key, id string) (map[string][]string, error) {
	other := "session_id"
	if key == "session_id" {
		other = "person_id"
	}

	query := fmt.Sprintf(`SELECT %s, %s FROM enrollments`, key, other)
	var args []any
	if id != "" {
		query += fmt.Sprintf(` WHERE %s = ?`, key)
		args = append(args, id)
	}
	query += ` ORDER BY sequence ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewErrorMapper().MapError(err)
	}
	defer rows.Close()

	grouped := make(map[string][]string)
	for rows.Next() {
		var owner, target string
		if err := rows.Scan(&owner, &target); err != nil {
			return nil, NewErrorMapper().MapError(err)
		}
		grouped[owner] = append(grouped[owner], target)
	}
	if err := rows.Err(); err != nil {
		return nil, NewErrorMapper().MapError(err)
	}
	return grouped, nil
}

func validatePerson(person persistence.Person) error {
	if strings.TrimSpace(person.ID) == "" || strings.TrimSpace(person.DisplayName) == "" {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func recordTimestamps(createdAt, updatedAt time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return createdAt, updatedAt
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, value)
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

