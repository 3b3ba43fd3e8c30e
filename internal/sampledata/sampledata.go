// Package sampledata seeds a small demonstration roster.
package sampledata

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/scan-attendance/internal/application"
)

// Roster is the subset of the roster service used for seeding.
type Roster interface {
	CreatePerson(ctx context.Context, input application.CreatePersonInput) (application.Person, error)
	CreateSession(ctx context.Context, input application.CreateSessionInput) (application.Session, error)
	Enroll(ctx context.Context, personID, sessionID string) error
}

// Session ids of the seeded roster.
const (
	MathID    = "math-101"
	CSID      = "cs-202"
	PhysicsID = "physics-120"
)

// Sessions returns the seeded sessions.
func Sessions() []application.CreateSessionInput {
	return []application.CreateSessionInput{
		{
			ID:    MathID,
			Name:  "Mathematics 101",
			Owner: "Dr. Smith",
			Rules: []application.RecurrenceRule{
				{Day: "Monday", Start: "09:00", End: "11:00", Location: "Room A101"},
				{Day: "Wednesday", Start: "09:00", End: "11:00", Location: "Room A101"},
			},
		},
		{
			ID:    CSID,
			Name:  "Computer Science 202",
			Owner: "Prof. Johnson",
			Rules: []application.RecurrenceRule{
				{Day: "Tuesday", Start: "13:00", End: "15:00", Location: "Room B205"},
				{Day: "Thursday", Start: "13:00", End: "15:00", Location: "Room B205"},
			},
		},
		{
			ID:    PhysicsID,
			Name:  "Physics 120",
			Owner: "Dr. Lee",
			Rules: []application.RecurrenceRule{
				{Day: "Monday", Start: "14:00", End: "16:00", Location: "Room C310"},
				{Day: "Friday", Start: "10:00", End: "12:00", Location: "Room C310"},
			},
		},
	}
}

// Member is a seeded person with the raw token their scanner reports and the
// sessions they are enrolled in.
type Member struct {
	ID         string
	Name       string
	Token      string
	SessionIDs []string
}

// Members returns the seeded persons.
func Members() []Member {
	return []Member{
		{ID: "student-1", Name: "John Doe", Token: "1", SessionIDs: []string{MathID, CSID}},
		{ID: "student-2", Name: "Jane Smith", Token: "2", SessionIDs: []string{MathID, CSID, PhysicsID}},
		{ID: "student-3", Name: "Robert Johnson", Token: "3", SessionIDs: []string{MathID, CSID}},
		{ID: "student-4", Name: "Emily Davis", Token: "4", SessionIDs: []string{MathID, PhysicsID}},
		{ID: "student-5", Name: "Michael Wilson", Token: "5", SessionIDs: []string{MathID, PhysicsID}},
	}
}

// Load creates the sample sessions and persons and enrolls them. Records that
// already exist are left as they are, so Load can run more than once.
func Load(ctx context.Context, roster Roster) error {
	for _, input := range Sessions() {
		if _, err := roster.CreateSession(ctx, input); err != nil && !errors.Is(err, application.ErrAlreadyExists) {
			return fmt.Errorf("seed session %s: %w", input.ID, err)
		}
	}

	for _, member := range Members() {
		token := member.Token
		_, err := roster.CreatePerson(ctx, application.CreatePersonInput{ID: member.ID, DisplayName: member.Name, Token: &token})
		if err != nil && !errors.Is(err, application.ErrAlreadyExists) {
			return fmt.Errorf("seed person %s: %w", member.ID, err)
		}
		for _, sessionID := range member.SessionIDs {
			if err := roster.Enroll(ctx, member.ID, sessionID); err != nil {
				return fmt.Errorf("enroll %s in %s: %w", member.ID, sessionID, err)
			}
		}
	}
	return nil
}
