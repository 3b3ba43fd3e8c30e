package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Monday {
		t.Fatalf("expected the reference time to be a Monday, got %v", clock.Now().Weekday())
	}
}

func TestClockAdvanceSetAndSetWall(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}

	if got := clock.SetWall(13, 5); got.Hour() != 13 || got.Minute() != 5 || got.Day() != 14 {
		t.Fatalf("unexpected wall time %v", got)
	}
}

func TestClockApplication(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	clock := NewClock(time.Date(2024, time.January, 15, 10, 0, 0, 0, loc))
	appClock := clock.Application()

	if appClock.Location != loc {
		t.Fatalf("expected clock location to follow the start time")
	}
	clock.Advance(time.Minute)
	if got := appClock.Now(); !got.Equal(clock.Now()) {
		t.Fatalf("expected application clock to track updates, got %v", got)
	}
}
