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
	if ReferenceTime().Weekday() != time.Monday {
		t.Fatalf("expected fixtures to start on a Monday, got %s", ReferenceTime().Weekday())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}
	if !nowFn().Equal(clock.Now()) {
		t.Fatalf("expected NowFunc to follow the clock")
	}

	clock.Set(start)
	if !clock.Now().Equal(start) {
		t.Fatalf("expected %v after Set, got %v", start, clock.Now())
	}
}

func TestClockAdvanceTo(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	clock := NewClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, loc))

	if got := clock.AdvanceTo(17, 30, loc); !got.Equal(time.Date(2025, time.March, 10, 17, 30, 0, 0, loc)) {
		t.Fatalf("expected later today, got %v", got)
	}
	if got := clock.AdvanceTo(7, 0, loc); !got.Equal(time.Date(2025, time.March, 11, 7, 0, 0, 0, loc)) {
		t.Fatalf("expected tomorrow morning, got %v", got)
	}
}
