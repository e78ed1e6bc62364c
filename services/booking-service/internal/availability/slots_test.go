package availability

import (
	"testing"
	"time"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
}

func at(dayStart time.Time, hour, min int) time.Time {
	return dayStart.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestComputeDay_EmptyGrid(t *testing.T) {
	d := ComputeDay(day(t), 30*time.Minute, nil)
	if len(d.Available) != SlotsPerDay {
		t.Fatalf("expected %d available slots, got %d", SlotsPerDay, len(d.Available))
	}
	if len(d.Booked) != 0 {
		t.Fatalf("expected no booked slots, got %d", len(d.Booked))
	}
	if d.FullyBooked {
		t.Fatal("empty grid must not be fully booked")
	}
	if !d.Available[0].Equal(at(day(t), 9, 0)) {
		t.Fatalf("first slot should be 09:00, got %s", d.Available[0])
	}
	if !d.Available[len(d.Available)-1].Equal(at(day(t), 17, 30)) {
		t.Fatalf("last slot should be 17:30, got %s", d.Available[len(d.Available)-1])
	}
}

func TestComputeDay_LastSlotBoundary(t *testing.T) {
	// A 30-minute service fits the 17:30-18:00 slot; a 60-minute one
	// cannot start at 17:30 because the grid closes at 18:00.
	last := at(day(t), 17, 30)

	d30 := ComputeDay(day(t), 30*time.Minute, nil)
	if !containsTime(d30.Available, last) {
		t.Fatal("30-minute service should be offered 17:30")
	}

	d60 := ComputeDay(day(t), 60*time.Minute, nil)
	if containsTime(d60.Available, last) {
		t.Fatal("60-minute service must not be offered 17:30")
	}
	if !containsTime(d60.Available, at(day(t), 17, 0)) {
		t.Fatal("60-minute service should be offered 17:00")
	}
}

func TestComputeDay_BlockedByAppointment(t *testing.T) {
	// 10:00-11:00 appointment blocks the 10:00 and 10:30 slots, and a
	// 60-minute service also loses 09:30 (second half blocked).
	busy := []Interval{{Start: at(day(t), 10, 0), End: at(day(t), 11, 0)}}

	d := ComputeDay(day(t), 60*time.Minute, busy)
	if !containsTime(d.Booked, at(day(t), 10, 0)) || !containsTime(d.Booked, at(day(t), 10, 30)) {
		t.Fatalf("10:00 and 10:30 should be booked, got %v", d.Booked)
	}
	if containsTime(d.Available, at(day(t), 9, 30)) {
		t.Fatal("09:30 must not be offered for a 60-minute service")
	}
	if !containsTime(d.Available, at(day(t), 9, 0)) {
		t.Fatal("09:00 should be offered")
	}
	if !containsTime(d.Available, at(day(t), 11, 0)) {
		t.Fatal("11:00 should be offered; slot at an appointment's end is free")
	}
}

func TestComputeDay_DurationRoundsUpToSlots(t *testing.T) {
	// 45 minutes needs two grid slots.
	busy := []Interval{{Start: at(day(t), 9, 30), End: at(day(t), 10, 0)}}
	d := ComputeDay(day(t), 45*time.Minute, busy)
	if containsTime(d.Available, at(day(t), 9, 0)) {
		t.Fatal("09:00 needs 09:30 free for a 45-minute service")
	}
}

func TestComputeDay_FullyBooked(t *testing.T) {
	busy := []Interval{{Start: at(day(t), 9, 0), End: at(day(t), 18, 0)}}
	d := ComputeDay(day(t), 30*time.Minute, busy)
	if !d.FullyBooked {
		t.Fatal("day covered by one long appointment must be fully booked")
	}
	if len(d.Booked) != SlotsPerDay {
		t.Fatalf("expected %d booked slots, got %d", SlotsPerDay, len(d.Booked))
	}
}

func TestComputeDay_SpringForwardKeepsWallClock(t *testing.T) {
	// 2026-03-08 in America/New_York is 23 hours long: 02:00 jumps to
	// 03:00. Slots are wall-clock positions, so 09:00 is still 09:00
	// and the grid still has 18 entries.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	dayStart := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)

	d := ComputeDay(dayStart, 30*time.Minute, nil)
	if len(d.Available) != SlotsPerDay {
		t.Fatalf("expected %d slots on the DST day, got %d", SlotsPerDay, len(d.Available))
	}
	first := d.Available[0]
	if first.Hour() != 9 || first.Minute() != 0 {
		t.Fatalf("first slot should read 09:00 local, got %s", first.Format("15:04"))
	}
	last := d.Available[len(d.Available)-1]
	if last.Hour() != 17 || last.Minute() != 30 {
		t.Fatalf("last slot should read 17:30 local, got %s", last.Format("15:04"))
	}
}

func containsTime(ts []time.Time, want time.Time) bool {
	for _, v := range ts {
		if v.Equal(want) {
			return true
		}
	}
	return false
}

func TestOnGrid(t *testing.T) {
	cases := []struct {
		hour, minute int
		duration     time.Duration
		want         bool
	}{
		{9, 0, 30 * time.Minute, true},
		{17, 30, 30 * time.Minute, true},
		{17, 30, 60 * time.Minute, false},
		{17, 0, 45 * time.Minute, false},
		{8, 30, 30 * time.Minute, false},
		{9, 15, 30 * time.Minute, false},
		{18, 0, 30 * time.Minute, false},
	}
	for _, tc := range cases {
		start := at(day(t), tc.hour, tc.minute)
		if got := OnGrid(start, tc.duration); got != tc.want {
			t.Errorf("OnGrid(%02d:%02d, %v) = %v, want %v", tc.hour, tc.minute, tc.duration, got, tc.want)
		}
	}
}

func TestOnGridRejectsSubMinutePrecision(t *testing.T) {
	start := at(day(t), 9, 0).Add(5 * time.Second)
	if OnGrid(start, 30*time.Minute) {
		t.Fatal("a start with seconds is not a grid slot")
	}
}

func TestSlotsNeeded(t *testing.T) {
	cases := []struct {
		duration time.Duration
		want     int
	}{
		{30 * time.Minute, 1},
		{45 * time.Minute, 2},
		{60 * time.Minute, 2},
		{90 * time.Minute, 3},
	}
	for _, tc := range cases {
		if got := SlotsNeeded(tc.duration); got != tc.want {
			t.Errorf("SlotsNeeded(%v) = %d, want %d", tc.duration, got, tc.want)
		}
	}
}
