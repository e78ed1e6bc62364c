package availability

import "time"

// The calendar booking grid is fixed: 18 slots of 30 minutes between
// 09:00 and 18:00 clinic-local time.
const (
	SlotMinutes     = 30
	GridStartMinute = 9 * 60
	GridEndMinute   = 18 * 60
	SlotsPerDay     = (GridEndMinute - GridStartMinute) / SlotMinutes
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// SlotsNeeded is the number of consecutive grid slots a service
// duration occupies, rounding up to whole slots.
func SlotsNeeded(duration time.Duration) int {
	return int((duration + SlotMinutes*time.Minute - 1) / (SlotMinutes * time.Minute))
}

// OnGrid reports whether [start, start+duration) is a legal grid
// booking: start sits exactly on a 30-minute boundary at or after
// 09:00, and the whole duration finishes by 18:00.
func OnGrid(start time.Time, duration time.Duration) bool {
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return false
	}
	mins := start.Hour()*60 + start.Minute()
	if mins < GridStartMinute || (mins-GridStartMinute)%SlotMinutes != 0 {
		return false
	}
	return mins+SlotsNeeded(duration)*SlotMinutes <= GridEndMinute
}

// Day is the computed availability for one clinic-local calendar day.
type Day struct {
	Booked      []time.Time
	Available   []time.Time
	FullyBooked bool
}

// ComputeDay evaluates the grid for the day beginning at dayStart
// (clinic-local midnight) against the busy intervals of non-cancelled
// appointments. A slot is booked when its start falls inside any busy
// [start, end). A free slot is offered only when it and the following
// ceil(duration/30)-1 slots all exist within the grid and are free, so
// a service is never offered a start it cannot finish before close.
//
// All times must share the clinic's location.
func ComputeDay(dayStart time.Time, duration time.Duration, busy []Interval) Day {
	if duration <= 0 {
		return Day{FullyBooked: true}
	}

	slotsNeeded := SlotsNeeded(duration)

	starts := make([]time.Time, SlotsPerDay)
	blocked := make([]bool, SlotsPerDay)
	year, month, dayOfMonth := dayStart.Date()
	for i := range starts {
		// Wall-clock construction, not dayStart.Add: a DST transition
		// makes the day shorter or longer than 24h, but 09:00 stays 09:00.
		mins := GridStartMinute + i*SlotMinutes
		starts[i] = time.Date(year, month, dayOfMonth, mins/60, mins%60, 0, 0, dayStart.Location())
		blocked[i] = coveredByAny(starts[i], busy)
	}

	var day Day
	for i := range starts {
		if blocked[i] {
			day.Booked = append(day.Booked, starts[i])
			continue
		}
		if fits(blocked, i, slotsNeeded) {
			day.Available = append(day.Available, starts[i])
		}
	}
	day.FullyBooked = len(day.Available) == 0
	return day
}

// fits reports whether slots [i, i+needed) exist and are all free.
func fits(blocked []bool, i, needed int) bool {
	if i+needed > len(blocked) {
		return false
	}
	for j := i; j < i+needed; j++ {
		if blocked[j] {
			return false
		}
	}
	return true
}

func coveredByAny(start time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open: a slot starting exactly at an appointment's end is free.
		if !start.Before(b.Start) && start.Before(b.End) {
			return true
		}
	}
	return false
}
