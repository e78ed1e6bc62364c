package schedule

import "time"

// Window is a wall-clock interval expressed as minutes from midnight,
// clinic-local. 540–780 is 09:00–13:00.
type Window struct {
	StartMinute int
	EndMinute   int
}

func (w Window) Valid() bool {
	return w.StartMinute >= 0 && w.EndMinute <= 24*60 && w.StartMinute < w.EndMinute
}

// On anchors the window onto a concrete clinic-local day. Boundaries
// are built as wall-clock times so a DST transition on that day cannot
// shift them.
func (w Window) On(dayStart time.Time) (time.Time, time.Time) {
	year, month, day := dayStart.Date()
	loc := dayStart.Location()
	return time.Date(year, month, day, w.StartMinute/60, w.StartMinute%60, 0, 0, loc),
		time.Date(year, month, day, w.EndMinute/60, w.EndMinute%60, 0, 0, loc)
}

// Config is the clinic-wide weekly default: one enabled flag and one
// wall-clock window per shift. It is loaded once per request and passed
// into the resolver explicitly.
type Config struct {
	MorningEnabled bool
	Morning        Window
	EveningEnabled bool
	Evening        Window
}

// Exception overrides Config for a single calendar date. Nil fields
// mean "no override for this shift"; a non-nil open flag overrides the
// enabled flag, and a non-nil window overrides the default window.
type Exception struct {
	ID            string
	Date          string // YYYY-MM-DD, clinic-local
	MorningOpen   *bool
	EveningOpen   *bool
	MorningWindow *Window
	EveningWindow *Window
	Reason        string
	CreatedAt     time.Time
}

// DayAvailability is the resolved opening rule for one date.
type DayAvailability struct {
	MorningOpen bool
	Morning     Window
	EveningOpen bool
	Evening     Window
}

// ResolveDay applies a date-specific exception over the global config.
// A nil exception (or a nil field within one) means the global default
// applies; nothing here is an error and nothing is mutated.
func ResolveDay(cfg Config, exc *Exception) DayAvailability {
	day := DayAvailability{
		MorningOpen: cfg.MorningEnabled,
		Morning:     cfg.Morning,
		EveningOpen: cfg.EveningEnabled,
		Evening:     cfg.Evening,
	}
	if exc == nil {
		return day
	}
	if exc.MorningOpen != nil {
		day.MorningOpen = *exc.MorningOpen
	}
	if exc.MorningWindow != nil {
		day.Morning = *exc.MorningWindow
	}
	if exc.EveningOpen != nil {
		day.EveningOpen = *exc.EveningOpen
	}
	if exc.EveningWindow != nil {
		day.Evening = *exc.EveningWindow
	}
	return day
}

// Open reports whether the named shift is bookable and its window.
func (d DayAvailability) Open(shift string) (Window, bool) {
	switch shift {
	case "morning":
		return d.Morning, d.MorningOpen
	case "evening":
		return d.Evening, d.EveningOpen
	}
	return Window{}, false
}
