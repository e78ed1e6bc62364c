package schedule

import (
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func defaultConfig() Config {
	return Config{
		MorningEnabled: true,
		Morning:        Window{StartMinute: 540, EndMinute: 780},
		EveningEnabled: true,
		Evening:        Window{StartMinute: 1020, EndMinute: 1260},
	}
}

func TestResolveDayNoException(t *testing.T) {
	day := ResolveDay(defaultConfig(), nil)
	if !day.MorningOpen || !day.EveningOpen {
		t.Fatalf("expected both shifts open, got %+v", day)
	}
	if day.Morning.StartMinute != 540 || day.Evening.EndMinute != 1260 {
		t.Fatalf("windows should come from the global config, got %+v", day)
	}
}

func TestResolveDayExceptionClosesOneShift(t *testing.T) {
	exc := &Exception{
		Date:        "2025-06-01",
		MorningOpen: boolPtr(false),
	}
	day := ResolveDay(defaultConfig(), exc)
	if day.MorningOpen {
		t.Fatal("morning should be closed by the exception")
	}
	if !day.EveningOpen {
		t.Fatal("evening keeps the global default when the exception is silent")
	}
}

func TestResolveDayExceptionOverridesWindow(t *testing.T) {
	exc := &Exception{
		Date:          "2025-06-01",
		MorningWindow: &Window{StartMinute: 600, EndMinute: 720},
	}
	day := ResolveDay(defaultConfig(), exc)
	if !day.MorningOpen {
		t.Fatal("window-only override must not flip the open flag")
	}
	if day.Morning.StartMinute != 600 || day.Morning.EndMinute != 720 {
		t.Fatalf("custom window not applied: %+v", day.Morning)
	}
	if day.Evening.StartMinute != 1020 {
		t.Fatalf("untouched shift changed: %+v", day.Evening)
	}
}

func TestResolveDayExceptionOpensClosedDefault(t *testing.T) {
	cfg := defaultConfig()
	cfg.EveningEnabled = false
	exc := &Exception{
		Date:        "2025-06-01",
		EveningOpen: boolPtr(true),
	}
	day := ResolveDay(cfg, exc)
	if !day.EveningOpen {
		t.Fatal("exception must be able to open a shift the default closes")
	}
}

func TestDayAvailabilityOpen(t *testing.T) {
	day := ResolveDay(defaultConfig(), nil)
	if _, ok := day.Open("morning"); !ok {
		t.Fatal("morning should be open")
	}
	if _, ok := day.Open("night"); ok {
		t.Fatal("unknown shift name must never be open")
	}
}

func TestWindowValid(t *testing.T) {
	cases := []struct {
		win  Window
		want bool
	}{
		{Window{540, 780}, true},
		{Window{0, 1440}, true},
		{Window{780, 540}, false},
		{Window{540, 540}, false},
		{Window{-10, 60}, false},
		{Window{1000, 1500}, false},
	}
	for _, tc := range cases {
		if got := tc.win.Valid(); got != tc.want {
			t.Errorf("Window{%d,%d}.Valid() = %v, want %v", tc.win.StartMinute, tc.win.EndMinute, got, tc.want)
		}
	}
}

func TestWindowOn(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Karachi")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	dayStart := time.Date(2025, 6, 1, 0, 0, 0, 0, loc)
	start, end := (Window{StartMinute: 540, EndMinute: 780}).On(dayStart)
	if start.Hour() != 9 || start.Minute() != 0 {
		t.Fatalf("window start = %v, want 09:00", start)
	}
	if end.Hour() != 13 {
		t.Fatalf("window end = %v, want 13:00", end)
	}
}

func TestWindowOnSpringForwardDay(t *testing.T) {
	// On a 23-hour DST day the window boundaries must stay at their
	// wall-clock positions instead of landing an hour late.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	dayStart := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)
	start, end := (Window{StartMinute: 540, EndMinute: 780}).On(dayStart)
	if start.Hour() != 9 || start.Minute() != 0 {
		t.Fatalf("window start = %s, want 09:00 local", start.Format("15:04"))
	}
	if end.Hour() != 13 || end.Minute() != 0 {
		t.Fatalf("window end = %s, want 13:00 local", end.Format("15:04"))
	}
}
