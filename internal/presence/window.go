package presence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay bounds minute-of-day values to [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// Kind tags an attendance window and the records marked inside it.
type Kind string

const (
	KindMorning   Kind = "morning"
	KindAfternoon Kind = "afternoon"
)

// Window is a same-day clock interval during which one kind may be recorded.
// Start and End are minutes after local midnight; both ends are inclusive.
type Window struct {
	Kind  Kind   `json:"kind"`
	Start int    `json:"start_minute"`
	End   int    `json:"end_minute"`
	Label string `json:"label"`
}

// Contains reports whether minute lies in [Start, End].
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute <= w.End
}

// Span renders the window as "07:00 - 08:00".
func (w Window) Span() string {
	return FormatClock(w.Start) + " - " + FormatClock(w.End)
}

// Validate checks the same-day invariant.
func (w Window) Validate() error {
	if w.Kind == "" {
		return errors.New("window kind required")
	}
	if w.Start < 0 || w.Start >= MinutesPerDay || w.End < 0 || w.End >= MinutesPerDay {
		return fmt.Errorf("window %s: minutes must be in [0,%d)", w.Kind, MinutesPerDay)
	}
	if w.Start > w.End {
		return fmt.Errorf("window %s: overnight windows are not supported", w.Kind)
	}
	return nil
}

// MinuteOfDay returns the minutes elapsed since local midnight of t in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Hour()*60 + t.Minute()
}

// CurrentWindow returns the first window, in declaration order, containing the
// local minute of now. Overlapping windows are allowed; the earlier one wins.
func CurrentWindow(now time.Time, loc *time.Location, windows []Window) (Window, bool) {
	m := MinuteOfDay(now, loc)
	for _, w := range windows {
		if w.Contains(m) {
			return w, true
		}
	}
	return Window{}, false
}

// ParseClock parses "HH:MM" into a minute of day.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders a minute of day as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// DescribeWindows lists the schedule, one "Label: HH:MM - HH:MM" line per window.
func DescribeWindows(windows []Window) string {
	lines := make([]string, 0, len(windows))
	for _, w := range windows {
		lines = append(lines, w.Label+": "+w.Span())
	}
	return strings.Join(lines, "\n")
}

// Greeting returns the Indonesian time-of-day greeting for t in loc.
func Greeting(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	switch h := t.Hour(); {
	case h < 12:
		return "Selamat Pagi"
	case h < 17:
		return "Selamat Siang"
	case h < 21:
		return "Selamat Sore"
	default:
		return "Selamat Malam"
	}
}
