package attendance

import (
	"fmt"
	"time"

	"presensi/internal/geo"
	"presensi/internal/presence"
)

// UserProfile is the read-only profile row joined onto records.
type UserProfile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Institution string `json:"institution"`
}

// DisplayName falls back to the email when no name was set.
func (u UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Record is one persisted presence mark.
type Record struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	CreatedAt      time.Time      `json:"created_at"`
	Kind           presence.Kind  `json:"presence_type"`
	Label          string         `json:"presence_label"`
	Location       geo.Coordinate `json:"location"`
	DistanceMeters *float64       `json:"distance,omitempty"`
	Profile        *UserProfile   `json:"profile,omitempty"`
}

// Date is a local calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t, time.UTC), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Start returns local midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Join attaches each record's profile by user id. Records without a matching
// profile keep a nil Profile.
func Join(records []Record, profiles []UserProfile) []Record {
	byID := make(map[string]*UserProfile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	out := make([]Record, len(records))
	for i, r := range records {
		r.Profile = byID[r.UserID]
		out[i] = r
	}
	return out
}
