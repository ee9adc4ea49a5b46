package report

import (
	"fmt"
	"time"

	"presensi/internal/attendance"
)

// monthNames are the Indonesian month names used in report titles.
var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthName returns the Indonesian name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return fmt.Sprintf("%%!Month(%d)", int(m))
	}
	return monthNames[m-1]
}

// FormatLongDate renders t as "4 Maret 2024".
func FormatLongDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), MonthName(t.Month()), t.Year())
}

// DaysInMonth returns the number of days in month of year.
func DaysInMonth(year int, month time.Month) int {
	// day 0 of the next month normalizes to the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Cell is one user×day slot of the matrix.
type Cell struct {
	UserID  string `json:"user_id"`
	Day     int    `json:"day"`
	Present bool   `json:"present"`
	Code    string `json:"code,omitempty"`
}

// Row is one user's line in the matrix.
type Row struct {
	User  attendance.UserProfile `json:"user"`
	Cells []Cell                 `json:"cells"`
}

// PresentDays counts the days marked present in the row.
func (r Row) PresentDays() int {
	n := 0
	for _, c := range r.Cells {
		if c.Present {
			n++
		}
	}
	return n
}

// Matrix is the monthly attendance grid for one institution.
type Matrix struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	Institution string     `json:"institution,omitempty"`
	Days        int        `json:"days"`
	Rows        []Row      `json:"rows"`
}

// BuildMatrix lays out users (filtered by institution, "" for all) against the
// days of the month. A cell is present when the user has any record on that
// local date, regardless of kind.
func BuildMatrix(users []attendance.UserProfile, records []attendance.Record, year int, month time.Month, institution string, loc *time.Location) Matrix {
	days := DaysInMonth(year, month)
	m := Matrix{
		Year:        year,
		Month:       month,
		Institution: institution,
		Days:        days,
		Rows:        []Row{},
	}

	present := make(map[string]map[int]bool)
	for _, r := range records {
		d := attendance.DateOf(r.CreatedAt, loc)
		if d.Year != year || d.Month != month {
			continue
		}
		if present[r.UserID] == nil {
			present[r.UserID] = make(map[int]bool)
		}
		present[r.UserID][d.Day] = true
	}

	for _, u := range attendance.FilterProfiles(users, institution) {
		row := Row{User: u, Cells: make([]Cell, days)}
		for day := 1; day <= days; day++ {
			c := Cell{UserID: u.ID, Day: day, Present: present[u.ID][day]}
			if c.Present {
				c.Code = CellCode(u, day, month)
			}
			row.Cells[day-1] = c
		}
		m.Rows = append(m.Rows, row)
	}
	return m
}
