package attendance

import (
	"sort"
	"time"

	"presensi/internal/presence"
)

// Evaluator derives validity and aggregates from record sets. Every date
// comparison goes through one location, so "the same day" means the same
// local calendar date everywhere.
type Evaluator struct {
	loc      *time.Location
	required []presence.Kind
}

// NewEvaluator binds the canonical location and the kinds a complete day needs.
func NewEvaluator(loc *time.Location, required []presence.Kind) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc, required: required}
}

func (e *Evaluator) Location() *time.Location { return e.loc }

func (e *Evaluator) Required() []presence.Kind { return e.required }

// DateOf returns the local date of t.
func (e *Evaluator) DateOf(t time.Time) Date {
	return DateOf(t, e.loc)
}

// kindsOn collects the set of kinds userID marked on day.
func (e *Evaluator) kindsOn(records []Record, userID string, day Date) map[presence.Kind]bool {
	kinds := make(map[presence.Kind]bool)
	for _, r := range records {
		if r.UserID != userID || e.DateOf(r.CreatedAt) != day {
			continue
		}
		kinds[r.Kind] = true
	}
	return kinds
}

// IsDayValid reports whether userID marked every required kind on day.
// Duplicates of one kind count once.
func (e *Evaluator) IsDayValid(records []Record, userID string, day Date, required []presence.Kind) bool {
	kinds := e.kindsOn(records, userID, day)
	for _, k := range required {
		if !kinds[k] {
			return false
		}
	}
	return true
}

// AlreadyMarked reports whether userID already has a kind record on day.
func (e *Evaluator) AlreadyMarked(records []Record, userID string, day Date, kind presence.Kind) bool {
	for _, r := range records {
		if r.UserID == userID && r.Kind == kind && e.DateOf(r.CreatedAt) == day {
			return true
		}
	}
	return false
}

// IsRecordValid reports whether the day rec belongs to is complete for its user.
func (e *Evaluator) IsRecordValid(records []Record, rec Record) bool {
	return e.IsDayValid(records, rec.UserID, e.DateOf(rec.CreatedAt), e.required)
}

// DayStatus summarises one local date.
type DayStatus struct {
	Date       Date                   `json:"date"`
	Kinds      map[presence.Kind]bool `json:"kinds"`
	Count      int                    `json:"count"`
	IsComplete bool                   `json:"is_complete"`
}

// DailySummary groups records falling on day. Callers pass a single user's
// records for a per-user view.
func (e *Evaluator) DailySummary(records []Record, day Date) DayStatus {
	st := DayStatus{Date: day, Kinds: make(map[presence.Kind]bool)}
	for _, r := range records {
		if e.DateOf(r.CreatedAt) != day {
			continue
		}
		st.Count++
		st.Kinds[r.Kind] = true
	}
	st.IsComplete = true
	for _, k := range e.required {
		if !st.Kinds[k] {
			st.IsComplete = false
			break
		}
	}
	return st
}

// TodayStatus is DailySummary for the local date of now.
func (e *Evaluator) TodayStatus(records []Record, now time.Time) DayStatus {
	return e.DailySummary(records, e.DateOf(now))
}

// Summary counts attended and complete days.
type Summary struct {
	TotalDays    int `json:"total_days"`
	CompleteDays int `json:"complete_days"`
}

// Summary counts distinct (user, date) pairs and how many of them are complete.
func (e *Evaluator) Summary(records []Record) Summary {
	type key struct {
		user string
		day  Date
	}
	days := make(map[key]map[presence.Kind]bool)
	for _, r := range records {
		k := key{user: r.UserID, day: e.DateOf(r.CreatedAt)}
		if days[k] == nil {
			days[k] = make(map[presence.Kind]bool)
		}
		days[k][r.Kind] = true
	}
	var s Summary
	for _, kinds := range days {
		s.TotalDays++
		complete := true
		for _, k := range e.required {
			if !kinds[k] {
				complete = false
				break
			}
		}
		if complete {
			s.CompleteDays++
		}
	}
	return s
}

func (e *Evaluator) inMonth(t time.Time, month time.Month, year int) bool {
	d := e.DateOf(t)
	return d.Month == month && d.Year == year
}

// MonthlyCount counts userID's records in the local month.
func (e *Evaluator) MonthlyCount(records []Record, userID string, month time.Month, year int) int {
	n := 0
	for _, r := range records {
		if r.UserID == userID && e.inMonth(r.CreatedAt, month, year) {
			n++
		}
	}
	return n
}

// RecapEntry is one user's record count for a month.
type RecapEntry struct {
	UserID  string       `json:"user_id"`
	Profile *UserProfile `json:"profile,omitempty"`
	Count   int          `json:"count"`
}

// MonthlyRecap ranks users by record count in the month, highest first. Equal
// counts keep the order in which each user's first record appears in records.
func (e *Evaluator) MonthlyRecap(records []Record, month time.Month, year int) []RecapEntry {
	index := make(map[string]int)
	var recap []RecapEntry
	for _, r := range records {
		if !e.inMonth(r.CreatedAt, month, year) {
			continue
		}
		i, ok := index[r.UserID]
		if !ok {
			i = len(recap)
			index[r.UserID] = i
			recap = append(recap, RecapEntry{UserID: r.UserID})
		}
		recap[i].Count++
		if recap[i].Profile == nil && r.Profile != nil {
			recap[i].Profile = r.Profile
		}
	}
	sort.SliceStable(recap, func(i, j int) bool {
		return recap[i].Count > recap[j].Count
	})
	return recap
}

// Stats is the admin dashboard headline.
type Stats struct {
	TotalToday  int `json:"total_today"`
	UniqueUsers int `json:"unique_users"`
	TotalUsers  int `json:"total_users"`
}

// Stats counts today's records and distinct users among them.
func (e *Evaluator) Stats(records []Record, totalUsers int, now time.Time) Stats {
	today := e.DateOf(now)
	users := make(map[string]struct{})
	st := Stats{TotalUsers: totalUsers}
	for _, r := range records {
		if e.DateOf(r.CreatedAt) != today {
			continue
		}
		st.TotalToday++
		users[r.UserID] = struct{}{}
	}
	st.UniqueUsers = len(users)
	return st
}
