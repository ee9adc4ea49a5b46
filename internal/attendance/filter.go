package attendance

import (
	"strings"
	"time"

	"presensi/internal/presence"
)

// Filter narrows an admin record listing. Zero fields match everything.
type Filter struct {
	Date        *Date
	Kind        presence.Kind
	UserID      string
	Institution string
	Search      string
}

// Apply keeps the records matching every set field. Institution and Search
// look at the joined profile; records without one never match them.
func (f Filter) Apply(records []Record, loc *time.Location) []Record {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Date != nil && DateOf(r.CreatedAt, loc) != *f.Date {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Institution != "" && (r.Profile == nil || r.Profile.Institution != f.Institution) {
			continue
		}
		if search != "" {
			if r.Profile == nil {
				continue
			}
			name := strings.ToLower(r.Profile.Name)
			email := strings.ToLower(r.Profile.Email)
			if !strings.Contains(name, search) && !strings.Contains(email, search) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// FilterProfiles keeps the profiles of one institution; "" keeps all.
func FilterProfiles(profiles []UserProfile, institution string) []UserProfile {
	if institution == "" {
		return profiles
	}
	out := make([]UserProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.Institution == institution {
			out = append(out, p)
		}
	}
	return out
}
