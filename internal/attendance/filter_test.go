package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"presensi/internal/presence"
)

func TestFilterApply(t *testing.T) {
	ani := &UserProfile{ID: "u1", Name: "Ani Lestari", Email: "ani@tk.sch.id", Institution: "TK"}
	budi := &UserProfile{ID: "u2", Name: "Budi", Email: "budi@kb.sch.id", Institution: "KB"}

	records := []Record{
		{ID: "1", UserID: "u1", Kind: presence.KindMorning, CreatedAt: local(2024, 3, 4, 7, 0), Profile: ani},
		{ID: "2", UserID: "u1", Kind: presence.KindAfternoon, CreatedAt: local(2024, 3, 4, 12, 0), Profile: ani},
		{ID: "3", UserID: "u2", Kind: presence.KindMorning, CreatedAt: local(2024, 3, 5, 7, 0), Profile: budi},
		{ID: "4", UserID: "u9", Kind: presence.KindMorning, CreatedAt: local(2024, 3, 5, 7, 0)},
	}
	day := Date{2024, time.March, 4}

	ids := func(rs []Record) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"1", "2", "3", "4"}},
		{"by date", Filter{Date: &day}, []string{"1", "2"}},
		{"by kind", Filter{Kind: presence.KindMorning}, []string{"1", "3", "4"}},
		{"by user", Filter{UserID: "u2"}, []string{"3"}},
		{"by institution", Filter{Institution: "TK"}, []string{"1", "2"}},
		{"search name case-insensitive", Filter{Search: "LESTARI"}, []string{"1", "2"}},
		{"search email", Filter{Search: "kb.sch"}, []string{"3"}},
		{"combined", Filter{Date: &day, Kind: presence.KindAfternoon, Institution: "TK"}, []string{"2"}},
		{"no match", Filter{Institution: "TPA"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(records, wib)))
		})
	}
}

func TestFilterProfiles(t *testing.T) {
	profiles := []UserProfile{
		{ID: "u1", Institution: "TK"},
		{ID: "u2", Institution: "KB"},
		{ID: "u3", Institution: "TK"},
	}
	assert.Len(t, FilterProfiles(profiles, ""), 3)
	got := FilterProfiles(profiles, "TK")
	assert.Equal(t, []UserProfile{profiles[0], profiles[2]}, got)
	assert.Empty(t, FilterProfiles(profiles, "TPA"))
}
