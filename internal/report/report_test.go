package report

import (
	"bytes"
	"testing"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"presensi/internal/attendance"
	"presensi/internal/geo"
	"presensi/internal/presence"
)

var wib = time.FixedZone("WIB", 7*60*60)

var (
	ani  = attendance.UserProfile{ID: "u1", Name: "Ani", Email: "ani@tk.sch.id", Institution: "TK"}
	budi = attendance.UserProfile{ID: "u2", Name: "Budi", Email: "budi@kb.sch.id", Institution: "KB"}
	cici = attendance.UserProfile{ID: "u3", Email: "cici@tk.sch.id", Institution: "TK"}
)

func rec(user attendance.UserProfile, kind presence.Kind, t time.Time) attendance.Record {
	p := user
	d := 4.2
	return attendance.Record{
		ID:             user.ID + t.Format(time.RFC3339),
		UserID:         user.ID,
		CreatedAt:      t.UTC(),
		Kind:           kind,
		Label:          map[presence.Kind]string{presence.KindMorning: "Pagi", presence.KindAfternoon: "Siang"}[kind],
		Location:       geo.Coordinate{Latitude: -6.5695979, Longitude: 110.6871696},
		DistanceMeters: &d,
		Profile:        &p,
	}
}

func sample() []attendance.Record {
	return []attendance.Record{
		rec(ani, presence.KindMorning, time.Date(2024, 2, 1, 7, 5, 0, 0, wib)),
		rec(ani, presence.KindAfternoon, time.Date(2024, 2, 1, 12, 30, 0, 0, wib)),
		rec(ani, presence.KindMorning, time.Date(2024, 2, 29, 7, 10, 0, 0, wib)),
		rec(cici, presence.KindAfternoon, time.Date(2024, 2, 15, 13, 0, 0, 0, wib)),
		rec(budi, presence.KindMorning, time.Date(2024, 2, 2, 7, 0, 0, 0, wib)),
		// March 1 locally, still February in UTC
		rec(ani, presence.KindMorning, time.Date(2024, 3, 1, 6, 59, 0, 0, wib)),
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.January, 31},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DaysInMonth(tt.year, tt.month), "%d-%02d", tt.year, tt.month)
	}
}

func TestMonthNames(t *testing.T) {
	assert.Equal(t, "Januari", MonthName(time.January))
	assert.Equal(t, "Desember", MonthName(time.December))
	assert.Equal(t, "4 Maret 2024", FormatLongDate(time.Date(2024, 3, 4, 0, 0, 0, 0, wib)))
}

func TestBuildMatrixEmpty(t *testing.T) {
	m := BuildMatrix([]attendance.UserProfile{ani, budi}, nil, 2024, time.February, "", wib)
	assert.Equal(t, 29, m.Days)
	require.Len(t, m.Rows, 2)
	for _, row := range m.Rows {
		require.Len(t, row.Cells, 29)
		for i, c := range row.Cells {
			assert.False(t, c.Present)
			assert.Empty(t, c.Code)
			assert.Equal(t, i+1, c.Day)
		}
	}

	none := BuildMatrix(nil, sample(), 2024, time.February, "TPA", wib)
	assert.Empty(t, none.Rows)
}

func TestBuildMatrix(t *testing.T) {
	m := BuildMatrix([]attendance.UserProfile{ani, budi, cici}, sample(), 2024, time.February, "TK", wib)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "u1", m.Rows[0].User.ID)
	assert.Equal(t, "u3", m.Rows[1].User.ID)

	a := m.Rows[0]
	assert.True(t, a.Cells[0].Present)
	assert.True(t, a.Cells[28].Present)
	assert.False(t, a.Cells[1].Present)
	assert.Equal(t, 2, a.PresentDays(), "two records on one day fill one cell")
	assert.Equal(t, CellCode(ani, 1, time.February), a.Cells[0].Code)

	c := m.Rows[1]
	assert.Equal(t, 1, c.PresentDays())
	assert.True(t, c.Cells[14].Present)

	march := BuildMatrix([]attendance.UserProfile{ani}, sample(), 2024, time.March, "", wib)
	assert.True(t, march.Rows[0].Cells[0].Present, "local date decides the month")
}

func TestFlatAndMatrixAgree(t *testing.T) {
	users := []attendance.UserProfile{ani, budi, cici}
	records := sample()
	m := BuildMatrix(users, records, 2024, time.February, "", wib)

	fromFlat := map[string]map[int]bool{}
	for _, r := range Flatten(records, wib) {
		if r.Date.Year != 2024 || r.Date.Month != time.February {
			continue
		}
		if fromFlat[r.UserID] == nil {
			fromFlat[r.UserID] = map[int]bool{}
		}
		fromFlat[r.UserID][r.Date.Day] = true
	}
	for _, row := range m.Rows {
		for _, c := range row.Cells {
			assert.Equal(t, fromFlat[row.User.ID][c.Day], c.Present, "%s day %d", row.User.ID, c.Day)
		}
	}
}

func TestCodesAreDeterministic(t *testing.T) {
	assert.Equal(t, "TTD|u1|Ani|5/2", CellCode(ani, 5, time.February))
	assert.Equal(t, "TTD|u3|cici@tk.sch.id|5/2", CellCode(cici, 5, time.February))
	assert.Equal(t, "SAH|Triyanto|TK|2-2024", SignoffCode("Triyanto", "TK", time.February, 2024))

	a, err := RenderCode(CellCode(ani, 5, time.February), CellCodeSize, qrcode.Low)
	require.NoError(t, err)
	b, err := RenderCode(CellCode(ani, 5, time.February), CellCodeSize, qrcode.Low)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, bytes.HasPrefix(a, []byte("\x89PNG")))

	other, err := RenderCode(CellCode(ani, 6, time.February), CellCodeSize, qrcode.Low)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestFlatten(t *testing.T) {
	legacy := attendance.Record{
		UserID:    "u9",
		CreatedAt: time.Date(2024, 2, 3, 0, 15, 0, 0, time.UTC),
		Kind:      presence.KindMorning,
	}
	rows := Flatten([]attendance.Record{legacy}, wib)
	require.Len(t, rows, 1)
	assert.Equal(t, attendance.Date{Year: 2024, Month: time.February, Day: 3}, rows[0].Date)
	assert.Equal(t, "07.15.00", rows[0].Time)
	assert.Equal(t, "morning", rows[0].Kind)
	assert.Equal(t, []any{"3 Februari 2024", "07.15.00", "N/A", "N/A", "morning", 0.0, 0.0, "N/A"}, rows[0].values())

	rows = Flatten([]attendance.Record{legacy}, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, attendance.Date{Year: 2024, Month: time.February, Day: 3}, rows[0].Date)
	assert.Equal(t, "00.15.00", rows[0].Time)
}

func TestWriteSpreadsheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSpreadsheet(&buf, Flatten(sample(), wib)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, len(sample())+1)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, []string{"1 Februari 2024", "07.05.00", "Ani", "ani@tk.sch.id", "Pagi", "-6.5695979", "110.6871696", "4.2"}, rows[1])
	assert.Equal(t, "presensi-guru-2024-02-01.xlsx", SpreadsheetName("2024-02-01"))
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDF(&buf, []attendance.UserProfile{ani, budi, cici}, sample(), Monthly{
		Year:  2024,
		Month: time.February,
		Institutions: []Institution{
			{Code: "KB", Authority: "Bunda Nur"},
			{Code: "TK", Authority: "Triyanto"},
			{Code: "TPA", Authority: "Bunda Wid"},
		},
		City:     "Jepara",
		Title:    "Kepala Sekolah",
		Location: wib,
		SignedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, wib),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "Laporan-Presensi-Lengkap-Februari-2024.pdf", PDFName(2024, time.February))

	assert.Error(t, WritePDF(&buf, nil, nil, Monthly{Year: 2024, Month: time.February}))
}
