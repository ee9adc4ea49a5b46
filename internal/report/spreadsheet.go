package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"presensi/internal/attendance"
)

// SheetName is the single worksheet of the flat export.
const SheetName = "Presensi Guru"

// Headers is the fixed column order of the flat export.
var Headers = []string{
	"Tanggal", "Waktu", "Nama Guru", "Email", "Jenis Presensi", "Latitude", "Longitude", "Jarak (meter)",
}

const missing = "N/A"

// ExportRow is one record projected for the spreadsheet.
type ExportRow struct {
	UserID    string
	Date      attendance.Date
	Time      string
	Name      string
	Email     string
	Kind      string
	Latitude  float64
	Longitude float64
	Distance  *float64
}

func (r ExportRow) values() []any {
	name, email := r.Name, r.Email
	if name == "" {
		name = missing
	}
	if email == "" {
		email = missing
	}
	var distance any = missing
	if r.Distance != nil {
		distance = *r.Distance
	}
	day := r.Date.Start(time.UTC)
	return []any{FormatLongDate(day), r.Time, name, email, r.Kind, r.Latitude, r.Longitude, distance}
}

// Flatten projects joined records one row per record, in input order. A nil
// loc means UTC.
func Flatten(records []attendance.Record, loc *time.Location) []ExportRow {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]ExportRow, 0, len(records))
	for _, rec := range records {
		at := rec.CreatedAt.In(loc)
		row := ExportRow{
			UserID:    rec.UserID,
			Date:      attendance.DateOf(at, loc),
			Time:      at.Format("15.04.05"),
			Kind:      rec.Label,
			Latitude:  rec.Location.Latitude,
			Longitude: rec.Location.Longitude,
			Distance:  rec.DistanceMeters,
		}
		if row.Kind == "" {
			row.Kind = string(rec.Kind)
		}
		if rec.Profile != nil {
			row.Name = rec.Profile.Name
			row.Email = rec.Profile.Email
		}
		rows = append(rows, row)
	}
	return rows
}

// SpreadsheetName is the download name of the flat export for a date.
func SpreadsheetName(date string) string {
	return fmt.Sprintf("presensi-guru-%s.xlsx", date)
}

// WriteSpreadsheet writes rows as an xlsx workbook to w.
func WriteSpreadsheet(w io.Writer, rows []ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := r.values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "D", 22); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
