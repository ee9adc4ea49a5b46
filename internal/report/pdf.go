package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"presensi/internal/attendance"
)

// Institution is a report unit and the authority who signs its page.
type Institution struct {
	Code      string `json:"code"`
	Authority string `json:"authority"`
}

// Monthly describes one monthly matrix report.
type Monthly struct {
	Year         int
	Month        time.Month
	Institutions []Institution
	City         string
	Title        string
	Location     *time.Location
	// SignedAt is printed in the signoff block.
	SignedAt time.Time
}

// PDFName is the download name of a monthly report.
func PDFName(year int, month time.Month) string {
	return fmt.Sprintf("Laporan-Presensi-Lengkap-%s-%d.pdf", MonthName(month), year)
}

// page geometry in millimetres, legal-ish folio in landscape
const (
	pageWidth     = 330.0
	pageHeight    = 215.0
	marginX       = 10.0
	nameColWidth  = 35.0
	rowHeight     = 10.0
	headerHeight  = 7.0
	tableTop      = 28.0
	signoffX      = 280.0
	signoffHeight = 45.0
	pageBottom    = 200.0
)

// WritePDF renders one page per institution with the user×day matrix and a
// signoff block, and writes the document to w.
func WritePDF(w io.Writer, users []attendance.UserProfile, records []attendance.Record, m Monthly) error {
	if len(m.Institutions) == 0 {
		return errors.New("report needs at least one institution")
	}
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	signed := m.SignedAt
	if signed.IsZero() {
		signed = time.Now()
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: pageHeight, Ht: pageWidth},
	})
	pdf.SetCreationDate(signed)
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginX, marginX, marginX)

	r := &renderer{pdf: pdf, images: make(map[string]string)}
	for _, inst := range m.Institutions {
		matrix := BuildMatrix(users, records, m.Year, m.Month, inst.Code, loc)
		r.page(matrix, inst, m, signed.In(loc))
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("render %s: %w", inst.Code, err)
		}
	}
	return pdf.Output(w)
}

type renderer struct {
	pdf *fpdf.Fpdf
	// images maps QR payloads to registered image names
	images map[string]string
}

func (r *renderer) page(matrix Matrix, inst Institution, m Monthly, signed time.Time) {
	pdf := r.pdf
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginX, 10)
	pdf.CellFormat(pageWidth-2*marginX, 7, "LAPORAN MATRIKS PRESENSI - LEMBAGA "+inst.Code, "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(14, 22, fmt.Sprintf("Periode: %s %d", MonthName(m.Month), m.Year))

	if len(matrix.Rows) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetXY(marginX, 37)
		pdf.CellFormat(pageWidth-2*marginX, 6, "(Tidak ada data guru untuk lembaga "+inst.Code+")", "", 0, "C", false, 0, "")
		return
	}

	dayWidth := (pageWidth - 2*marginX - nameColWidth) / float64(matrix.Days)

	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetFillColor(230, 230, 230)
	pdf.SetXY(marginX, tableTop)
	pdf.CellFormat(nameColWidth, headerHeight, "Nama Guru", "1", 0, "L", true, 0, "")
	for day := 1; day <= matrix.Days; day++ {
		pdf.CellFormat(dayWidth, headerHeight, strconv.Itoa(day), "1", 0, "C", true, 0, "")
	}

	pdf.SetFont("Helvetica", "", 7)
	y := tableTop + headerHeight
	for _, row := range matrix.Rows {
		if y+rowHeight > pageBottom {
			pdf.AddPage()
			y = marginX
		}
		pdf.SetXY(marginX, y)
		pdf.CellFormat(nameColWidth, rowHeight, row.User.DisplayName(), "1", 0, "L", false, 0, "")
		for _, c := range row.Cells {
			x := pdf.GetX()
			text := "-"
			if c.Present {
				text = ""
			}
			pdf.CellFormat(dayWidth, rowHeight, text, "1", 0, "C", false, 0, "")
			if c.Present {
				dim := min(dayWidth, rowHeight) - 1.5
				r.image(c.Code, CellCodeSize, qrcode.Low, x+(dayWidth-dim)/2, y+(rowHeight-dim)/2, dim)
			}
		}
		y += rowHeight
	}

	finalY := y + 12
	if finalY+signoffHeight > pageBottom {
		pdf.AddPage()
		finalY = 20
	}
	r.signoff(finalY, inst, m, signed)
}

func (r *renderer) signoff(y float64, inst Institution, m Monthly, signed time.Time) {
	pdf := r.pdf
	centered := func(top float64, text string) {
		pdf.SetXY(signoffX-30, top)
		pdf.CellFormat(60, 5, text, "", 0, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 10)
	centered(y-4, fmt.Sprintf("%s, %s", m.City, FormatLongDate(signed)))
	centered(y+1, m.Title+",")

	r.image(SignoffCode(inst.Authority, inst.Code, m.Month, m.Year), SignoffCodeSize, qrcode.Medium, signoffX-11, y+7, 22)

	pdf.SetFont("Helvetica", "B", 10)
	centered(y+31, inst.Authority)
	pdf.Line(signoffX-20, y+36, signoffX+20, y+36)
}

// image draws the QR of content as a dim×dim square, registering each
// distinct payload once.
func (r *renderer) image(content string, size int, level qrcode.RecoveryLevel, x, y, dim float64) {
	name, ok := r.images[content]
	if !ok {
		png, err := RenderCode(content, size, level)
		if err != nil {
			r.pdf.SetError(err)
			return
		}
		name = fmt.Sprintf("qr%d", len(r.images))
		r.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		r.images[content] = name
	}
	r.pdf.ImageOptions(name, x, y, dim, dim, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}
