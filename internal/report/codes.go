package report

import (
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"presensi/internal/attendance"
)

// QR image sizes in pixels.
const (
	CellCodeSize    = 64
	SignoffCodeSize = 128
)

// CellCode is the signature payload printed in a present matrix cell.
func CellCode(user attendance.UserProfile, day int, month time.Month) string {
	return fmt.Sprintf("TTD|%s|%s|%d/%d", user.ID, user.DisplayName(), day, int(month))
}

// SignoffCode is the payload of the authority's approval QR on a report page.
func SignoffCode(authority, institution string, month time.Month, year int) string {
	return fmt.Sprintf("SAH|%s|%s|%d-%d", authority, institution, int(month), year)
}

// RenderCode encodes content as a borderless PNG QR image of size pixels.
// Output is byte-identical for identical input.
func RenderCode(content string, size int, level qrcode.RecoveryLevel) ([]byte, error) {
	q, err := qrcode.New(content, level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.DisableBorder = true
	return q.PNG(size)
}
