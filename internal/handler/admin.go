package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"presensi/internal/attendance"
	"presensi/internal/auth"
	"presensi/internal/presence"
	"presensi/internal/queue"
	"presensi/internal/report"
)

// adminRecord is a record annotated with whether its day is complete.
type adminRecord struct {
	attendance.Record
	Valid bool `json:"valid"`
}

// filterFromQuery reads date, kind, user_id, institution and q.
func filterFromQuery(c *gin.Context) (attendance.Filter, error) {
	f := attendance.Filter{
		Kind:        presence.Kind(c.Query("kind")),
		UserID:      c.Query("user_id"),
		Institution: c.Query("institution"),
		Search:      c.Query("q"),
	}
	if v := c.Query("date"); v != "" {
		d, err := attendance.ParseDate(v)
		if err != nil {
			return attendance.Filter{}, err
		}
		f.Date = &d
	}
	return f, nil
}

// monthFromQuery reads year and month, defaulting to the current local month.
func (h *Handler) monthFromQuery(c *gin.Context) (int, time.Month, error) {
	now := h.clock.Now().In(h.svc.Policy().Location)
	year, month := now.Year(), now.Month()
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
		month = time.Month(m)
	}
	return year, month, nil
}

func (h *Handler) filtered(c *gin.Context) ([]attendance.Record, []attendance.Record, bool) {
	f, err := filterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return nil, nil, false
	}
	all, _, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return nil, nil, false
	}
	return all, f.Apply(all, h.svc.Policy().Location), true
}

func (h *Handler) AdminPresences(c *gin.Context) {
	all, matched, ok := h.filtered(c)
	if !ok {
		return
	}
	eval := h.svc.Evaluator()
	out := make([]adminRecord, len(matched))
	for i, r := range matched {
		out[i] = adminRecord{Record: r, Valid: eval.IsRecordValid(all, r)}
	}
	c.JSON(http.StatusOK, gin.H{"presences": out, "total": len(out)})
}

func (h *Handler) AdminStats(c *gin.Context) {
	records, profiles, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Evaluator().Stats(records, len(profiles), h.clock.Now()))
}

func (h *Handler) AdminRecap(c *gin.Context) {
	year, month, err := h.monthFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	records, _, err := h.svc.MonthRecords(c.Request.Context(), year, month)
	if err != nil {
		writeError(c, err)
		return
	}
	recap := h.svc.Evaluator().MonthlyRecap(records, month, year)
	c.JSON(http.StatusOK, gin.H{"year": year, "month": int(month), "recap": nonNil(recap)})
}

func (h *Handler) AdminMatrix(c *gin.Context) {
	year, month, err := h.monthFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	records, profiles, err := h.svc.MonthRecords(c.Request.Context(), year, month)
	if err != nil {
		writeError(c, err)
		return
	}
	m := report.BuildMatrix(profiles, records, year, month, c.Query("institution"), h.svc.Policy().Location)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) ExportSpreadsheet(c *gin.Context) {
	_, matched, ok := h.filtered(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteSpreadsheet(&buf, report.Flatten(matched, h.svc.Policy().Location)); err != nil {
		writeError(c, err)
		return
	}
	h.observeExport("xlsx")

	date := c.Query("date")
	if date == "" {
		date = attendance.DateOf(h.clock.Now(), h.svc.Policy().Location).String()
	}
	attachment(c, report.SpreadsheetName(date),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *Handler) ExportPDF(c *gin.Context) {
	year, month, err := h.monthFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	data, err := h.renderMonthly(c.Request.Context(), year, month)
	if err != nil {
		writeError(c, err)
		return
	}
	h.observeExport("pdf")
	attachment(c, report.PDFName(year, month), "application/pdf", data)
}

func (h *Handler) renderMonthly(ctx context.Context, year int, month time.Month) ([]byte, error) {
	records, profiles, err := h.svc.MonthRecords(ctx, year, month)
	if err != nil {
		return nil, err
	}
	m, err := h.policy.Monthly(year, month, h.clock.Now())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, profiles, records, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type monthlyReportRequest struct {
	Year  int `json:"year" binding:"required,gte=1970,lte=9999"`
	Month int `json:"month" binding:"required,gte=1,lte=12"`
}

func (h *Handler) EnqueueMonthlyReport(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report queue not configured"})
		return
	}
	var req monthlyReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.New("year and month (1-12) are required"))
		return
	}
	cl, _ := auth.FromContext(c)
	msg, err := queue.NewMessage(queue.TypeMonthlyReport, queue.MonthlyReport{
		Year:        req.Year,
		Month:       time.Month(req.Month),
		RequestedBy: cl.UserID(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.jobs.Publish(c.Request.Context(), msg); err != nil {
		log.Printf("queue publish failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to queue report"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "year": req.Year, "month": req.Month})
}

func (h *Handler) observeExport(format string) {
	if h.exports != nil {
		h.exports.ObserveExport(format)
	}
}

func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}
