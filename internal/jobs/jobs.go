package jobs

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"presensi/internal/attendance"
	"presensi/internal/clock"
	"presensi/internal/cloudinary"
	"presensi/internal/config"
	"presensi/internal/queue"
	"presensi/internal/report"
)

// Uploader stores a rendered report. cloudinary.Client satisfies it.
type Uploader interface {
	UploadRaw(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
}

// Runner executes queued jobs.
type Runner struct {
	svc      *attendance.Service
	policy   config.Policy
	uploader Uploader
	clock    clock.Clock
}

// NewRunner builds a runner. A nil uploader renders reports without storing them.
func NewRunner(svc *attendance.Service, policy config.Policy, uploader Uploader, clk clock.Clock) *Runner {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Runner{svc: svc, policy: policy, uploader: uploader, clock: clk}
}

// Render builds the monthly PDF for year/month, signed today.
func (r *Runner) Render(ctx context.Context, year int, month time.Month) ([]byte, error) {
	records, profiles, err := r.svc.MonthRecords(ctx, year, month)
	if err != nil {
		return nil, err
	}
	m, err := r.policy.Monthly(year, month, r.clock.Now())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, profiles, records, m); err != nil {
		return nil, fmt.Errorf("render %s: %w", report.PDFName(year, month), err)
	}
	return buf.Bytes(), nil
}

// MonthlyReport renders and uploads one month. The upload replaces any
// earlier report of the same month. It returns the stored URL, empty when
// no uploader is configured.
func (r *Runner) MonthlyReport(ctx context.Context, job queue.MonthlyReport) (string, error) {
	if job.Month < time.January || job.Month > time.December {
		return "", fmt.Errorf("invalid month %d", job.Month)
	}
	data, err := r.Render(ctx, job.Year, job.Month)
	if err != nil {
		return "", err
	}
	name := report.PDFName(job.Year, job.Month)
	if r.uploader == nil {
		log.Printf("report %s rendered (%d bytes), upload disabled", name, len(data))
		return "", nil
	}
	res, err := r.uploader.UploadRaw(ctx, data, name, strings.TrimSuffix(name, ".pdf"))
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	log.Printf("report %s uploaded to %s", name, res.SecureURL)
	return res.SecureURL, nil
}

// Handle dispatches one queue message.
func (r *Runner) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeMonthlyReport:
		var job queue.MonthlyReport
		if err := msg.Decode(&job); err != nil {
			return err
		}
		_, err := r.MonthlyReport(ctx, job)
		return err
	case queue.TypePresenceMarked:
		var ev queue.PresenceMarked
		if err := msg.Decode(&ev); err != nil {
			return err
		}
		log.Printf("presence %s: user %s marked %s at %s", ev.RecordID, ev.UserID, ev.Kind,
			ev.At.In(r.svc.Policy().Location).Format("2006-01-02 15:04:05"))
		return nil
	}
	return fmt.Errorf("unknown job type %q", msg.Type)
}

// Run consumes q until ctx is done. Failed jobs are logged and dropped.
func (r *Runner) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if err := r.Handle(ctx, msg); err != nil {
			log.Printf("job %s failed: %v", msg.Type, err)
		}
	}
	return nil
}

// PreviousMonth is the month before now in loc.
func PreviousMonth(now time.Time, loc *time.Location) (int, time.Month) {
	first := time.Date(now.In(loc).Year(), now.In(loc).Month(), 1, 0, 0, 0, 0, loc)
	prev := first.AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// Schedule enqueues last month's report on every tick of spec, evaluated
// in loc. The caller starts and stops the returned scheduler.
func Schedule(spec string, loc *time.Location, clk clock.Clock, q queue.Queue) (*cron.Cron, error) {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		year, month := PreviousMonth(clk.Now(), loc)
		if err := EnqueueMonthly(context.Background(), q, year, month, "cron"); err != nil {
			log.Printf("schedule report %d-%02d: %v", year, month, err)
			return
		}
		log.Printf("scheduled report %d-%02d", year, month)
	})
	if err != nil {
		return nil, fmt.Errorf("report schedule %q: %w", spec, err)
	}
	return c, nil
}

// EnqueueMonthly queues a monthly report job.
func EnqueueMonthly(ctx context.Context, q queue.Queue, year int, month time.Month, by string) error {
	msg, err := queue.NewMessage(queue.TypeMonthlyReport, queue.MonthlyReport{Year: year, Month: month, RequestedBy: by})
	if err != nil {
		return err
	}
	return q.Publish(ctx, msg)
}
