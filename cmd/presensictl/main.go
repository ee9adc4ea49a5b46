package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"presensi/internal/attendance"
	"presensi/internal/auth"
	"presensi/internal/clock"
	"presensi/internal/config"
	"presensi/internal/geo"
	"presensi/internal/jobs"
	"presensi/internal/presence"
	"presensi/internal/queue"
	"presensi/internal/report"
	"presensi/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: process config plus the policy.
type env struct {
	cfg    config.App
	policy config.Policy
	rules  presence.Policy
}

func newRootCmd() *cobra.Command {
	var policyPath string

	root := &cobra.Command{
		Use:           "presensictl",
		Short:         "Operate the presensi attendance service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&policyPath, "policy", "", "policy file (default: POLICY_PATH or built-in)")

	load := func() (*env, error) {
		cfg := config.Load()
		if policyPath != "" {
			cfg.PolicyPath = policyPath
		}
		p, err := config.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
		rules, err := p.Presence()
		if err != nil {
			return nil, err
		}
		return &env{cfg: cfg, policy: p, rules: rules}, nil
	}

	root.AddCommand(newWindowCmd(load))
	root.AddCommand(newCheckCmd(load))
	root.AddCommand(newMigrateCmd(load))
	root.AddCommand(newRecapCmd(load))
	root.AddCommand(newExportCmd(load))
	root.AddCommand(newReportCmd(load))
	root.AddCommand(newTokenCmd())
	return root
}

type loader func() (*env, error)

// service opens the configured store. The caller closes the returned DB.
func (e *env) service() (*attendance.Service, *store.DB, error) {
	db, err := store.Open(e.cfg.StoreBackend, e.cfg.DatabaseURL, e.cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return attendance.NewService(attendance.NewRepository(db), e.rules, clock.SystemClock{}), db, nil
}

func newWindowCmd(load loader) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show whether a presence window is open",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			out := cmd.OutOrStdout()
			local := now.In(e.rules.Location)
			_, _ = fmt.Fprintf(out, "%s, %s %s\n", presence.Greeting(now, e.rules.Location),
				report.FormatLongDate(local), local.Format("15:04"))
			if w, ok := e.rules.Current(now); ok {
				_, _ = fmt.Fprintf(out, "open: %s (%s)\n", w.Label, w.Span())
			} else {
				_, _ = fmt.Fprintln(out, "closed")
			}
			_, _ = fmt.Fprintln(out, presence.DescribeWindows(e.rules.Windows))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 instant instead of now")
	return cmd
}

func newCheckCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check <latitude> <longitude>",
		Short: "Measure a coordinate against the geofence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("latitude: %w", err)
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("longitude: %w", err)
			}
			d, inside := e.rules.Geofence.Check(geo.Coordinate{Latitude: lat, Longitude: lng})
			verdict := "outside"
			if inside {
				verdict = "inside"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f m (radius %.0f m)\n", verdict, d, e.rules.Geofence.RadiusMeters)
			return nil
		},
	}
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			db, err := store.Open(e.cfg.StoreBackend, e.cfg.DatabaseURL, e.cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", db.Dialect)
			return nil
		},
	}
}

// monthFlags binds --year and --month, defaulting to the previous month.
func monthFlags(cmd *cobra.Command, year, month *int) {
	y, m := jobs.PreviousMonth(time.Now(), time.Local)
	cmd.Flags().IntVar(year, "year", y, "report year")
	cmd.Flags().IntVar(month, "month", int(m), "report month (1-12)")
}

func checkMonth(month int) (time.Month, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month %d out of range", month)
	}
	return time.Month(month), nil
}

func newRecapCmd(load loader) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "recap",
		Short: "Rank users by presences in a month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := checkMonth(month)
			if err != nil {
				return err
			}
			e, err := load()
			if err != nil {
				return err
			}
			svc, db, err := e.service()
			if err != nil {
				return err
			}
			defer db.Close()

			records, _, err := svc.MonthRecords(cmd.Context(), year, m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s %d\n", report.MonthName(m), year)
			for i, r := range svc.Evaluator().MonthlyRecap(records, m, year) {
				name := r.UserID
				if r.Profile != nil {
					name = r.Profile.DisplayName()
				}
				_, _ = fmt.Fprintf(out, "%3d. %-30s %d\n", i+1, name, r.Count)
			}
			return nil
		},
	}
	monthFlags(cmd, &year, &month)
	return cmd
}

func newExportCmd(load loader) *cobra.Command {
	export := &cobra.Command{Use: "export", Short: "Write reports to files"}

	var date, institution, outPath string
	xlsx := &cobra.Command{
		Use:   "xlsx",
		Short: "Export one day of presences as a spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := load()
			if err != nil {
				return err
			}
			f := attendance.Filter{Institution: institution}
			if date == "" {
				date = attendance.DateOf(time.Now(), e.rules.Location).String()
			}
			d, err := attendance.ParseDate(date)
			if err != nil {
				return err
			}
			f.Date = &d

			svc, db, err := e.service()
			if err != nil {
				return err
			}
			defer db.Close()
			all, _, err := svc.Overview(cmd.Context())
			if err != nil {
				return err
			}
			rows := report.Flatten(f.Apply(all, e.rules.Location), e.rules.Location)
			if outPath == "" {
				outPath = report.SpreadsheetName(date)
			}
			return writeFile(cmd, outPath, func(fh *os.File) error { return report.WriteSpreadsheet(fh, rows) })
		},
	}
	xlsx.Flags().StringVar(&date, "date", "", "local date YYYY-MM-DD (default today)")
	xlsx.Flags().StringVar(&institution, "institution", "", "only this institution")
	xlsx.Flags().StringVarP(&outPath, "out", "o", "", "output file")

	var year, month int
	var pdfOut string
	pdf := &cobra.Command{
		Use:   "pdf",
		Short: "Export the monthly signed report as PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := checkMonth(month)
			if err != nil {
				return err
			}
			e, err := load()
			if err != nil {
				return err
			}
			svc, db, err := e.service()
			if err != nil {
				return err
			}
			defer db.Close()
			data, err := jobs.NewRunner(svc, e.policy, nil, nil).Render(cmd.Context(), year, m)
			if err != nil {
				return err
			}
			if pdfOut == "" {
				pdfOut = report.PDFName(year, m)
			}
			return writeFile(cmd, pdfOut, func(fh *os.File) error {
				_, err := fh.Write(data)
				return err
			})
		},
	}
	monthFlags(pdf, &year, &month)
	pdf.Flags().StringVarP(&pdfOut, "out", "o", "", "output file")

	export.AddCommand(xlsx, pdf)
	return export
}

func writeFile(cmd *cobra.Command, path string, write func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		_ = fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func newReportCmd(load loader) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Queue a monthly report for the worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := checkMonth(month)
			if err != nil {
				return err
			}
			e, err := load()
			if err != nil {
				return err
			}
			if e.cfg.QueueBackend == "memory" {
				return fmt.Errorf("QUEUE_BACKEND=memory cannot reach the worker")
			}
			rdb := store.NewRedis(e.cfg.RedisAddr)
			defer rdb.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := jobs.EnqueueMonthly(ctx, queue.NewRedisQueue(rdb.Client, queue.DefaultKey), year, m, "presensictl"); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", report.PDFName(year, m))
			return nil
		},
	}
	monthFlags(cmd, &year, &month)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject, email string
		admin          bool
		ttl            time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed session token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if subject == "" {
				subject = uuid.NewString()
			}
			c := auth.Claims{Email: email, RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
			if admin {
				c.AppMetadata.Role = auth.RoleAdmin
			}
			tok, err := auth.Issue(c, cfg.JWTIssuer, cfg.JWTSigningKey, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id (default: random uuid)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
