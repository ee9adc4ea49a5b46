package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"presensi/internal/attendance"
	"presensi/internal/clock"
	"presensi/internal/cloudinary"
	"presensi/internal/config"
	"presensi/internal/jobs"
	"presensi/internal/queue"
	"presensi/internal/store"
)

// Worker renders queued monthly reports, uploads them, and schedules the
// report of the previous month on REPORT_CRON.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	rules, err := policy.Presence()
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	db, err := store.Open(cfg.StoreBackend, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	var uploader jobs.Uploader
	if cfg.CloudinaryEnabled() {
		uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured, reports are rendered but not stored")
	}

	clk := clock.SystemClock{}
	svc := attendance.NewService(attendance.NewRepository(db), rules, clk)
	runner := jobs.NewRunner(svc, policy, uploader, clk)

	if cfg.ReportCron != "" {
		sched, err := jobs.Schedule(cfg.ReportCron, rules.Location, clk, q)
		if err != nil {
			log.Fatalf("%v", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		log.Printf("monthly report scheduled at %q (%s)", cfg.ReportCron, policy.TimeZone)
	}

	log.Println("worker started, waiting for jobs...")
	if err := runner.Run(ctx, q); err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}
	log.Println("worker stopped")
}
