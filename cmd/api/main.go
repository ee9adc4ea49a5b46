package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presensi/internal/attendance"
	"presensi/internal/auth"
	"presensi/internal/authclient"
	"presensi/internal/clock"
	"presensi/internal/config"
	"presensi/internal/handler"
	"presensi/internal/httpmiddleware"
	"presensi/internal/metrics"
	"presensi/internal/presence"
	"presensi/internal/queue"
	"presensi/internal/session"
	"presensi/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return err
	}
	rules, err := policy.Presence()
	if err != nil {
		return err
	}
	log.Printf("presence windows (%s):\n%s", policy.TimeZone, presence.DescribeWindows(rules.Windows))

	db, err := store.Open(cfg.StoreBackend, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	hub := session.NewHub()
	var (
		events session.Publisher = hub
		jobs   queue.Queue
	)
	health := map[string]handler.HealthCheck{
		"db": db.Healthy,
	}
	if cfg.QueueBackend == "memory" {
		// No worker shares an in-process queue with the API.
		log.Println("QUEUE_BACKEND=memory: report and presence jobs disabled")
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
		bridge := session.NewRedisBridge(redisClient.Client, session.DefaultChannel, hub)
		events = bridge
		health["redis"] = redisClient.Healthy
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Printf("session bridge stopped: %v", err)
			}
		}()
	}

	authClient := authclient.New(cfg.AuthURL, cfg.AuthAPIKey)
	health["auth"] = func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return authClient.Health(ctx) == nil
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	svc := attendance.NewService(attendance.NewRepository(db), rules, clock.SystemClock{}).WithRecorder(m)

	h := handler.New(handler.Deps{
		Service:       svc,
		Auth:          authClient,
		Confirmer:     auth.NewConfirmationCache(authClient, 1024, 5*time.Minute),
		Hub:           hub,
		Events:        events,
		Jobs:          jobs,
		Policy:        policy,
		Exports:       m,
		Health:        health,
		WatchInterval: policy.RefreshInterval,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: httpmiddleware.LogFormatter(auth.QueryTokenParam),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware(httpmiddleware.ClientIP))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r,
		auth.SessionAuth(cfg.JWTSigningKey, cfg.JWTIssuer),
		auth.StreamAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// WriteTimeout stays zero so event streams are not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}
