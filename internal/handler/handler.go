package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"presensi/internal/attendance"
	"presensi/internal/auth"
	"presensi/internal/authclient"
	"presensi/internal/clock"
	"presensi/internal/config"
	"presensi/internal/geo"
	"presensi/internal/queue"
	"presensi/internal/session"
)

// AuthClient is the subset of the auth service the API forwards to.
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*authclient.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*authclient.User, error)
	ResendVerification(ctx context.Context, email string) error
	SignOut(ctx context.Context, accessToken string) error
}

// ExportRecorder counts generated reports.
type ExportRecorder interface {
	ObserveExport(format string)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps wires the handler. Service, Auth, Confirmer and Hub are required.
type Deps struct {
	Service *attendance.Service
	Auth    AuthClient
	// Confirmer answers whether a session's email is confirmed.
	Confirmer auth.Confirmer
	Hub       *session.Hub
	// Events publishes session changes; defaults to Hub.
	Events session.Publisher
	// Jobs receives report and presence jobs; nil disables them.
	Jobs queue.Queue
	// PublishTimeout bounds a presence job publish; defaults to 2s.
	PublishTimeout time.Duration
	Policy         config.Policy
	Clock          clock.Clock
	Exports        ExportRecorder
	Health         map[string]HealthCheck
	WatchInterval  time.Duration
}

type Handler struct {
	svc            *attendance.Service
	auth           AuthClient
	confirmer      auth.Confirmer
	hub            *session.Hub
	events         session.Publisher
	jobs           queue.Queue
	publishTimeout time.Duration
	policy         config.Policy
	clock          clock.Clock
	exports        ExportRecorder
	health         map[string]HealthCheck
	watchInterval  time.Duration
}

func New(d Deps) *Handler {
	h := &Handler{
		svc:            d.Service,
		auth:           d.Auth,
		confirmer:      d.Confirmer,
		hub:            d.Hub,
		events:         d.Events,
		jobs:           d.Jobs,
		publishTimeout: d.PublishTimeout,
		policy:         d.Policy,
		clock:          d.Clock,
		exports:        d.Exports,
		health:         d.Health,
		watchInterval:  d.WatchInterval,
	}
	if h.events == nil {
		h.events = d.Hub
	}
	if h.clock == nil {
		h.clock = clock.SystemClock{}
	}
	if h.publishTimeout <= 0 {
		h.publishTimeout = 2 * time.Second
	}
	if h.watchInterval <= 0 {
		h.watchInterval = time.Minute
	}
	return h
}

// Register mounts every route on r. sessionAuth validates bearer tokens;
// streamAuth does the same for the event streams, which may pass the token
// as a query parameter.
func (h *Handler) Register(r gin.IRouter, sessionAuth, streamAuth gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/signin", h.SignIn)
		v1.POST("/auth/signup", h.SignUp)
		v1.POST("/auth/resend", h.Resend)
	}

	authed := v1.Group("", sessionAuth)
	{
		authed.POST("/auth/signout", h.SignOut)
		authed.GET("/session", h.Session)
		authed.GET("/presence/window", h.Window)
		authed.GET("/presences/eligibility", h.Eligibility)
		authed.POST("/presences", auth.RequireVerified(h.confirmer), h.MarkPresence)
		authed.GET("/presences/me", auth.RequireVerified(h.confirmer), h.MyPresences)
	}

	streams := v1.Group("", streamAuth)
	{
		streams.GET("/session/events", h.SessionEvents)
		streams.GET("/presence/window/stream", h.WindowStream)
	}

	admin := v1.Group("/admin", sessionAuth, auth.RequireAdmin())
	{
		admin.GET("/presences", h.AdminPresences)
		admin.GET("/stats", h.AdminStats)
		admin.GET("/recap", h.AdminRecap)
		admin.GET("/matrix", h.AdminMatrix)
		admin.GET("/export.xlsx", h.ExportSpreadsheet)
		admin.GET("/report.pdf", h.ExportPDF)
		admin.POST("/reports/monthly", h.EnqueueMonthlyReport)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

// writeError maps domain errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		rej  *attendance.Rejection
		perr *geo.PositionError
	)
	switch {
	case errors.As(err, &rej):
		body := gin.H{"error": rej.Message, "reason": reasonOf(rej.Err)}
		if errors.Is(err, attendance.ErrOutsideGeofence) {
			body["distance_meters"] = rej.DistanceMeters
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, attendance.ErrMarkInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "presence marking already in progress", "reason": attendance.ResultInProgress})
	case errors.As(err, &perr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to get your location", "reason": string(perr.Reason)})
	case errors.Is(err, attendance.ErrStore):
		log.Printf("store error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		if ae, ok := authclient.AsError(err); ok {
			status := ae.Status
			if status < 400 || status > 599 {
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": ae.Message, "code": ae.Code})
			return
		}
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, attendance.ErrWindowClosed):
		return attendance.ResultWindowClosed
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return attendance.ResultAlreadyMarked
	case errors.Is(err, attendance.ErrOutsideGeofence):
		return attendance.ResultOutsideGeofence
	}
	return "rejected"
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
}

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.FromContext(c)
	return cl
}
