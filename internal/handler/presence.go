package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"presensi/internal/geo"
	"presensi/internal/presence"
	"presensi/internal/queue"
)

func (h *Handler) Window(c *gin.Context) {
	p := h.svc.Policy()
	now := h.clock.Now()
	body := gin.H{
		"now":      now,
		"open":     false,
		"schedule": p.Windows,
		"message":  presence.DescribeWindows(p.Windows),
		"greeting": presence.Greeting(now, p.Location),
	}
	if w, ok := p.Current(now); ok {
		body["open"] = true
		body["window"] = w
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Eligibility(c *gin.Context) {
	w, err := h.svc.Eligibility(c.Request.Context(), claims(c).UserID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eligible": true, "window": w})
}

// markRequest carries the device position or the reason it could not be read.
type markRequest struct {
	Latitude  *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Error     string   `json:"error"`
}

func (r markRequest) locator() geo.Reported {
	if r.Latitude == nil || r.Longitude == nil {
		reason := r.Error
		if reason == "" {
			reason = string(geo.PositionUnavailable)
		}
		return geo.Reported{Reason: reason}
	}
	return geo.Reported{Coordinate: &geo.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}, Reason: r.Error}
}

func (h *Handler) MarkPresence(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID := claims(c).UserID()
	rec, err := h.svc.MarkPresence(c.Request.Context(), userID, req.locator())
	if err != nil {
		writeError(c, err)
		return
	}

	if h.jobs != nil {
		msg, err := queue.NewMessage(queue.TypePresenceMarked, queue.PresenceMarked{
			RecordID: rec.ID,
			UserID:   rec.UserID,
			Kind:     string(rec.Kind),
			At:       rec.CreatedAt,
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.publishTimeout)
			err = h.jobs.Publish(ctx, msg)
			cancel()
		}
		if err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"presence": rec,
		"message":  rec.Label + " presence recorded",
	})
}

func (h *Handler) MyPresences(c *gin.Context) {
	userID := claims(c).UserID()
	records, err := h.svc.History(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	eval := h.svc.Evaluator()
	c.JSON(http.StatusOK, gin.H{
		"presences": nonNil(records),
		"today":     eval.TodayStatus(records, h.clock.Now()),
		"summary":   eval.Summary(records),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
