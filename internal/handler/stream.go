package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presensi/internal/session"
)

// sseHeaders prepares the response for server-sent events.
func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

// WindowStream pushes the window state on connect and on every transition
// until the client goes away.
func (h *Handler) WindowStream(c *gin.Context) {
	ctx := c.Request.Context()
	states := h.svc.Policy().Watch(ctx, h.clock, h.watchInterval)

	sseHeaders(c)
	for st := range states {
		c.SSEvent("window", st)
		c.Writer.Flush()
	}
}

// SessionEvents pushes the caller's own session changes, so a sign-out on
// one device reaches the others.
func (h *Handler) SessionEvents(c *gin.Context) {
	ctx := c.Request.Context()
	userID := claims(c).UserID()

	events := make(chan session.Event, 8)
	unsubscribe := h.hub.Subscribe(func(ev session.Event) {
		if ev.UserID != userID {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	sseHeaders(c)
	c.Writer.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			c.SSEvent("session", ev)
			c.Writer.Flush()
			if ev.Type == session.SignedOut {
				return
			}
		}
	}
}
