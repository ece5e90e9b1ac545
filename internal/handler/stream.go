package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/live"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

// SSE event names.
const (
	eventSnapshot = "snapshot"
	eventError    = "error"
)

// streamSnapshots relays live query snapshots as server-sent events until the
// client disconnects. A failed load is sent as an error event and the stream stays open.
func streamSnapshots[T any](c *gin.Context, snaps <-chan live.Snapshot[T]) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-store")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		snap, ok := <-snaps
		if !ok {
			return false
		}
		if snap.Err != nil {
			c.SSEvent(eventError, response.Envelope{Error: appErrors.FromError(snap.Err)})
			return true
		}
		c.SSEvent(eventSnapshot, response.Envelope{
			Data: snap.Data,
			Meta: map[string]interface{}{"at": snap.At.Format(time.RFC3339Nano)},
		})
		return true
	})
}
