package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// badgeEvent holds unread totals for a badge SSE event.
type badgeEvent struct {
	Messages      int `json:"messages"`
	Notifications int `json:"notifications"`
}

// handleSSE streams badge changes. The connected client gets the current
// totals immediately, then an event whenever a poll moves them, plus a
// heartbeat so proxies keep the connection open.
func handleSSE(source Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		messages, notifications := source.Counts()
		last := badgeEvent{Messages: messages, Notifications: notifications}
		writeSSE(c.Writer, "badge", last)
		c.Writer.Flush()

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				messages, notifications := source.Counts()
				evt := badgeEvent{Messages: messages, Notifications: notifications}
				if evt == last {
					continue
				}
				last = evt
				writeSSE(c.Writer, "badge", evt)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
