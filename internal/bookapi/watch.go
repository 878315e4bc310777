package bookapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const watchHandshakeTimeout = 10 * time.Second

// Watch subscribes to change events of one chapter. The channel is closed
// when ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context, chapterID string) (<-chan Event, error) {
	target := c.base.JoinPath("/ws/chapters/" + url.PathEscape(chapterID))
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	dialer := websocket.Dialer{HandshakeTimeout: watchHandshakeTimeout}
	header := http.Header{}
	header.Set(requestIDHeader, uuid.NewString())
	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("watch chapter %s: %w", chapterID, err)
	}

	events := make(chan Event, 8)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(events)
		defer close(done)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Debug("Watch ended", zap.String("chapter", chapterID), zap.Error(err))
				}
				return
			}
			if ev.ChapterID == "" {
				ev.ChapterID = chapterID
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
