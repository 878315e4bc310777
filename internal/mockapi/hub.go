package mockapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/bookapi"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans chapter change events out to websocket subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
	log  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: map[string]map[*subscriber]struct{}{}, log: logger.Named("ws")}
}

// Subscribers returns the number of live connections watching chapterID.
func (h *Hub) Subscribers(chapterID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chapterID])
}

// Broadcast queues ev for every subscriber of its chapter. Slow subscribers
// are dropped instead of blocking the caller.
func (h *Hub) Broadcast(ev bookapi.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.Error(err))
		return
	}
	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.subs[ev.ChapterID] {
		select {
		case sub.send <- data:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()
	for _, sub := range slow {
		h.log.Warn("dropping slow subscriber", zap.String("chapter", ev.ChapterID))
		h.remove(ev.ChapterID, sub)
	}
}

func (h *Hub) add(chapterID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[chapterID]
	if !ok {
		set = map[*subscriber]struct{}{}
		h.subs[chapterID] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) remove(chapterID string, sub *subscriber) {
	h.mu.Lock()
	set := h.subs[chapterID]
	_, ok := set[sub]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, chapterID)
	}
	h.mu.Unlock()
	if ok {
		sub.close()
	}
}

// serve upgrades the request and streams events until the peer goes away.
func (h *Hub) serve(c *gin.Context, chapterID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(chapterID, sub)
	h.log.Debug("subscriber joined", zap.String("chapter", chapterID))

	go h.writeLoop(sub)
	h.readLoop(chapterID, sub)
}

func (h *Hub) readLoop(chapterID string, sub *subscriber) {
	defer h.remove(chapterID, sub)
	sub.conn.SetReadLimit(4096)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("subscriber read", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
