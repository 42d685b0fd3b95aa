package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/absolutelyright/server/internal/domain"
	"github.com/absolutelyright/server/internal/hooks"
	"github.com/absolutelyright/server/internal/logging"
	"github.com/absolutelyright/server/internal/store"
	"github.com/gorilla/websocket"
)

// LiveMessageToday is the only message type pushed on the live feed.
const LiveMessageToday = "today"

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// LiveMessage is a full snapshot of one day's counts.
type LiveMessage struct {
	Type   string            `json:"type"`
	Day    string            `json:"day"`
	Counts map[string]uint64 `json:"counts"`
}

func todayMessage(rec domain.DayRecord) LiveMessage {
	return LiveMessage{Type: LiveMessageToday, Day: rec.Day, Counts: rec.Flat()}
}

// LiveHub pushes today's counts to WebSocket subscribers.
type LiveHub struct {
	days    *store.DayStore
	clients *ClientRegistry
	log     *logging.Logger

	mu sync.Mutex // serializes broadcasts
}

// NewLiveHub creates a hub reading snapshots from days.
func NewLiveHub(days *store.DayStore, log *logging.Logger) *LiveHub {
	return &LiveHub{
		days:    days,
		clients: NewClientRegistry(log),
		log:     log,
	}
}

// CloseAll disconnects every subscriber.
func (h *LiveHub) CloseAll() {
	h.clients.CloseAll()
}

// Serve runs one subscriber connection: a snapshot on connect, then pushes
// until the peer goes away. Inbound messages are discarded.
func (h *LiveHub) Serve(conn *websocket.Conn, remote string) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := NewClient(conn, remote)
	h.clients.Add(client)
	defer func() {
		h.clients.Remove(client.ConnID)
		client.Close()
	}()

	// Read under the write lock after registering: any update committed
	// before the read is in the snapshot, any later one queues behind it.
	err := client.SendFunc(func() any {
		return todayMessage(h.days.Today(context.Background()))
	})
	if err != nil {
		h.log.Warn().Err(err).Str("connId", client.ConnID).Msg("snapshot send failed")
		return
	}

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}
	}
}

// keepAlive pings the peer until done is closed or a ping fails.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// OnCountsUpdated is a hooks.Handler broadcasting writes to today's record.
// It re-reads the record under a lock so concurrent writes cannot leave
// subscribers holding an older snapshot than the store.
func (h *LiveHub) OnCountsUpdated(ctx context.Context, p hooks.Payload) error {
	day, _ := p.Data["day"].(string)
	if day != h.days.TodayKey() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients.Broadcast(todayMessage(h.days.Get(ctx, day)))
	return nil
}

// handleLive upgrades GET /api/live.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.live.Serve(conn, r.RemoteAddr)
}
