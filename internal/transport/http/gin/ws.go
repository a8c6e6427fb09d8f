package httpgin

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/logger"
	redisx "github.com/kirinyoku/gamecafe/internal/redis"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsClient struct {
	cafeID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans device status events out to the websocket clients watching each café.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*wsClient]struct{}
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{clients: make(map[uuid.UUID]map[*wsClient]struct{}), log: log}
}

// Handle matches the redis subscriber callback.
func (h *Hub) Handle(_ context.Context, ev redisx.DeviceStatusEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.Broadcast(ev.CafeID, b)
}

// Broadcast drops clients whose buffer is full.
func (h *Hub) Broadcast(cafeID uuid.UUID, msg []byte) {
	h.mu.RLock()
	var slow []*wsClient
	for cl := range h.clients[cafeID] {
		select {
		case cl.send <- msg:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.unregister(cl)
	}
}

func (h *Hub) Watchers(cafeID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[cafeID])
}

func (h *Hub) register(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[cl.cafeID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[cl.cafeID] = set
	}
	set[cl] = struct{}{}
}

func (h *Hub) unregister(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[cl.cafeID]
	if !ok {
		return
	}
	if _, ok := set[cl]; !ok {
		return
	}
	delete(set, cl)
	close(cl.send)
	if len(set) == 0 {
		delete(h.clients, cl.cafeID)
	}
}

type boardSnapshot struct {
	Type    string          `json:"type"`
	CafeID  uuid.UUID       `json:"cafe_id"`
	Devices []domain.Device `json:"devices"`
}

// @Summary  Live device board
// @Description Websocket. Sends a snapshot, then device_status events.
// @Param    id            path   string  true   "Cafe ID"
// @Param    access_token  query  string  false  "Bearer token"
// @Router   /ws/cafes/{id}/devices [get]
func (h *Handler) deviceFeed(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "live board is disabled"})
		return
	}

	cafeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.svcs.Cafes.Get(c.Request.Context(), cafeID); err != nil {
		respondErr(c, err)
		return
	}

	devices, err := h.svcs.Devices.ListByCafe(c.Request.Context(), cafeID)
	if err != nil {
		respondErr(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	snapshot, _ := json.Marshal(boardSnapshot{Type: "snapshot", CafeID: cafeID, Devices: devices})

	cl := &wsClient{cafeID: cafeID, conn: conn, send: make(chan []byte, sendBuffer)}
	cl.send <- snapshot
	h.hub.register(cl)

	h.log.Debug("board watcher connected", zap.String(logger.FieldCafeID, cafeID.String()))

	go cl.writePump()
	go cl.readPump(h.hub)
}

func (cl *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (cl *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
