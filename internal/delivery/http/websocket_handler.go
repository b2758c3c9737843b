package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/delivery/http/middleware"
	"github.com/tastycreative/genflow/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // identity comes from the gateway header, not cookies
	},
}

// EventSubscriber streams a user's realtime events.
type EventSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan *domain.Event, func() error, error)
}

// WebSocketHandler forwards realtime generation events to the connected user.
type WebSocketHandler struct {
	subscriber EventSubscriber
	logger     *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(subscriber EventSubscriber, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Stream handles GET /api/v1/events (WebSocket upgrade). The optional jobId
// query parameter limits the stream to one job.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var jobFilter uuid.UUID
	if raw := c.Query("jobId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
			return
		}
		jobFilter = id
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, closeSub, err := h.subscriber.Subscribe(ctx, userID)
	if err != nil {
		h.logger.Error("Realtime subscribe failed", zap.Error(err), zap.String("user_id", userID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}
	defer closeSub()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("user_id", userID))

	// Reader: only consumes control frames and notices disconnects.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if jobFilter != uuid.Nil && event.JobID != jobFilter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				return
			}
			if jobFilter != uuid.Nil && event.Status.IsTerminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
					time.Now().Add(writeWait))
				return
			}
		}
	}
}
