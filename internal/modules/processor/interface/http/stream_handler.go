package handler

import (
	"context"
	"net/http"
	"time"

	"MarketFlow/internal/modules/processor/application/dto/respond"
	"MarketFlow/pkg/jsoncodec"
	"MarketFlow/pkg/util/myjwt"
	"MarketFlow/pkg/ws"
	"MarketFlow/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler 通过 websocket 推送分区状态快照
type StreamHandler struct {
	hub    *ws.Hub
	status StatusSource
	state  RunState
	signer *myjwt.Signer
}

func NewStreamHandler(hub *ws.Hub, status StatusSource, state RunState, signer *myjwt.Signer) *StreamHandler {
	return &StreamHandler{hub: hub, status: status, state: state, signer: signer}
}

func (h *StreamHandler) snapshot() respond.PartitionListRespond {
	partitions := h.status.Snapshot()
	return respond.PartitionListRespond{
		Running:    h.state.Running(),
		Total:      len(partitions),
		Partitions: partitions,
	}
}

// Connect 浏览器无法为 websocket 握手设置 Header，令牌通过 ?token= 传入
func (h *StreamHandler) Connect(c *gin.Context) {
	claims, err := h.signer.ParseToken(c.Query("token"))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if claims.Role != myjwt.RoleAdmin {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	subscriber := claims.Subject
	if subscriber == "" {
		subscriber = claims.ID
	}
	client := ws.NewClient(subscriber, conn)
	h.hub.Register(client)
	if payload, err := jsoncodec.Marshal(h.snapshot()); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	go client.WritePump()
	client.ReadPump()
	h.hub.Unregister(client)
}

// Run 每隔 interval 广播一次快照，直到 ctx 取消
func (h *StreamHandler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer h.hub.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.hub.Len() == 0 {
				continue
			}
			if _, err := h.hub.BroadcastJSON(h.snapshot()); err != nil {
				zlog.Error("broadcast partition status failed", zap.Error(err))
			}
		}
	}
}
