package ws

import (
	"sync"
	"time"

	"MarketFlow/pkg/jsoncodec"
	"MarketFlow/pkg/zlog"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub 管理订阅者连接，同一个订阅者可以有多个连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	if c == nil || c.subscriber == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.subscriber]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.subscriber] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	if c == nil || c.subscriber == "" {
		return
	}
	h.mu.Lock()
	set := h.clients[c.subscriber]
	if set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.subscriber)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Len 返回当前连接数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, set := range h.clients {
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast 把 payload 投递给所有连接，发送队列已满的慢连接会被断开
func (h *Hub) Broadcast(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	sent := 0
	for _, c := range h.snapshot() {
		if c.enqueue(payload) {
			sent++
			continue
		}
		zlog.Warn("websocket client too slow, dropping", zap.String("subscriber", c.subscriber))
		h.Unregister(c)
	}
	return sent
}

func (h *Hub) BroadcastJSON(v interface{}) (int, error) {
	b, err := jsoncodec.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.Broadcast(b), nil
}

// CloseAll 断开所有连接，关闭服务时调用
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		h.Unregister(c)
	}
}

type Client struct {
	subscriber string
	conn       *websocket.Conn
	send       chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func NewClient(subscriber string, conn *websocket.Conn) *Client {
	return &Client{
		subscriber: subscriber,
		conn:       conn,
		send:       make(chan []byte, 64),
	}
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// WritePump 把发送队列写入连接并定时发送 ping，队列关闭后返回
func (c *Client) WritePump() {
	if c.conn == nil {
		return
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zlog.Warn("websocket write failed", zap.String("subscriber", c.subscriber), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump 丢弃客户端发来的消息，连接断开时返回
func (c *Client) ReadPump() {
	if c.conn == nil {
		return
	}
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
