package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/api"
)

// =============================================================================
// 📡 讨论事件广播
// =============================================================================

// EventHub 将讨论中的发言与状态变化推送给订阅者。
// 发布永不阻塞：订阅者缓冲区满时丢弃该事件。
type EventHub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

// Subscription 单个订阅
type Subscription struct {
	discussionID string
	ch           chan api.EventMessage
	once         sync.Once
}

// Events 返回事件通道；讨论结束或取消订阅后关闭
func (s *Subscription) Events() <-chan api.EventMessage { return s.ch }

func (s *Subscription) close() { s.once.Do(func() { close(s.ch) }) }

// NewEventHub 创建事件中心，buffer 为每个订阅者的缓冲区大小
func NewEventHub(buffer int, logger *zap.Logger) *EventHub {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.With(zap.String("component", "event_hub")),
	}
}

// Subscribe 订阅某个讨论的事件
func (h *EventHub) Subscribe(discussionID string) *Subscription {
	sub := &Subscription{discussionID: discussionID, ch: make(chan api.EventMessage, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[discussionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[discussionID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe 取消订阅并关闭通道
func (h *EventHub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.discussionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.discussionID)
		}
	}
	sub.close()
}

// Subscribers 返回某个讨论当前的订阅者数
func (h *EventHub) Subscribers(discussionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[discussionID])
}

// Publish 向讨论的所有订阅者推送事件
func (h *EventHub) Publish(ev api.EventMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.DiscussionID] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("subscriber too slow, event dropped",
				zap.String("discussion_id", ev.DiscussionID),
				zap.String("type", ev.Type))
		}
	}
}

// PublishStatus 推送状态变化
func (h *EventHub) PublishStatus(discussionID, status string) {
	h.Publish(api.EventMessage{Type: api.EventStatus, DiscussionID: discussionID, Status: status})
}

// Close 关闭某个讨论的全部订阅
func (h *EventHub) Close(discussionID string) {
	h.mu.Lock()
	set := h.subs[discussionID]
	delete(h.subs, discussionID)
	h.mu.Unlock()

	for sub := range set {
		sub.close()
	}
}

// CloseAll 关闭全部订阅，服务关闭时使用
func (h *EventHub) CloseAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for sub := range set {
			sub.close()
		}
	}
}

// Record 实现 discussion.Sink，每条新发言作为事件推送
func (h *EventHub) Record(_ context.Context, discussionID string, u discussion.Utterance) error {
	msg := api.MessageFromUtterance(u)
	h.Publish(api.EventMessage{Type: api.EventUtterance, DiscussionID: discussionID, Message: &msg})
	return nil
}

var _ discussion.Sink = (*EventHub)(nil)

// =============================================================================
// 🔌 WebSocket 推送
// =============================================================================

const eventWriteTimeout = 10 * time.Second

// streamEvents 把订阅中的事件写入 WebSocket，直到订阅关闭或客户端断开
func streamEvents(ctx context.Context, conn *websocket.Conn, sub *Subscription, logger *zap.Logger) error {
	// 只写不读：CloseRead 负责处理控制帧，并在对端关闭时取消 ctx
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return conn.Close(websocket.StatusNormalClosure, "discussion closed")
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				logger.Debug("event write failed", zap.Error(err))
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev api.EventMessage) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}
