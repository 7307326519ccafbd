package stream

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"ticketboard.com/internal/ticket/streammetrics"
	"ticketboard.com/pkg/logger"
)

// 被 hub 踢掉的原因，同时是 Subscriber.Reason 和 metrics 的 label
const (
	ReasonOverflow = "overflow"
	ReasonClosed   = "closed"
	ReasonShutdown = "shutdown"
)

// Handle Register 返回的凭证，Unregister 用
type Handle struct {
	id string
}

func (h Handle) Valid() bool { return h.id != "" }

// Hub 进程内的订阅者注册表 + 广播。
//
// Publish 对每个订阅者只做非阻塞 Offer，一个慢连接只会让自己被踢掉，
// 不影响别人，也不会卡住发起变更的请求。
type Hub struct {
	// Publish 串行：每个订阅者看到的事件顺序 == Publish 的调用顺序
	pubMu sync.Mutex

	mu     sync.RWMutex
	subs   map[string]*Subscriber
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Register 之后发布的每个事件都会尝试投递给 s，之前的不会
func (h *Hub) Register(s *Subscriber) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Handle{}, ErrHubClosed
	}
	if s.Closed() {
		return Handle{}, ErrSubscriberClosed
	}
	h.subs[s.ID()] = s
	streammetrics.Subscribers.Set(float64(len(h.subs)))
	return Handle{id: s.ID()}, nil
}

// Unregister 幂等，返回这次是否真的删掉了
func (h *Hub) Unregister(handle Handle) bool {
	if !handle.Valid() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[handle.id]; !ok {
		return false
	}
	delete(h.subs, handle.id)
	streammetrics.Subscribers.Set(float64(len(h.subs)))
	return true
}

// Publish 投递给当前所有订阅者，返回成功入队的数量。
// 队列满或已关闭的订阅者会被移除并关闭，本次的事件对它视为丢失。
func (h *Hub) Publish(ev Event) int {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	// 拷一份快照再投递，不持有 registry 锁
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	queued := 0
	for _, s := range targets {
		err := s.Offer(ev)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, ErrQueueFull):
			h.drop(s, ReasonOverflow)
		default:
			h.drop(s, ReasonClosed)
		}
	}
	streammetrics.OnPublish(string(ev.Type), queued)
	return queued
}

// drop 只有真正由 hub 关闭的才计入 dropped；已经自己 Detach 的只从注册表摘掉
func (h *Hub) drop(s *Subscriber, why string) {
	h.Unregister(Handle{id: s.ID()})
	if !s.Close(why) {
		return
	}
	logger.Warn(context.Background(), "subscriber dropped",
		zap.String("subscriber_id", s.ID()),
		zap.String("why", why),
		zap.Int("pending", s.Pending()))
	streammetrics.OnDrop(why)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close 关闭所有订阅者，之后 Register 返回 ErrHubClosed，Publish 变成空操作
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	streammetrics.Subscribers.Set(0)
	h.mu.Unlock()

	for _, s := range subs {
		s.Close(ReasonShutdown)
	}
	logger.Info(context.Background(), "stream hub closed", zap.Int("subscribers", len(subs)))
}
