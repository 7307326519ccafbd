package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultBufferSize = 64

var (
	ErrHubClosed        = errors.New("stream: hub closed")
	ErrQueueFull        = errors.New("stream: subscriber queue full")
	ErrSubscriberClosed = errors.New("stream: subscriber closed")
)

// Subscriber 一个连接在 hub 里的登记项：有界队列 + 关闭信号。
//
// queue 从不 close，Close 之后 Offer 直接返回 ErrSubscriberClosed，
// 所以不会出现往已释放的订阅者写数据。
type Subscriber struct {
	id         string
	attachedAt time.Time

	queue chan Event
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	reason string
}

func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Subscriber{
		id:         uuid.NewString(),
		attachedAt: time.Now(),
		queue:      make(chan Event, buffer),
		done:       make(chan struct{}),
	}
}

func (s *Subscriber) ID() string { return s.id }

func (s *Subscriber) AttachedAt() time.Time { return s.attachedAt }

// Offer 非阻塞入队
func (s *Subscriber) Offer(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	select {
	case s.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events 连接的写循环从这里取
func (s *Subscriber) Events() <-chan Event { return s.queue }

func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Close 只有第一次调用生效并返回 true
func (s *Subscriber) Close(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.reason = reason
	close(s.done)
	return true
}

func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscriber) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Subscriber) Pending() int { return len(s.queue) }
