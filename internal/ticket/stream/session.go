package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/streammetrics"
	"ticketboard.com/pkg/logger"
)

const DefaultHeartbeat = 25 * time.Second

// 连接结束的原因（除了 hub 侧的 overflow/closed/shutdown）
const (
	ReasonClientClosed = "client_closed"
	ReasonWriteFailed  = "write_failed"
	ReasonAttachFailed = "attach_failed"
)

var ErrSnapshot = errors.New("stream: snapshot unavailable")

// SnapshotSource 提供挂载时的全量快照
type SnapshotSource interface {
	CurrentSnapshot(ctx context.Context) ([]domain.Ticket, error)
}

// Transport 一个已建立的客户端连接（SSE / WebSocket）
type Transport interface {
	// Send 写一个事件并刷出去；返回错误说明连接已不可用
	Send(ev Event) error
	// Closed 客户端断开时关闭
	Closed() <-chan struct{}
}

type State int32

const (
	StateAttaching State = iota
	StateStreaming
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateStreaming:
		return "streaming"
	case StateDetached:
		return "detached"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type SessionConfig struct {
	BufferSize int
	Heartbeat  time.Duration
	// AttachLock 挂载期间持有（读快照 + 入队 snapshot + Register）。
	// 变更侧拿同一把锁的写锁，这样快照和之后的增量之间不丢不重。
	AttachLock sync.Locker
}

// Session 一个订阅连接的生命周期：Attaching -> Streaming -> Detached
type Session struct {
	hub       *Hub
	source    SnapshotSource
	transport Transport
	cfg       SessionConfig

	sub   *Subscriber
	state atomic.Int32

	mu     sync.Mutex
	handle Handle

	detachOnce sync.Once
	reason     atomic.Value // string
}

func NewSession(hub *Hub, source SnapshotSource, transport Transport, cfg SessionConfig) *Session {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	return &Session{
		hub:       hub,
		source:    source,
		transport: transport,
		cfg:       cfg,
		sub:       NewSubscriber(cfg.BufferSize),
	}
}

func (s *Session) ID() string { return s.sub.ID() }

func (s *Session) State() State { return State(s.state.Load()) }

// Reason 只有 Detached 之后才有值
func (s *Session) Reason() string {
	r, _ := s.reason.Load().(string)
	return r
}

// Run 挂载并一直推送到连接结束，在调用方的 goroutine 里跑。
// 挂载失败（快照读不到 / hub 已关闭）时没有任何东西写到 transport。
func (s *Session) Run(ctx context.Context) error {
	if err := s.attach(ctx); err != nil {
		s.Detach(ReasonAttachFailed)
		return err
	}
	reason, err := s.loop(ctx)
	s.Detach(reason)
	return err
}

func (s *Session) attach(ctx context.Context) error {
	if s.cfg.AttachLock != nil {
		s.cfg.AttachLock.Lock()
		defer s.cfg.AttachLock.Unlock()
	}

	tickets, err := s.source.CurrentSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	ev, err := NewSnapshot(tickets)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	// 快照先进队列，注册之后的增量一定排在它后面
	if err := s.sub.Offer(ev); err != nil {
		return err
	}
	h, err := s.hub.Register(s.sub)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
	// 注册过程中被 Detach 了
	if s.sub.Closed() {
		s.hub.Unregister(h)
		return ErrSubscriberClosed
	}
	s.state.CompareAndSwap(int32(StateAttaching), int32(StateStreaming))
	streammetrics.OnAttach(len(tickets))
	logger.Info(ctx, "subscriber attached",
		zap.String("subscriber_id", s.sub.ID()),
		zap.Int("snapshot_tickets", len(tickets)))
	return nil
}

func (s *Session) loop(ctx context.Context) (string, error) {
	hb := time.NewTicker(s.cfg.Heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-ctx.Done():
			return ReasonShutdown, nil
		case <-s.transport.Closed():
			return ReasonClientClosed, nil
		case <-s.sub.Done():
			return s.sub.Reason(), nil
		case ev := <-s.sub.Events():
			if err := s.transport.Send(ev); err != nil {
				return ReasonWriteFailed, err
			}
		case now := <-hb.C:
			// 心跳也走队列，不会插到已排队的事件前面
			if err := s.sub.Offer(NewHeartbeat(now)); err != nil {
				if errors.Is(err, ErrQueueFull) {
					return ReasonOverflow, nil
				}
				return s.sub.Reason(), nil
			}
			streammetrics.HeartbeatTotal.Inc()
		}
	}
}

// Detach 幂等，可以从任意 goroutine 调用。
// 之后这个连接不会再收到任何事件。
func (s *Session) Detach(reason string) {
	s.detachOnce.Do(func() {
		s.state.Store(int32(StateDetached))
		s.mu.Lock()
		h := s.handle
		s.mu.Unlock()
		s.hub.Unregister(h)
		if !s.sub.Close(reason) {
			// hub 先踢掉的，以 hub 的原因为准
			reason = s.sub.Reason()
		}
		s.reason.Store(reason)
		streammetrics.OnDetach(reason)
		logger.Info(context.Background(), "subscriber detached",
			zap.String("subscriber_id", s.sub.ID()),
			zap.String("reason", reason),
			zap.Duration("lifetime", time.Since(s.sub.AttachedAt())))
	})
}
