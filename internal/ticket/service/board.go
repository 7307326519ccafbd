package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/stream"
	"ticketboard.com/pkg/logger"
	"ticketboard.com/pkg/xerr"
)

// Board 变更入口：落库成功后在同一把提交锁内发布恰好一个事件。
//
// 提交锁：变更持写锁（落库 + 失效缓存 + Publish），
// 读快照和挂载订阅持读锁。挂载的连接要么在快照里看到某次变更，
// 要么收到它的事件，不会两者都有或都没有。
type Board struct {
	commit    sync.RWMutex
	gateway   *Gateway
	snapshots *SnapshotProvider
	hub       *stream.Hub
}

func NewBoard(gw *Gateway, snapshots *SnapshotProvider, hub *stream.Hub) *Board {
	return &Board{gateway: gw, snapshots: snapshots, hub: hub}
}

func (b *Board) Create(ctx context.Context, in CreateTicketInput) (domain.Ticket, error) {
	b.commit.Lock()
	defer b.commit.Unlock()

	t, err := b.gateway.CreateTicket(ctx, in)
	if err != nil {
		return domain.Ticket{}, err
	}
	b.snapshots.Invalidate(ctx)
	ev, err := stream.NewCreated(t)
	b.publish(ctx, ev, err)
	logger.Info(ctx, "ticket created", zap.String("ticket_id", t.ID), zap.String("priority", string(t.Priority)))
	return t, nil
}

func (b *Board) SetStatus(ctx context.Context, id string, status string) (domain.Ticket, error) {
	b.commit.Lock()
	defer b.commit.Unlock()

	t, err := b.gateway.SetStatus(ctx, id, status)
	if err != nil {
		return domain.Ticket{}, err
	}
	b.snapshots.Invalidate(ctx)
	ev, err := stream.NewUpdated(t)
	b.publish(ctx, ev, err)
	logger.Info(ctx, "ticket status updated", zap.String("ticket_id", t.ID), zap.String("status", string(t.Status)))
	return t, nil
}

// Delete 不存在时返回 NotFound
func (b *Board) Delete(ctx context.Context, id string) error {
	b.commit.Lock()
	defer b.commit.Unlock()

	ok, err := b.gateway.DeleteTicket(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return xerr.NotFound(MsgNotFound)
	}
	b.snapshots.Invalidate(ctx)
	ev, err := stream.NewDeleted(id)
	b.publish(ctx, ev, err)
	logger.Info(ctx, "ticket deleted", zap.String("ticket_id", id))
	return nil
}

// publish 变更已经提交，编码失败只能记日志，订阅者重连后靠快照自愈
func (b *Board) publish(ctx context.Context, ev stream.Event, encodeErr error) {
	if encodeErr != nil {
		logger.Error(ctx, "encode event failed", zap.Error(encodeErr))
		return
	}
	n := b.hub.Publish(ev)
	logger.Debug(ctx, "event published", zap.String("type", string(ev.Type)), zap.Int("subscribers", n))
}

// Tickets GET /tickets 用的一致性读
func (b *Board) Tickets(ctx context.Context) ([]domain.Ticket, error) {
	b.commit.RLock()
	defer b.commit.RUnlock()
	return b.snapshots.CurrentSnapshot(ctx)
}

// AttachLock 给 stream.Session 挂载时用的读锁
func (b *Board) AttachLock() sync.Locker { return b.commit.RLocker() }

// Snapshots 挂载时的快照来源，必须配合 AttachLock 使用
func (b *Board) Snapshots() stream.SnapshotSource { return b.snapshots }

func (b *Board) Hub() *stream.Hub { return b.hub }

// NewSession 创建一个挂到本看板上的订阅连接
func (b *Board) NewSession(tr stream.Transport, cfg stream.SessionConfig) *stream.Session {
	cfg.AttachLock = b.AttachLock()
	return stream.NewSession(b.hub, b.snapshots, tr, cfg)
}
