package service

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/repo"
	"ticketboard.com/pkg/logger"
	"ticketboard.com/pkg/xerr"
)

const (
	DefaultSnapshotTTL = 30 * time.Second

	snapshotReadTimeout = 10 * time.Second
)

// SnapshotProvider 全量快照：一次查询，按 createdAt 倒序。
//
// 调用方需要持有 Board 的提交读锁（Board.Tickets 和 stream 挂载都是这么做的），
// 否则缓存里可能写进一份被并发写入超越的旧数据。
type SnapshotProvider struct {
	repo  repo.TicketRepo
	cache SnapshotCache
	ttl   time.Duration
	sf    singleflight.Group

	// key = prefix + gen。进程重启换 prefix，Invalidate 换 gen，
	// 所以 Del 失败也读不到旧快照。
	prefix string
	gen    atomic.Uint64
}

func NewSnapshotProvider(r repo.TicketRepo, cache SnapshotCache, ttl time.Duration) *SnapshotProvider {
	if cache == nil {
		cache = NopCache()
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotProvider{
		repo:   r,
		cache:  cache,
		ttl:    ttl,
		prefix: "ticketboard:snapshot:" + uuid.NewString() + ":",
	}
}

func (p *SnapshotProvider) key() string {
	return fmt.Sprintf("%s%d", p.prefix, p.gen.Load())
}

// CurrentSnapshot 返回的切片归调用方所有
func (p *SnapshotProvider) CurrentSnapshot(ctx context.Context) ([]domain.Ticket, error) {
	key := p.key()
	if tickets, ok, err := p.cache.Get(ctx, key); err == nil && ok && tickets != nil {
		return tickets, nil
	} else if err != nil {
		logger.Warn(ctx, "snapshot cache get failed", zap.Error(err))
	}

	// singleflight 防击穿：同时挂载的连接只查一次库。
	// 共享的这次查询不跟随发起者的 ctx 取消，否则一个断开的请求会让同一批的其他连接都失败；
	// 每个调用方各自等自己的 ctx。
	ch := p.sf.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotReadTimeout)
		defer cancel()
		tickets, err := p.repo.ListAll(rctx)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Set(rctx, key, tickets, p.ttl); err != nil {
			logger.Warn(rctx, "snapshot cache set failed", zap.Error(err))
		}
		return tickets, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, xerr.Store(ctx.Err(), "Failed to fetch tickets.")
	}
	if res.Err != nil {
		logger.Error(ctx, "list tickets failed", zap.Error(res.Err))
		return nil, xerr.Store(res.Err, "Failed to fetch tickets.")
	}
	// 共享结果拷一份再给出去
	out := slices.Clone(res.Val.([]domain.Ticket))
	if out == nil {
		out = []domain.Ticket{}
	}
	return out, nil
}

// Invalidate 在每次提交变更后调用（持有提交写锁）
func (p *SnapshotProvider) Invalidate(ctx context.Context) {
	old := p.key()
	p.gen.Add(1)
	if err := p.cache.Del(ctx, old); err != nil {
		logger.Warn(ctx, "snapshot cache del failed", zap.String("key", old), zap.Error(err))
	}
}
