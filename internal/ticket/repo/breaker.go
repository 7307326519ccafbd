package repo

import (
	"context"
	"errors"

	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/pkg/ratelimit"
)

// breakerRepo 给存储套一层熔断：数据库持续失败时快速失败，不让请求堆在连接池上。
// ErrNotFound 和 ctx 取消不算存储不健康。
type breakerRepo struct {
	next TicketRepo
	m    *ratelimit.Manager
}

func WithBreaker(next TicketRepo, rule ratelimit.Rule) (TicketRepo, *ratelimit.Manager) {
	m := ratelimit.NewManager(rule, IsHealthy)
	return &breakerRepo{next: next, m: m}, m
}

// IsHealthy 判断一次调用结果是否说明存储是健康的
func IsHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

func run[T any](b *breakerRepo, name string, fn func() (T, error)) (T, error) {
	v, err := b.m.Get("tickets."+name).Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (b *breakerRepo) Create(ctx context.Context, t domain.Ticket) (domain.Ticket, error) {
	return run(b, "write", func() (domain.Ticket, error) { return b.next.Create(ctx, t) })
}

func (b *breakerRepo) UpdateStatus(ctx context.Context, id string, apply func(t *domain.Ticket)) (domain.Ticket, error) {
	return run(b, "write", func() (domain.Ticket, error) { return b.next.UpdateStatus(ctx, id, apply) })
}

func (b *breakerRepo) Delete(ctx context.Context, id string) (bool, error) {
	return run(b, "write", func() (bool, error) { return b.next.Delete(ctx, id) })
}

func (b *breakerRepo) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return run(b, "read", func() ([]domain.Ticket, error) { return b.next.ListAll(ctx) })
}

// Ping 不走熔断，健康检查要看到真实状态
func (b *breakerRepo) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
