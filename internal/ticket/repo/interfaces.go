package repo

import (
	"context"
	"errors"

	"ticketboard.com/internal/ticket/domain"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("ticket not found")

// TicketRepo 工单存储。所有方法返回的都是写入/读出后的权威数据。
type TicketRepo interface {
	Create(ctx context.Context, t domain.Ticket) (domain.Ticket, error)
	// UpdateStatus 在事务里读出记录、调用 apply 修改、写回；不存在返回 ErrNotFound
	UpdateStatus(ctx context.Context, id string, apply func(t *domain.Ticket)) (domain.Ticket, error)
	// Delete 返回是否真的删掉了一行
	Delete(ctx context.Context, id string) (bool, error)
	// ListAll 单条查询，按 created_at 倒序（同一时间按 id 倒序）
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	Ping(ctx context.Context) error
}
