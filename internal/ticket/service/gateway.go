package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/repo"
	"ticketboard.com/pkg/logger"
	"ticketboard.com/pkg/xerr"
)

const (
	MsgTitleTooShort     = "Title must be at least 3 characters."
	MsgRequesterTooShort = "Requester must be at least 2 characters."
	MsgBadPriority       = "Priority must be Low, Medium, or High."
	MsgBadStatus         = "Status must be Open, In Progress, or Done."
	MsgNotFound          = "Ticket not found."
)

type CreateTicketInput struct {
	Title     string `json:"title" validate:"min=3"`
	Requester string `json:"requester" validate:"min=2"`
	// Priority 缺省（nil）按 Medium；传了空串算非法
	Priority *string `json:"priority" validate:"omitnil,priority"`
}

type setStatusInput struct {
	Status string `validate:"status"`
}

// 字段 -> 文案，按结构体字段顺序取第一个错误
var fieldMessages = map[string]string{
	"Title":     MsgTitleTooShort,
	"Requester": MsgRequesterTooShort,
	"Priority":  MsgBadPriority,
	"Status":    MsgBadStatus,
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParsePriority(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseStatus(fl.Field().String())
		return ok
	})
	return v
}

func validationError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		if msg, ok := fieldMessages[ves[0].StructField()]; ok {
			return xerr.Validation(msg)
		}
	}
	return xerr.Wrap(err, xerr.RequestParamsError, xerr.MapErrMsg(xerr.RequestParamsError))
}

// Gateway 校验并落库，不负责广播（由 Board 在同一把提交锁里发布）
type Gateway struct {
	repo     repo.TicketRepo
	ids      domain.IDGenerator
	now      func() time.Time
	validate *validator.Validate
}

func NewGateway(r repo.TicketRepo, ids domain.IDGenerator, now func() time.Time) *Gateway {
	if ids == nil {
		ids = domain.UUIDv7{}
	}
	if now == nil {
		now = time.Now
	}
	return &Gateway{repo: r, ids: ids, now: now, validate: newValidator()}
}

func (g *Gateway) CreateTicket(ctx context.Context, in CreateTicketInput) (domain.Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Requester = strings.TrimSpace(in.Requester)
	if in.Priority != nil {
		p := strings.TrimSpace(*in.Priority)
		in.Priority = &p
	}
	if err := g.validate.StructCtx(ctx, in); err != nil {
		return domain.Ticket{}, validationError(err)
	}
	priority := domain.PriorityMedium
	if in.Priority != nil {
		priority, _ = domain.ParsePriority(*in.Priority)
	}

	id, err := g.ids.NewID()
	if err != nil {
		logger.Error(ctx, "generate ticket id failed", zap.Error(err))
		return domain.Ticket{}, xerr.Wrap(err, xerr.ServerCommonError, "Failed to create ticket.")
	}
	now := domain.Timestamp(g.now())
	created, err := g.repo.Create(ctx, domain.Ticket{
		ID:        id,
		Title:     in.Title,
		Requester: in.Requester,
		Priority:  priority,
		Status:    domain.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		logger.Error(ctx, "create ticket failed", zap.String("ticket_id", id), zap.Error(err))
		return domain.Ticket{}, xerr.Store(err, "Failed to create ticket.")
	}
	return created, nil
}

// SetStatus 不限制状态流转，同状态也会刷新 updatedAt
func (g *Gateway) SetStatus(ctx context.Context, id string, status string) (domain.Ticket, error) {
	if err := g.validate.StructCtx(ctx, setStatusInput{Status: status}); err != nil {
		return domain.Ticket{}, validationError(err)
	}
	st, _ := domain.ParseStatus(status)

	updated, err := g.repo.UpdateStatus(ctx, id, func(t *domain.Ticket) {
		t.Status = st
		t.Touch(g.now())
	})
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Ticket{}, xerr.NotFound(MsgNotFound)
	}
	if err != nil {
		logger.Error(ctx, "update ticket status failed", zap.String("ticket_id", id), zap.Error(err))
		return domain.Ticket{}, xerr.Store(err, "Failed to update ticket.")
	}
	return updated, nil
}

// DeleteTicket 返回是否真的删掉了；不存在时 (false, nil)，由边界层转成 404
func (g *Gateway) DeleteTicket(ctx context.Context, id string) (bool, error) {
	ok, err := g.repo.Delete(ctx, id)
	if err != nil {
		logger.Error(ctx, "delete ticket failed", zap.String("ticket_id", id), zap.Error(err))
		return false, xerr.Store(err, "Failed to delete ticket.")
	}
	return ok, nil
}
