package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/repo"
	"ticketboard.com/internal/ticket/repo/model"
	"ticketboard.com/pkg/metrics"
)

type ticketsRepo struct {
	db *gorm.DB
}

// NewTicketsRepo gorm 实现，MySQL 和 SQLite 共用
func NewTicketsRepo(db *gorm.DB) repo.TicketRepo {
	return &ticketsRepo{db: db}
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.TicketRow{})
}

func (r *ticketsRepo) Create(ctx context.Context, t domain.Ticket) (out domain.Ticket, err error) {
	defer func(start time.Time) { metrics.ObserveStore("create", start, err) }(time.Now())

	row := model.FromDomain(t)
	if err = r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Ticket{}, err
	}
	return row.ToDomain(), nil
}

func (r *ticketsRepo) UpdateStatus(ctx context.Context, id string, apply func(t *domain.Ticket)) (out domain.Ticket, err error) {
	defer func(start time.Time) { metrics.ObserveStore("update_status", start, err) }(time.Now())

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.TicketRow
		// MySQL 下加行锁；SQLite 会忽略 FOR UPDATE
		q := tx
		if tx.Dialector.Name() == "mysql" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrNotFound
			}
			return err
		}

		t := row.ToDomain()
		apply(&t)

		res := tx.Model(&model.TicketRow{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     string(t.Status),
				"updated_at": t.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		out = t
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return out, nil
}

func (r *ticketsRepo) Delete(ctx context.Context, id string) (ok bool, err error) {
	defer func(start time.Time) { metrics.ObserveStore("delete", start, err) }(time.Now())

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.TicketRow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ticketsRepo) ListAll(ctx context.Context) (out []domain.Ticket, err error) {
	defer func(start time.Time) { metrics.ObserveStore("list_all", start, err) }(time.Now())

	// 单条 SELECT 本身就是一致性读，不会读到一半的变更
	var rows []model.TicketRow
	if err = r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.Map(rows, func(item model.TicketRow, _ int) domain.Ticket {
		return item.ToDomain()
	}), nil
}

func (r *ticketsRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
