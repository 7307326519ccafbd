package model

import (
	"time"

	"ticketboard.com/internal/ticket/domain"
)

type TicketRow struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(64);not null"`
	Title     string    `gorm:"column:title;type:varchar(255);not null"`
	Requester string    `gorm:"column:requester;type:varchar(255);not null"`
	Priority  string    `gorm:"column:priority;type:varchar(16);not null"`
	Status    string    `gorm:"column:status;type:varchar(16);not null;default:Open"`
	CreatedAt time.Time `gorm:"column:created_at;precision:3;autoCreateTime:false;not null;index:idx_tickets_created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;precision:3;autoUpdateTime:false;not null"`
}

func (TicketRow) TableName() string {
	return "tickets"
}

func FromDomain(t domain.Ticket) TicketRow {
	return TicketRow{
		ID:        t.ID,
		Title:     t.Title,
		Requester: t.Requester,
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (r TicketRow) ToDomain() domain.Ticket {
	return domain.Ticket{
		ID:        r.ID,
		Title:     r.Title,
		Requester: r.Requester,
		Priority:  domain.Priority(r.Priority),
		Status:    domain.Status(r.Status),
		CreatedAt: domain.Timestamp(r.CreatedAt),
		UpdatedAt: domain.Timestamp(r.UpdatedAt),
	}
}
