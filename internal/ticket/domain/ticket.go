package domain

import (
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
)

// TimeLayout 对外的时间格式：UTC，固定 3 位毫秒
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Ticket 工单。ID 创建后不可变；状态之间可以任意切换，不做状态机校验。
type Ticket struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Requester string    `json:"requester"`
	Priority  Priority  `json:"priority"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON 时间按 TimeLayout 输出，整秒也带 .000；读回用 time.Time 默认的 RFC3339 解析
func (t Ticket) MarshalJSON() ([]byte, error) {
	type plain Ticket
	return json.Marshal(struct {
		plain
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	}{
		plain:     plain(t),
		CreatedAt: t.CreatedAt.UTC().Format(TimeLayout),
		UpdatedAt: t.UpdatedAt.UTC().Format(TimeLayout),
	})
}

// ParsePriority 只认三个取值；缺省 Medium 由调用方在字段缺失时处理
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.TrimSpace(s)); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	default:
		return "", false
	}
}

// ParseStatus 接受 "In Progress"，也兼容 "InProgress"
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusOpen, StatusInProgress, StatusDone:
		return st, true
	case "InProgress":
		return StatusInProgress, true
	default:
		return "", false
	}
}

// Touch 设置 UpdatedAt，保证严格晚于上一次（时钟精度不够时往后推 1ms）
func (t *Ticket) Touch(now time.Time) {
	now = Timestamp(now)
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Millisecond)
	}
	t.UpdatedAt = now
}

// Timestamp 统一到 UTC 毫秒，和存储精度一致，读回来的值才能和内存里的相等
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
