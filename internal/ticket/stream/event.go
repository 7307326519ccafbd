package stream

import (
	"bytes"
	"time"

	"github.com/segmentio/encoding/json"
	"ticketboard.com/internal/ticket/domain"
)

type EventType string

// 事件名和前端 EventSource 监听的名字一致
const (
	EventSnapshot  EventType = "snapshot"
	EventCreated   EventType = "created"
	EventUpdated   EventType = "updated"
	EventDeleted   EventType = "deleted"
	EventHeartbeat EventType = "ping"
)

// Event 构造后不可变。Data 是编码好的 JSON，所有订阅者共享同一份，不要修改。
type Event struct {
	Type EventType
	Data []byte
}

type snapshotPayload struct {
	Tickets []domain.Ticket `json:"tickets"`
}

type ticketPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

type deletedPayload struct {
	ID string `json:"id"`
}

type heartbeatPayload struct {
	T int64 `json:"t"`
}

func newEvent(typ EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Data: data}, nil
}

func NewSnapshot(tickets []domain.Ticket) (Event, error) {
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return newEvent(EventSnapshot, snapshotPayload{Tickets: tickets})
}

func NewCreated(t domain.Ticket) (Event, error) {
	return newEvent(EventCreated, ticketPayload{Ticket: t})
}

func NewUpdated(t domain.Ticket) (Event, error) {
	return newEvent(EventUpdated, ticketPayload{Ticket: t})
}

func NewDeleted(id string) (Event, error) {
	return newEvent(EventDeleted, deletedPayload{ID: id})
}

func NewHeartbeat(at time.Time) Event {
	// 只有一个 int64 字段，不会失败
	ev, _ := newEvent(EventHeartbeat, heartbeatPayload{T: at.UnixMilli()})
	return ev
}

// Frame SSE 帧：event: <type>\ndata: <json>\n\n
// json.Marshal 输出不含换行，一行 data 就够
func (e Event) Frame() []byte {
	var b bytes.Buffer
	b.Grow(len(e.Data) + len(e.Type) + 16)
	b.WriteString("event: ")
	b.WriteString(string(e.Type))
	b.WriteString("\ndata: ")
	b.Write(e.Data)
	b.WriteString("\n\n")
	return b.Bytes()
}

// Envelope WebSocket 下的消息格式 {"type": "...", "data": {...}}
func (e Event) Envelope() []byte {
	var b bytes.Buffer
	b.Grow(len(e.Data) + len(e.Type) + 24)
	b.WriteString(`{"type":"`)
	b.WriteString(string(e.Type))
	b.WriteString(`","data":`)
	b.Write(e.Data)
	b.WriteString("}")
	return b.Bytes()
}

// Decode 把 Data 解到 v 里，测试和客户端用
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
