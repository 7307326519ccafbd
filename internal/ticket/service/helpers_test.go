package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/repo"
	"ticketboard.com/internal/ticket/repo/mysql"
	"ticketboard.com/internal/ticket/stream"
	"ticketboard.com/pkg/orm"
)

// stepClock 每次调用前进 1 秒，保证 createdAt 各不相同
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// countingRepo 统计 ListAll 次数
type countingRepo struct {
	repo.TicketRepo
	lists atomic.Int32
}

func (r *countingRepo) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	r.lists.Add(1)
	return r.TicketRepo.ListAll(ctx)
}

type fixture struct {
	repo  *countingRepo
	hub   *stream.Hub
	board *Board
	snaps *SnapshotProvider
}

func newSQLiteRepo(t *testing.T) repo.TicketRepo {
	t.Helper()
	db, err := orm.Open(context.Background(), orm.Config{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orm.Close(db) })
	require.NoError(t, mysql.Migrate(db))
	return mysql.NewTicketsRepo(db)
}

func newFixture(t *testing.T, cache SnapshotCache) *fixture {
	t.Helper()
	r := &countingRepo{TicketRepo: newSQLiteRepo(t)}
	hub := stream.NewHub()
	t.Cleanup(hub.Close)
	snaps := NewSnapshotProvider(r, cache, time.Minute)
	gw := NewGateway(r, domain.UUIDv7{}, newStepClock().Now)
	return &fixture{repo: r, hub: hub, board: NewBoard(gw, snaps, hub), snaps: snaps}
}

// listen 直接在 hub 上挂一个订阅者，收集 Board 发布的事件
func (f *fixture) listen(t *testing.T) *stream.Subscriber {
	t.Helper()
	s := stream.NewSubscriber(256)
	_, err := f.hub.Register(s)
	require.NoError(t, err)
	return s
}

func drainEvents(s *stream.Subscriber) []stream.Event {
	var out []stream.Event
	for {
		select {
		case ev := <-s.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func validInput() CreateTicketInput {
	return CreateTicketInput{Title: "Fix login bug", Requester: "Alice", Priority: lo.ToPtr("High")}
}

// recorder 一个记录所有事件的 stream.Transport
type recorder struct {
	mu     sync.Mutex
	events []stream.Event
	got    chan struct{}
	closed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (r *recorder) Send(ev stream.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.got <- struct{}{}:
	default:
	}
	return nil
}

func (r *recorder) Closed() <-chan struct{} { return r.closed }

func (r *recorder) snapshot() []stream.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stream.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newHubForTest(t *testing.T) *stream.Hub {
	t.Helper()
	hub := stream.NewHub()
	t.Cleanup(hub.Close)
	return hub
}

func listenOn(t *testing.T, hub *stream.Hub) *stream.Subscriber {
	t.Helper()
	s := stream.NewSubscriber(256)
	_, err := hub.Register(s)
	require.NoError(t, err)
	return s
}
