package mysql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/internal/ticket/repo"
)

func newTestRepo(t *testing.T) repo.TicketRepo {
	t.Helper()
	// 使用 SQLite 内存数据库进行测试
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return NewTicketsRepo(db)
}

func sample(id string, at time.Time) domain.Ticket {
	at = domain.Timestamp(at)
	return domain.Ticket{
		ID:        id,
		Title:     "Fix login bug " + id,
		Requester: "Alice",
		Priority:  domain.PriorityHigh,
		Status:    domain.StatusOpen,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestTicketsRepo_CreateAndList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 123_000_000, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := r.Create(ctx, sample(fmt.Sprintf("t-%d", i), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	list, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// 最新的在前
	assert.Equal(t, []string{"t-2", "t-1", "t-0"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, sample("t-2", base.Add(2*time.Second)), list[0], "读回来的数据要和写入的一致，包括毫秒")
}

func TestTicketsRepo_ListTieBreakByID(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	at := time.Now()

	for _, id := range []string{"a", "c", "b"} {
		_, err := r.Create(ctx, sample(id, at))
		require.NoError(t, err)
	}
	list, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestTicketsRepo_CreateDuplicateID(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, sample("dup", time.Now()))
	require.NoError(t, err)
	_, err = r.Create(ctx, sample("dup", time.Now()))
	assert.Error(t, err)
}

func TestTicketsRepo_UpdateStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := domain.Timestamp(time.Now().Add(-time.Minute))

	_, err := r.Create(ctx, sample("t-1", created))
	require.NoError(t, err)

	updated, err := r.UpdateStatus(ctx, "t-1", func(tk *domain.Ticket) {
		tk.Status = domain.StatusDone
		tk.Touch(time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, created, updated.CreatedAt)

	list, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, list[0])
}

func TestTicketsRepo_UpdateStatusNotFound(t *testing.T) {
	r := newTestRepo(t)
	called := false
	_, err := r.UpdateStatus(context.Background(), "missing", func(*domain.Ticket) { called = true })
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.False(t, called)
}

func TestTicketsRepo_Delete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	_, err := r.Create(ctx, sample("t-1", time.Now()))
	require.NoError(t, err)

	ok, err := r.Delete(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Delete(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := r.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, r.Ping(ctx))
}
