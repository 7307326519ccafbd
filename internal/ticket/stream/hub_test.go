package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ticketboard.com/internal/ticket/streammetrics"
)

func deletedEvent(t *testing.T, id string) Event {
	t.Helper()
	ev, err := NewDeleted(id)
	require.NoError(t, err)
	return ev
}

// drain 非阻塞地取出队列里已有的事件
func drain(s *Subscriber) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSubscriber_OfferAndClose(t *testing.T) {
	s := NewSubscriber(2)
	require.NotEmpty(t, s.ID())

	require.NoError(t, s.Offer(deletedEvent(t, "a")))
	require.NoError(t, s.Offer(deletedEvent(t, "b")))
	assert.ErrorIs(t, s.Offer(deletedEvent(t, "c")), ErrQueueFull)
	assert.Equal(t, 2, s.Pending())

	assert.True(t, s.Close("bye"))
	assert.False(t, s.Close("again"), "第二次 Close 不生效")
	assert.Equal(t, "bye", s.Reason())
	assert.ErrorIs(t, s.Offer(deletedEvent(t, "d")), ErrSubscriberClosed)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done 应该已关闭")
	}
}

func TestSubscriber_DefaultBuffer(t *testing.T) {
	s := NewSubscriber(0)
	assert.Equal(t, DefaultBufferSize, cap(s.queue))
}

func TestHub_PublishFanOutInOrder(t *testing.T) {
	h := NewHub()
	subs := make([]*Subscriber, 5)
	for i := range subs {
		subs[i] = NewSubscriber(16)
		_, err := h.Register(subs[i])
		require.NoError(t, err)
	}
	require.Equal(t, 5, h.Len())

	for i := 0; i < 3; i++ {
		assert.Equal(t, 5, h.Publish(deletedEvent(t, fmt.Sprintf("t-%d", i))))
	}

	for _, s := range subs {
		got := drain(s)
		require.Len(t, got, 3)
		for i, ev := range got {
			assert.JSONEq(t, fmt.Sprintf(`{"id":"t-%d"}`, i), string(ev.Data))
		}
	}
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.Publish(deletedEvent(t, "x")))
}

func TestHub_SlowSubscriberDroppedOthersUnaffected(t *testing.T) {
	h := NewHub()
	slow := NewSubscriber(2)
	fast := NewSubscriber(64)
	_, err := h.Register(slow)
	require.NoError(t, err)
	_, err = h.Register(fast)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			h.Publish(deletedEvent(t, fmt.Sprintf("t-%d", i)))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish 被慢订阅者卡住了")
	}

	assert.True(t, slow.Closed())
	assert.Equal(t, ReasonOverflow, slow.Reason())
	assert.Equal(t, 1, h.Len())
	assert.Len(t, drain(fast), 10)

	// 被踢掉之后已入队的两个还在，但不会再有新的
	assert.Len(t, drain(slow), 2)
	h.Publish(deletedEvent(t, "late"))
	assert.Empty(t, drain(slow))
}

func TestHub_ClosedSubscriberRemovedOnPublish(t *testing.T) {
	h := NewHub()
	s := NewSubscriber(4)
	_, err := h.Register(s)
	require.NoError(t, err)

	s.Close("gone")
	assert.Equal(t, 0, h.Publish(deletedEvent(t, "x")))
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, "gone", s.Reason(), "已关闭的订阅者保留原来的原因")
}

func TestHub_DroppedMetricCountsOnlyHubRemovals(t *testing.T) {
	closedDrops := func() float64 { return testutil.ToFloat64(streammetrics.DroppedTotal.WithLabelValues(ReasonClosed)) }
	overflowDrops := func() float64 { return testutil.ToFloat64(streammetrics.DroppedTotal.WithLabelValues(ReasonOverflow)) }

	h := NewHub()
	detached := NewSubscriber(4)
	full := NewSubscriber(1)
	for _, s := range []*Subscriber{detached, full} {
		_, err := h.Register(s)
		require.NoError(t, err)
	}
	require.NoError(t, full.Offer(deletedEvent(t, "queued")))

	// 连接自己先 Detach 了，还没来得及从注册表摘掉
	detached.Close(ReasonClientClosed)
	beforeClosed, beforeOverflow := closedDrops(), overflowDrops()

	assert.Equal(t, 0, h.Publish(deletedEvent(t, "x")))
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, beforeClosed, closedDrops(), "自己断开的连接不算被踢")
	assert.Equal(t, beforeOverflow+1, overflowDrops())
	assert.Equal(t, ReasonClientClosed, detached.Reason())
	assert.Equal(t, ReasonOverflow, full.Reason())
}

func TestHub_RegisterClosedSubscriber(t *testing.T) {
	h := NewHub()
	s := NewSubscriber(4)
	s.Close("x")

	_, err := h.Register(s)
	assert.ErrorIs(t, err, ErrSubscriberClosed)
	assert.Equal(t, 0, h.Len())
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	h := NewHub()
	s := NewSubscriber(4)
	handle, err := h.Register(s)
	require.NoError(t, err)

	assert.True(t, h.Unregister(handle))
	assert.False(t, h.Unregister(handle))
	assert.False(t, h.Unregister(Handle{}))

	h.Publish(deletedEvent(t, "x"))
	assert.Empty(t, drain(s), "注销之后不再收到事件")
}

func TestHub_Close(t *testing.T) {
	h := NewHub()
	s := NewSubscriber(4)
	_, err := h.Register(s)
	require.NoError(t, err)

	h.Close()
	h.Close()

	assert.True(t, s.Closed())
	assert.Equal(t, ReasonShutdown, s.Reason())
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, h.Publish(deletedEvent(t, "x")))

	_, err = h.Register(NewSubscriber(4))
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_ConcurrentPublishersSameOrderForEveryone(t *testing.T) {
	const publishers, perPublisher = 4, 50
	h := NewHub()
	subs := make([]*Subscriber, 3)
	for i := range subs {
		subs[i] = NewSubscriber(publishers * perPublisher)
		_, err := h.Register(subs[i])
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				h.Publish(deletedEvent(t, fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	first := drain(subs[0])
	require.Len(t, first, publishers*perPublisher)
	for _, s := range subs[1:] {
		assert.Equal(t, first, drain(s), "所有订阅者看到同一个顺序")
	}
}

func TestHub_ConcurrentRegisterAndPublish(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Publish(deletedEvent(t, "x"))
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := NewSubscriber(1)
				handle, err := h.Register(s)
				if err != nil {
					continue
				}
				drain(s)
				h.Unregister(handle)
				s.Close(ReasonClientClosed)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
	assert.Equal(t, 0, h.Len())
}
