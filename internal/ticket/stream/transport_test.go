package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSETransport_Send(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	tr := NewSSETransport(rec, req, time.Second)
	assert.False(t, tr.Started())

	require.NoError(t, tr.Send(deletedEvent(t, "t-1")))
	require.NoError(t, tr.Send(NewHeartbeat(time.UnixMilli(5))))

	assert.True(t, tr.Started())
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t,
		"event: deleted\ndata: {\"id\":\"t-1\"}\n\nevent: ping\ndata: {\"t\":5}\n\n",
		rec.Body.String())

	select {
	case <-tr.Closed():
		t.Fatal("should not be closed yet")
	default:
	}
	cancel()
	select {
	case <-tr.Closed():
	case <-time.After(time.Second):
		t.Fatal("Closed should follow the request context")
	}
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestWSTransport_SessionEndToEnd(t *testing.T) {
	hub := NewHub()
	up := NewUpgrader()
	sessions := make(chan *Session, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := UpgradeWS(r.Context(), &up, w, r, WSOptions{WriteTimeout: time.Second, PongWait: time.Minute})
		if err != nil {
			return
		}
		s := NewSession(hub, staticSource(sampleTicket("t-1")), tr, SessionConfig{Heartbeat: time.Hour})
		sessions <- s
		_ = s.Run(context.Background())
		_ = tr.Close(s.Reason())
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer c.Close()

	read := func() wsEnvelope {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, b, err := c.ReadMessage()
		require.NoError(t, err)
		var env wsEnvelope
		require.NoError(t, json.Unmarshal(b, &env))
		return env
	}

	snap := read()
	assert.Equal(t, "snapshot", snap.Type)
	assert.Contains(t, string(snap.Data), `"t-1"`)

	s := <-sessions
	waitStreaming(t, s)
	hub.Publish(deletedEvent(t, "t-1"))

	del := read()
	assert.Equal(t, "deleted", del.Type)
	assert.JSONEq(t, `{"id":"t-1"}`, string(del.Data))

	require.NoError(t, c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	require.Eventually(t, func() bool { return s.State() == StateDetached }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, ReasonClientClosed, s.Reason())
	assert.Equal(t, 0, hub.Len())
}
