package stream

import (
	"net/http"
	"time"

	"ticketboard.com/internal/ticket/streammetrics"
)

// SSETransport 把事件写成 text/event-stream。
// 响应头延迟到第一次 Send（也就是 snapshot）才写，挂载失败时 handler 还能回普通 JSON 错误。
type SSETransport struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	closed       <-chan struct{}
	writeTimeout time.Duration
	started      bool
}

func NewSSETransport(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) *SSETransport {
	return &SSETransport{
		w:            w,
		rc:           http.NewResponseController(w),
		closed:       r.Context().Done(),
		writeTimeout: writeTimeout,
	}
}

func (t *SSETransport) start() {
	h := t.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx 不要缓冲
	t.w.WriteHeader(http.StatusOK)
	t.started = true
}

func (t *SSETransport) Send(ev Event) error {
	if !t.started {
		t.start()
	}
	if t.writeTimeout > 0 {
		// 底层 writer 不支持 deadline 时忽略，退化为依赖 server 的超时
		_ = t.rc.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	start := time.Now()
	n, err := t.w.Write(ev.Frame())
	if err == nil {
		err = t.rc.Flush()
	}
	streammetrics.ObserveWrite(n, time.Since(start), err)
	return err
}

func (t *SSETransport) Closed() <-chan struct{} { return t.closed }

func (t *SSETransport) Started() bool { return t.started }
