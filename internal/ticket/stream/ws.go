package stream

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"ticketboard.com/internal/ticket/streammetrics"
	"ticketboard.com/pkg/logger"
	"ticketboard.com/pkg/safe"
)

// WSTransport WebSocket 版本的 Transport，消息是 {"type":..,"data":..}。
// 客户端发来的消息一律丢弃，读循环只用来感知断开和处理 pong。
type WSTransport struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

type WSOptions struct {
	WriteTimeout time.Duration
	// PongWait 超过这么久没有收到任何帧（含 pong）就认为连接已死；0 表示不设读超时
	PongWait  time.Duration
	ReadLimit int64
}

func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		// 跨域由 cors 中间件和部署层处理
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

// UpgradeWS 完成握手并启动读循环。失败时 Upgrader 已经回了 HTTP 错误。
func UpgradeWS(ctx context.Context, up *websocket.Upgrader, w http.ResponseWriter, r *http.Request, opts WSOptions) (*WSTransport, error) {
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	t := &WSTransport{
		ws:           conn,
		writeTimeout: opts.WriteTimeout,
		pongWait:     opts.PongWait,
		closed:       make(chan struct{}),
	}
	readLimit := opts.ReadLimit
	if readLimit <= 0 {
		readLimit = 1 << 10
	}
	conn.SetReadLimit(readLimit)
	safe.GoCtx(ctx, t.readPump)
	return t, nil
}

func (t *WSTransport) readPump(ctx context.Context) {
	defer t.markClosed()

	if t.pongWait > 0 {
		_ = t.ws.SetReadDeadline(time.Now().Add(t.pongWait))
		t.ws.SetPongHandler(func(string) error {
			return t.ws.SetReadDeadline(time.Now().Add(t.pongWait))
		})
	}
	for {
		if _, _, err := t.ws.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Debug(ctx, "ws read timeout", zap.Error(err))
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug(ctx, "ws read error", zap.Error(err))
			}
			return
		}
		if t.pongWait > 0 {
			_ = t.ws.SetReadDeadline(time.Now().Add(t.pongWait))
		}
	}
}

func (t *WSTransport) markClosed() {
	t.closeOnce.Do(func() { close(t.closed) })
}

// Send 只允许 Session 的循环调用（gorilla 不支持并发写）
func (t *WSTransport) Send(ev Event) error {
	if t.writeTimeout > 0 {
		_ = t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	start := time.Now()
	msg := ev.Envelope()
	err := t.ws.WriteMessage(websocket.TextMessage, msg)
	if err == nil && ev.Type == EventHeartbeat {
		// 心跳顺带发一个控制帧 ping，对端回 pong 刷新读超时
		err = t.ws.WriteMessage(websocket.PingMessage, nil)
	}
	n := 0
	if err == nil {
		n = len(msg)
	}
	streammetrics.ObserveWrite(n, time.Since(start), err)
	return err
}

func (t *WSTransport) Closed() <-chan struct{} { return t.closed }

// Close 发 close 帧后关闭底层连接，读循环随之退出
func (t *WSTransport) Close(reason string) error {
	deadline := time.Now().Add(time.Second)
	_ = t.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
	err := t.ws.Close()
	t.markClosed()
	return err
}
