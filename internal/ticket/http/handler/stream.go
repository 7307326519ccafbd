package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"ticketboard.com/internal/ticket/config"
	"ticketboard.com/internal/ticket/service"
	"ticketboard.com/internal/ticket/stream"
	"ticketboard.com/pkg/common"
	"ticketboard.com/pkg/logger"
)

type Stream struct {
	board    *service.Board
	cfg      config.Stream
	upgrader websocket.Upgrader
}

func NewStream(b *service.Board, cfg config.Stream) *Stream {
	return &Stream{board: b, cfg: cfg, upgrader: stream.NewUpgrader()}
}

func (h *Stream) sessionConfig() stream.SessionConfig {
	return stream.SessionConfig{
		BufferSize: h.cfg.BufferSize,
		Heartbeat:  h.cfg.Heartbeat(),
	}
}

// SSE GET /api/stream
func (h *Stream) SSE(c *gin.Context) {
	tr := stream.NewSSETransport(c.Writer, c.Request, h.cfg.WriteTimeout())
	s := h.board.NewSession(tr, h.sessionConfig())

	// 客户端断开由 transport.Closed 感知；进程退出由 hub.Close 感知。
	// 这里去掉 cancel 只保留 request id / trace 这些值，detach 原因才准确。
	err := s.Run(context.WithoutCancel(c.Request.Context()))
	if err == nil {
		return
	}
	if tr.Started() {
		logger.Debug(c.Request.Context(), "stream ended with error",
			zap.String("subscriber_id", s.ID()), zap.Error(err))
		return
	}
	attachFailed(c, err)
}

// WS GET /api/ws，事件和 SSE 相同，消息体是 {"type","data"}
func (h *Stream) WS(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	heartbeat := h.cfg.Heartbeat()
	if heartbeat <= 0 {
		heartbeat = stream.DefaultHeartbeat
	}
	tr, err := stream.UpgradeWS(ctx, &h.upgrader, c.Writer, c.Request, stream.WSOptions{
		WriteTimeout: h.cfg.WriteTimeout(),
		PongWait:     2*heartbeat + 10*time.Second,
	})
	if err != nil {
		// Upgrader 已经回了错误响应
		logger.Debug(ctx, "ws upgrade failed", zap.Error(err))
		return
	}
	s := h.board.NewSession(tr, h.sessionConfig())
	if err := s.Run(ctx); err != nil {
		logger.Debug(ctx, "ws stream ended with error", zap.String("subscriber_id", s.ID()), zap.Error(err))
	}
	_ = tr.Close(s.Reason())
}

func attachFailed(c *gin.Context, err error) {
	if errors.Is(err, stream.ErrHubClosed) {
		common.Fail(c, http.StatusServiceUnavailable, "Server is shutting down.")
		return
	}
	common.FailErr(c, err, "Failed to fetch tickets.")
}
