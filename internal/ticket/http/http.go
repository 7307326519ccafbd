package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"ticketboard.com/internal/ticket/config"
	"ticketboard.com/internal/ticket/http/handler"
	"ticketboard.com/internal/ticket/http/router"
	"ticketboard.com/internal/ticket/service"
	"ticketboard.com/pkg/middleware"
	"ticketboard.com/pkg/ratelimit"
)

type Deps struct {
	ServiceName string
	Board       *service.Board
	Store       handler.Pinger
	Stream      config.Stream
	// Limiter 为 nil 时不限流
	Limiter   *ratelimit.Store
	StaticDir string
	// Metrics 在主路由上挂 /metrics 和请求指标
	Metrics bool
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	if d.Metrics {
		p := ginprom.NewPrometheus("ticketboard")
		// 带 id 的路径按路由模板聚合，避免 label 爆炸
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
			if route := c.FullPath(); route != "" {
				return route
			}
			return "unmatched"
		}
		p.Use(r)
	}
	r.Use(
		otelgin.Middleware(d.ServiceName),
		middleware.ReqId(),
		middleware.AccessLog(),
		cors.Default(),
		middleware.Recover(),
	)

	r.GET("/healthz", handler.Health(d.Store, d.Board.Hub()))

	api := r.Group("/api")
	router.Tickets(api, handler.NewTickets(d.Board), middleware.RateLimit(d.Limiter))
	router.Stream(api, handler.NewStream(d.Board, d.Stream))

	if d.StaticDir != "" {
		// 前端页面；/api 之外的 GET 都落到静态目录
		files := http.FileServer(http.Dir(d.StaticDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
	return r
}

// NewServer 不设 ReadTimeout/WriteTimeout：stream 是长连接，
// ReadTimeout 到期会取消请求 ctx，单次写的超时由 transport 自己设置
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
