package router

import (
	"github.com/gin-gonic/gin"
	"ticketboard.com/internal/ticket/http/handler"
)

// Tickets 变更接口挂 limit，读接口不限流
func Tickets(api *gin.RouterGroup, h *handler.Tickets, limit gin.HandlerFunc) {
	tickets := api.Group("/tickets")
	{
		tickets.GET("", h.List)
		tickets.POST("", limit, h.Create)
		tickets.PATCH("/:id/status", limit, h.SetStatus)
		tickets.DELETE("/:id", limit, h.Delete)
	}
}

func Stream(api *gin.RouterGroup, h *handler.Stream) {
	api.GET("/stream", h.SSE)
	api.GET("/ws", h.WS)
}
