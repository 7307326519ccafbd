package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"ticketboard.com/internal/ticket/service"
	"ticketboard.com/pkg/common"
)

const msgBadBody = "Request body must be valid JSON."

type Tickets struct {
	board *service.Board
}

func NewTickets(b *service.Board) *Tickets {
	return &Tickets{board: b}
}

type setStatusReq struct {
	Status string `json:"status"`
}

// bindJSON 空 body 按 {} 处理，交给业务校验给出具体文案
func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		common.Fail(c, http.StatusBadRequest, msgBadBody)
		return false
	}
	return true
}

// List GET /api/tickets
func (h *Tickets) List(c *gin.Context) {
	tickets, err := h.board.Tickets(c.Request.Context())
	if err != nil {
		common.FailErr(c, err, "Failed to fetch tickets.")
		return
	}
	common.Success(c, gin.H{"tickets": tickets})
}

// Create POST /api/tickets
func (h *Tickets) Create(c *gin.Context) {
	var req service.CreateTicketInput
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.board.Create(c.Request.Context(), req)
	if err != nil {
		common.FailErr(c, err, "Failed to create ticket.")
		return
	}
	common.Created(c, gin.H{"ticket": t})
}

// SetStatus PATCH /api/tickets/:id/status
func (h *Tickets) SetStatus(c *gin.Context) {
	var req setStatusReq
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.board.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		common.FailErr(c, err, "Failed to update ticket.")
		return
	}
	common.Success(c, gin.H{"ticket": t})
}

// Delete DELETE /api/tickets/:id
func (h *Tickets) Delete(c *gin.Context) {
	if err := h.board.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.FailErr(c, err, "Failed to delete ticket.")
		return
	}
	common.Success(c, gin.H{"ok": true})
}
