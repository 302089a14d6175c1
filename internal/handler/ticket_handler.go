package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/response"
)

// TicketHandler handles ticket tier HTTP requests
type TicketHandler struct {
	ticketService service.TicketService
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// ListByEvent handles GET /tickets/event/:eventId
func (h *TicketHandler) ListByEvent(c *gin.Context) {
	eventID, ok := idParam(c, "eventId")
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err, "Failed to list tickets")
		return
	}

	c.JSON(http.StatusOK, response.Success(tickets))
}

// Create handles POST /tickets/event/:eventId
func (h *TicketHandler) Create(c *gin.Context) {
	eventID, ok := idParam(c, "eventId")
	if !ok {
		return
	}

	var req dto.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	ticket, err := h.ticketService.CreateTicket(c.Request.Context(), eventID, actor, &req)
	if err != nil {
		respondError(c, err, "Failed to create ticket")
		return
	}

	c.JSON(http.StatusCreated, response.Success(dto.NewTicketSalesResponse(ticket, 0)))
}

// Update handles PATCH /tickets/:id
func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	ticket, err := h.ticketService.UpdateTicket(c.Request.Context(), id, actor, &req)
	if err != nil {
		respondError(c, err, "Failed to update ticket")
		return
	}

	c.JSON(http.StatusOK, response.Success(ticket))
}

// Delete handles DELETE /tickets/:id
func (h *TicketHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.ticketService.DeleteTicket(c.Request.Context(), id, actor); err != nil {
		respondError(c, err, "Failed to delete ticket")
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]string{"message": "Ticket deleted successfully"}))
}

// RefundAll handles DELETE /tickets/:id/purchases - refunds every purchase of the tier
func (h *TicketHandler) RefundAll(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.ticketService.RefundAll(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err, "Failed to refund purchases")
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}
