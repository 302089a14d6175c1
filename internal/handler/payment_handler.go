package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/response"
)

// PaymentHandler handles payment and purchase HTTP requests
type PaymentHandler struct {
	paymentService  service.PaymentService
	purchaseService service.PurchaseService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService, purchaseService service.PurchaseService) *PaymentHandler {
	return &PaymentHandler{
		paymentService:  paymentService,
		purchaseService: purchaseService,
	}
}

// Create handles POST /payment/create - opens a gateway charge
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Amount must be greater than 0"))
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), actor.UserID, req.Amount)
	if err != nil {
		respondError(c, err, "Failed to create payment")
		return
	}

	c.JSON(http.StatusCreated, response.Success(payment))
}

// Cancel handles POST /payment/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req dto.CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Payment ID is required"))
		return
	}

	payment, err := h.paymentService.CancelPayment(c.Request.Context(), req.PaymentID)
	if err != nil {
		respondError(c, err, "Failed to cancel payment")
		return
	}

	c.JSON(http.StatusOK, response.Success(payment))
}

// Confirm handles POST /payment/confirm - records the paid order. The buyer is the token's user.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmPurchaseRequest
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

	result, err := h.purchaseService.ConfirmPurchase(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		respondError(c, err, "Failed to confirm purchase")
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// Return handles POST /payment/return/:id - refunds one purchase of the caller
func (h *PaymentHandler) Return(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.purchaseService.ReturnTicket(c.Request.Context(), id, actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to return ticket")
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// MyTickets handles GET /users/me/tickets
func (h *PaymentHandler) MyTickets(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	tickets, err := h.purchaseService.ListUserTickets(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to list tickets")
		return
	}

	c.JSON(http.StatusOK, response.List(tickets, len(tickets)))
}
