package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/middleware"
	"github.com/nickruden/diplom-server/pkg/response"
)

var statusByCode = map[domain.ErrorCode]int{
	domain.CodeCapacityExceeded:        http.StatusConflict,
	domain.CodeRefundExpired:           http.StatusUnprocessableEntity,
	domain.CodeRefundForbidden:         http.StatusUnprocessableEntity,
	domain.CodeEventHasActivePurchases: http.StatusConflict,
	domain.CodeTicketHasPurchases:      http.StatusConflict,
	domain.CodeMixedEventPurchase:      http.StatusBadRequest,
	domain.CodeSalesClosed:             http.StatusUnprocessableEntity,
	domain.CodeEntityNotFound:          http.StatusNotFound,
	domain.CodeForbidden:               http.StatusForbidden,
	domain.CodeValidationFailed:        http.StatusBadRequest,
	domain.CodeInvalidStatusTransition: http.StatusConflict,
}

// respondError writes err as the JSON envelope. Errors without a domain code become a
// generic 500 and are logged, never echoed.
func respondError(c *gin.Context, err error, fallback string) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		if status, ok := statusByCode[derr.Code]; ok {
			c.JSON(status, response.ErrorWithDetails(string(derr.Code), derr.Message, derr.Details))
			return
		}
	}

	logger.Get().Error(fmt.Sprintf("%s %s: %v", c.Request.Method, c.FullPath(), err))
	c.JSON(http.StatusInternalServerError, response.InternalError(fallback))
}

// actorFrom returns the authenticated caller, answering 401 when there is none
func actorFrom(c *gin.Context) (service.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User not authenticated"))
		return service.Actor{}, false
	}
	role, _ := middleware.GetRole(c)
	return service.Actor{UserID: userID, Role: domain.Role(role)}, true
}

// idParam parses a positive numeric path parameter, answering 400 otherwise
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest(fmt.Sprintf("Invalid %s", name)))
		return 0, false
	}
	return id, true
}
