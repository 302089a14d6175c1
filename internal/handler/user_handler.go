package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/response"
)

// UserHandler handles follows and in-app notifications
type UserHandler struct {
	userService         service.UserService
	notificationService service.NotificationService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, notificationService service.NotificationService) *UserHandler {
	return &UserHandler{
		userService:         userService,
		notificationService: notificationService,
	}
}

// Follow handles POST /users/creators/:id/follow
func (h *UserHandler) Follow(c *gin.Context) {
	organizerID, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.userService.Follow(c.Request.Context(), organizerID, actor.UserID); err != nil {
		respondError(c, err, "Failed to follow organizer")
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]int64{"organizer_id": organizerID}))
}

// Unfollow handles DELETE /users/creators/:id/follow
func (h *UserHandler) Unfollow(c *gin.Context) {
	organizerID, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.userService.Unfollow(c.Request.Context(), organizerID, actor.UserID); err != nil {
		respondError(c, err, "Failed to unfollow organizer")
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]int64{"organizer_id": organizerID}))
}

// Following handles GET /users/creators/following
func (h *UserHandler) Following(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	ids, err := h.userService.ListFollowing(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to list followed organizers")
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.FollowingResponse{OrganizerIDs: ids}))
}

// Notifications handles GET /notifications - newest first
func (h *UserHandler) Notifications(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	items, err := h.notificationService.ListNotifications(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to list notifications")
		return
	}

	out := dto.NewNotificationResponses(items)
	c.JSON(http.StatusOK, response.List(out, len(out)))
}

// MarkAllRead handles POST /notifications/read
func (h *UserHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	n, err := h.notificationService.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to update notifications")
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.MarkReadResponse{Updated: n}))
}

// MarkRead handles POST /notifications/:id/read
func (h *UserHandler) MarkRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), id, actor.UserID); err != nil {
		respondError(c, err, "Failed to update notification")
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.MarkReadResponse{Updated: 1}))
}
