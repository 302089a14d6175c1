package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/response"
)

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	eventService service.EventService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{
		eventService: eventService,
	}
}

// ListActive handles GET /events - published events that can still be attended
func (h *EventHandler) ListActive(c *gin.Context) {
	var filter dto.ActiveEventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid query parameters"))
		return
	}

	events, err := h.eventService.ListActiveEvents(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, response.List(events, len(events)))
}

// Get handles GET /events/:id - event page with inventory figures
func (h *EventHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	event, err := h.eventService.GetEventDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get event")
		return
	}

	c.JSON(http.StatusOK, response.Success(event))
}

// ListByCreator handles GET /events/creator/:id - an organizer's events with sales figures
func (h *EventHandler) ListByCreator(c *gin.Context) {
	creatorID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var filter dto.CreatorEventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Filter must be upcoming or past"))
		return
	}

	events, err := h.eventService.ListCreatorEvents(c.Request.Context(), creatorID, &filter)
	if err != nil {
		respondError(c, err, "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, response.List(events, len(events)))
}

// Create handles POST /events - creates a new event (Organizer only)
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	req.OrganizerID = actor.UserID

	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.BadRequest(msg))
		return
	}

	created, err := h.eventService.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create event")
		return
	}

	c.JSON(http.StatusCreated, response.Success(created))
}

// Update handles PATCH /events/:id - partial update by the owner
func (h *EventHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
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

	event, err := h.eventService.UpdateEvent(c.Request.Context(), id, actor, &req)
	if err != nil {
		respondError(c, err, "Failed to update event")
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.NewEventResponse(event, nil)))
}

// Publish handles POST /events/:id/publish - publishes a draft event
func (h *EventHandler) Publish(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	event, err := h.eventService.PublishEvent(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err, "Failed to publish event")
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.NewEventResponse(event, nil)))
}

// Delete handles DELETE /events/:id - force=true purges an event that still has active purchases
func (h *EventHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.BadRequest("Invalid force flag"))
			return
		}
		force = parsed
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	result, err := h.eventService.DeleteEvent(c.Request.Context(), id, actor, force)
	if err != nil {
		respondError(c, err, "Failed to delete event")
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// DeleteImage handles DELETE /events/images/:publicId
func (h *EventHandler) DeleteImage(c *gin.Context) {
	publicID := c.Param("publicId")
	if publicID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Public ID is required"))
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.eventService.DeleteImage(c.Request.Context(), publicID, actor); err != nil {
		respondError(c, err, "Failed to delete image")
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]string{"message": "Image deleted successfully"}))
}

// AddFavorite handles POST /events/:id/favorite
func (h *EventHandler) AddFavorite(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.eventService.AddFavorite(c.Request.Context(), actor.UserID, id); err != nil {
		respondError(c, err, "Failed to add favorite")
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]int64{"event_id": id}))
}

// RemoveFavorite handles DELETE /events/:id/favorite
func (h *EventHandler) RemoveFavorite(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := h.eventService.RemoveFavorite(c.Request.Context(), actor.UserID, id); err != nil {
		respondError(c, err, "Failed to remove favorite")
		return
	}

	c.JSON(http.StatusOK, response.Success(map[string]int64{"event_id": id}))
}

// ListFavorites handles GET /events/favorites
func (h *EventHandler) ListFavorites(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	events, err := h.eventService.ListFavorites(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to list favorites")
		return
	}

	c.JSON(http.StatusOK, response.List(events, len(events)))
}

// ListPurchases handles GET /events/:id/purchases - the event's purchases for its organizer
func (h *EventHandler) ListPurchases(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	purchases, err := h.eventService.ListEventPurchases(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err, "Failed to list purchases")
		return
	}

	out := dto.NewPurchaseResponses(purchases)
	c.JSON(http.StatusOK, response.List(out, len(out)))
}
