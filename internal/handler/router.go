package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/pkg/middleware"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Health  *HealthHandler
	Event   *EventHandler
	Ticket  *TicketHandler
	Payment *PaymentHandler
	User    *UserHandler
}

// RouteConfig carries the middlewares the routes are guarded with
type RouteConfig struct {
	// Auth resolves the caller from the bearer token
	Auth gin.HandlerFunc
	// Idempotency deduplicates purchase confirmations and refunds; optional
	Idempotency gin.HandlerFunc
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, h *Handlers, cfg *RouteConfig) {
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)

	organizerOnly := middleware.RequireRole(string(domain.RoleOrganizer), string(domain.RoleAdmin))

	api := router.Group("/api")
	{
		// Events: public reads, authenticated writes
		events := api.Group("/events")
		{
			events.GET("", h.Event.ListActive)
			events.GET("/creator/:id", h.Event.ListByCreator)
			events.GET("/:id", h.Event.Get)

			authed := events.Group("", cfg.Auth)
			{
				authed.GET("/favorites", h.Event.ListFavorites)
				authed.POST("/:id/favorite", h.Event.AddFavorite)
				authed.DELETE("/:id/favorite", h.Event.RemoveFavorite)
			}

			managed := events.Group("", cfg.Auth, organizerOnly)
			{
				managed.POST("", h.Event.Create)
				managed.PATCH("/:id", h.Event.Update)
				managed.POST("/:id/publish", h.Event.Publish)
				managed.DELETE("/:id", h.Event.Delete)
				managed.DELETE("/images/:publicId", h.Event.DeleteImage)
				managed.GET("/:id/purchases", h.Event.ListPurchases)
			}
		}

		tickets := api.Group("/tickets")
		{
			tickets.GET("/event/:eventId", h.Ticket.ListByEvent)

			managed := tickets.Group("", cfg.Auth, organizerOnly)
			{
				managed.POST("/event/:eventId", h.Ticket.Create)
				managed.PATCH("/:id", h.Ticket.Update)
				managed.DELETE("/:id", h.Ticket.Delete)
				managed.DELETE("/:id/purchases", h.Ticket.RefundAll)
			}
		}

		payment := api.Group("/payment", cfg.Auth)
		{
			payment.POST("/create", h.Payment.Create)
			payment.POST("/cancel", h.Payment.Cancel)

			guarded := payment.Group("", optional(cfg.Idempotency)...)
			{
				guarded.POST("/confirm", h.Payment.Confirm)
				guarded.POST("/return/:id", h.Payment.Return)
			}
		}

		users := api.Group("/users", cfg.Auth)
		{
			users.GET("/me/tickets", h.Payment.MyTickets)
			users.GET("/creators/following", h.User.Following)
			users.POST("/creators/:id/follow", h.User.Follow)
			users.DELETE("/creators/:id/follow", h.User.Unfollow)
		}

		notifications := api.Group("/notifications", cfg.Auth)
		{
			notifications.GET("", h.User.Notifications)
			notifications.POST("/read", h.User.MarkAllRead)
			notifications.POST("/:id/read", h.User.MarkRead)
		}
	}
}

func optional(mw gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return nil
	}
	return []gin.HandlerFunc{mw}
}
