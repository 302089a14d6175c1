package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/middleware"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router        *gin.Engine
	events        *MockEventService
	tickets       *MockTicketService
	purchases     *MockPurchaseService
	payments      *MockPaymentService
	users         *MockUserService
	notifications *MockNotificationService
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func setupRouter(checkers map[string]HealthChecker) *testEnv {
	env := &testEnv{
		events:        new(MockEventService),
		tickets:       new(MockTicketService),
		purchases:     new(MockPurchaseService),
		payments:      new(MockPaymentService),
		users:         new(MockUserService),
		notifications: new(MockNotificationService),
	}

	router := gin.New()
	RegisterRoutes(router, &Handlers{
		Health:  NewHealthHandler(checkers),
		Event:   NewEventHandler(env.events),
		Ticket:  NewTicketHandler(env.tickets),
		Payment: NewPaymentHandler(env.payments, env.purchases),
		User:    NewUserHandler(env.users, env.notifications),
	}, &RouteConfig{
		Auth: middleware.Auth(&middleware.AuthConfig{Secret: testSecret}),
	})
	env.router = router
	return env
}

func token(t *testing.T, userID int64, role domain.Role) string {
	t.Helper()
	tok, err := middleware.NewTokenValidator(testSecret, "").Issue(userID, string(role), time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total int `json:"total"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"capacity", domain.ErrCapacityExceeded, http.StatusConflict, "CAPACITY_EXCEEDED"},
		{"refund expired", domain.ErrRefundExpired, http.StatusUnprocessableEntity, "REFUND_EXPIRED"},
		{"refund forbidden", domain.ErrRefundForbidden, http.StatusUnprocessableEntity, "REFUND_FORBIDDEN"},
		{"active purchases", domain.ErrEventHasActivePurchases, http.StatusConflict, "EVENT_HAS_ACTIVE_PURCHASES"},
		{"ticket purchases", domain.ErrTicketHasPurchases, http.StatusConflict, "TICKET_HAS_PURCHASES"},
		{"mixed events", domain.ErrMixedEventPurchase, http.StatusBadRequest, "MIXED_EVENT_PURCHASE"},
		{"sales closed", domain.ErrSalesClosed, http.StatusUnprocessableEntity, "SALES_CLOSED"},
		{"not found", domain.NotFound("event", 7), http.StatusNotFound, "ENTITY_NOT_FOUND"},
		{"forbidden", domain.Forbidden("not yours"), http.StatusForbidden, "FORBIDDEN"},
		{"validation", domain.Validation("bad %s", "input"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"transition", domain.ErrInvalidStatusTransition, http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"wrapped", errors.Join(errors.New("tx"), domain.ErrSalesClosed), http.StatusUnprocessableEntity, "SALES_CLOSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err, "fallback")

			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestRespondError_UnknownErrorIsNotLeaked(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: connection refused on 10.0.0.3"), "Failed to load")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.Equal(t, "Failed to load", env.Error.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestConfirmPurchase(t *testing.T) {
	body := map[string]interface{}{
		"tickets": []map[string]interface{}{{"ticket_id": 3, "count": 2}},
	}

	t.Run("requires a token", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodPost, "/api/payment/confirm", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		env.purchases.AssertNotCalled(t, "ConfirmPurchase", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("buyer comes from the token", func(t *testing.T) {
		env := setupRouter(nil)
		env.purchases.On("ConfirmPurchase", mock.Anything, int64(42), mock.MatchedBy(func(r *dto.ConfirmPurchaseRequest) bool {
			return len(r.Tickets) == 1 && r.Tickets[0].TicketID == 3 && r.Tickets[0].Count == 2
		})).Return(&dto.ConfirmPurchaseResponse{EventID: 9, TotalAmount: 50}, nil)

		w := env.do(http.MethodPost, "/api/payment/confirm", token(t, 42, domain.RoleUser), body)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		var data dto.ConfirmPurchaseResponse
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, int64(9), data.EventID)
		assert.Equal(t, 50.0, data.TotalAmount)
		env.purchases.AssertExpectations(t)
	})

	t.Run("capacity exceeded carries details", func(t *testing.T) {
		env := setupRouter(nil)
		env.purchases.On("ConfirmPurchase", mock.Anything, int64(42), mock.Anything).
			Return(nil, domain.ErrCapacityExceeded.WithDetail("ticketId", int64(3)).WithDetail("available", 1))

		w := env.do(http.MethodPost, "/api/payment/confirm", token(t, 42, domain.RoleUser), body)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decode(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "CAPACITY_EXCEEDED", resp.Error.Code)
		assert.Equal(t, float64(3), resp.Error.Details["ticketId"])
		assert.Equal(t, float64(1), resp.Error.Details["available"])
	})

	t.Run("empty order is rejected before the service", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodPost, "/api/payment/confirm", token(t, 42, domain.RoleUser),
			map[string]interface{}{"tickets": []interface{}{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.purchases.AssertNotCalled(t, "ConfirmPurchase", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReturnTicket(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := setupRouter(nil)
		env.purchases.On("ReturnTicket", mock.Anything, int64(15), int64(42)).
			Return(&dto.ReturnTicketResponse{PurchaseID: 15, EventID: 9, RefundAmount: 25}, nil)

		w := env.do(http.MethodPost, "/api/payment/return/15", token(t, 42, domain.RoleUser), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env.purchases.AssertExpectations(t)
	})

	t.Run("expired window", func(t *testing.T) {
		env := setupRouter(nil)
		env.purchases.On("ReturnTicket", mock.Anything, int64(15), int64(42)).Return(nil, domain.ErrRefundExpired)

		w := env.do(http.MethodPost, "/api/payment/return/15", token(t, 42, domain.RoleUser), nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "REFUND_EXPIRED", decode(t, w).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodPost, "/api/payment/return/abc", token(t, 42, domain.RoleUser), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteEvent(t *testing.T) {
	organizer := service.Actor{UserID: 7, Role: domain.RoleOrganizer}

	t.Run("force flag is passed through", func(t *testing.T) {
		env := setupRouter(nil)
		env.events.On("DeleteEvent", mock.Anything, int64(5), organizer, true).
			Return(&dto.DeleteEventResponse{EventCount: 1}, nil)

		w := env.do(http.MethodDelete, "/api/events/5?force=true", token(t, 7, domain.RoleOrganizer), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env.events.AssertExpectations(t)
	})

	t.Run("active purchases block deletion", func(t *testing.T) {
		env := setupRouter(nil)
		env.events.On("DeleteEvent", mock.Anything, int64(5), organizer, false).
			Return(nil, domain.ErrEventHasActivePurchases.WithDetail("activePurchaseCount", 3))

		w := env.do(http.MethodDelete, "/api/events/5", token(t, 7, domain.RoleOrganizer), nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "EVENT_HAS_ACTIVE_PURCHASES", resp.Error.Code)
		assert.Equal(t, float64(3), resp.Error.Details["activePurchaseCount"])
	})

	t.Run("bad force flag", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodDelete, "/api/events/5?force=maybe", token(t, 7, domain.RoleOrganizer), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("plain users cannot delete", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodDelete, "/api/events/5", token(t, 8, domain.RoleUser), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		env.events.AssertNotCalled(t, "DeleteEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEventRoutes(t *testing.T) {
	t.Run("list is public", func(t *testing.T) {
		env := setupRouter(nil)
		env.events.On("ListActiveEvents", mock.Anything, mock.Anything).
			Return([]*dto.ActiveEventResponse{
				{EventResponse: &dto.EventResponse{ID: 1}},
				{EventResponse: &dto.EventResponse{ID: 2}},
			}, nil)

		w := env.do(http.MethodGet, "/api/events", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 2, resp.Meta.Total)
	})

	t.Run("detail not found", func(t *testing.T) {
		env := setupRouter(nil)
		env.events.On("GetEventDetail", mock.Anything, int64(99)).Return(nil, domain.NotFound("event", 99))

		w := env.do(http.MethodGet, "/api/events/99", "", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("favorites route is not shadowed by the id route", func(t *testing.T) {
		env := setupRouter(nil)
		env.events.On("ListFavorites", mock.Anything, int64(8)).Return([]*dto.EventResponse{}, nil)

		w := env.do(http.MethodGet, "/api/events/favorites", token(t, 8, domain.RoleUser), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env.events.AssertExpectations(t)
		env.events.AssertNotCalled(t, "GetEventDetail", mock.Anything, mock.Anything)
	})

	t.Run("users cannot create events", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodPost, "/api/events", token(t, 8, domain.RoleUser), map[string]interface{}{"title": "x"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("publish conflict", func(t *testing.T) {
		env := setupRouter(nil)
		env.events.On("PublishEvent", mock.Anything, int64(5), service.Actor{UserID: 7, Role: domain.RoleOrganizer}).
			Return(nil, domain.ErrInvalidStatusTransition)

		w := env.do(http.MethodPost, "/api/events/5/publish", token(t, 7, domain.RoleOrganizer), nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestTicketRoutes(t *testing.T) {
	admin := service.Actor{UserID: 1, Role: domain.RoleAdmin}

	t.Run("delete with purchases", func(t *testing.T) {
		env := setupRouter(nil)
		env.tickets.On("DeleteTicket", mock.Anything, int64(4), admin).
			Return(domain.ErrTicketHasPurchases.WithDetail("purchasesCount", 2))

		w := env.do(http.MethodDelete, "/api/tickets/4", token(t, 1, domain.RoleAdmin), nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, float64(2), decode(t, w).Error.Details["purchasesCount"])
	})

	t.Run("refund all", func(t *testing.T) {
		env := setupRouter(nil)
		env.tickets.On("RefundAll", mock.Anything, int64(4), admin).
			Return(&dto.RefundAllResponse{}, nil)

		w := env.do(http.MethodDelete, "/api/tickets/4/purchases", token(t, 1, domain.RoleAdmin), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env.tickets.AssertExpectations(t)
	})
}

func TestUserRoutes(t *testing.T) {
	t.Run("follow uses the caller as follower", func(t *testing.T) {
		env := setupRouter(nil)
		env.users.On("Follow", mock.Anything, int64(7), int64(42)).Return(nil)

		w := env.do(http.MethodPost, "/api/users/creators/7/follow", token(t, 42, domain.RoleUser), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env.users.AssertExpectations(t)
	})

	t.Run("mark all read", func(t *testing.T) {
		env := setupRouter(nil)
		env.notifications.On("MarkAllRead", mock.Anything, int64(42)).Return(int64(3), nil)

		w := env.do(http.MethodPost, "/api/notifications/read", token(t, 42, domain.RoleUser), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var data dto.MarkReadResponse
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
		assert.Equal(t, int64(3), data.Updated)
	})

	t.Run("foreign notification", func(t *testing.T) {
		env := setupRouter(nil)
		env.notifications.On("MarkRead", mock.Anything, int64(11), int64(42)).Return(domain.NotFound("notification", 11))

		w := env.do(http.MethodPost, "/api/notifications/11/read", token(t, 42, domain.RoleUser), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthRoutes(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		env := setupRouter(nil)
		w := env.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ready", func(t *testing.T) {
		env := setupRouter(map[string]HealthChecker{"database": stubChecker{}, "redis": nil})
		w := env.do(http.MethodGet, "/ready", "", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ReadyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "not configured", resp.Components["redis"])
	})

	t.Run("not ready", func(t *testing.T) {
		env := setupRouter(map[string]HealthChecker{"database": stubChecker{err: errors.New("down")}})
		w := env.do(http.MethodGet, "/ready", "", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp ReadyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not ready", resp.Status)
		assert.Equal(t, "unhealthy: down", resp.Components["database"])
	})
}
