package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/dto"
	"github.com/nickruden/diplom-server/internal/gateway"
	"github.com/nickruden/diplom-server/internal/service"
)

// MockEventService is a mock implementation of service.EventService
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ListActiveEvents(ctx context.Context, filter *dto.ActiveEventFilter) ([]*dto.ActiveEventResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dto.ActiveEventResponse), args.Error(1)
}

func (m *MockEventService) GetEventDetail(ctx context.Context, eventID int64) (*dto.EventDetailResponse, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.EventDetailResponse), args.Error(1)
}

func (m *MockEventService) ListCreatorEvents(ctx context.Context, creatorID int64, filter *dto.CreatorEventFilter) ([]*dto.CreatorEventResponse, error) {
	args := m.Called(ctx, creatorID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dto.CreatorEventResponse), args.Error(1)
}

func (m *MockEventService) CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.CreateEventResponse), args.Error(1)
}

func (m *MockEventService) UpdateEvent(ctx context.Context, eventID int64, actor service.Actor, req *dto.UpdateEventRequest) (*domain.Event, error) {
	args := m.Called(ctx, eventID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *MockEventService) PublishEvent(ctx context.Context, eventID int64, actor service.Actor) (*domain.Event, error) {
	args := m.Called(ctx, eventID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, eventID int64, actor service.Actor, force bool) (*dto.DeleteEventResponse, error) {
	args := m.Called(ctx, eventID, actor, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.DeleteEventResponse), args.Error(1)
}

func (m *MockEventService) DeleteImage(ctx context.Context, publicID string, actor service.Actor) error {
	return m.Called(ctx, publicID, actor).Error(0)
}

func (m *MockEventService) AddFavorite(ctx context.Context, userID, eventID int64) error {
	return m.Called(ctx, userID, eventID).Error(0)
}

func (m *MockEventService) RemoveFavorite(ctx context.Context, userID, eventID int64) error {
	return m.Called(ctx, userID, eventID).Error(0)
}

func (m *MockEventService) ListFavorites(ctx context.Context, userID int64) ([]*dto.EventResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dto.EventResponse), args.Error(1)
}

func (m *MockEventService) ListEventPurchases(ctx context.Context, eventID int64, actor service.Actor) ([]*domain.Purchase, error) {
	args := m.Called(ctx, eventID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Purchase), args.Error(1)
}

// MockTicketService is a mock implementation of service.TicketService
type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) ListByEvent(ctx context.Context, eventID int64) (*dto.EventTicketsResponse, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.EventTicketsResponse), args.Error(1)
}

func (m *MockTicketService) CreateTicket(ctx context.Context, eventID int64, actor service.Actor, req *dto.CreateTicketRequest) (*domain.Ticket, error) {
	args := m.Called(ctx, eventID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) UpdateTicket(ctx context.Context, ticketID int64, actor service.Actor, req *dto.UpdateTicketRequest) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) DeleteTicket(ctx context.Context, ticketID int64, actor service.Actor) error {
	return m.Called(ctx, ticketID, actor).Error(0)
}

func (m *MockTicketService) RefundAll(ctx context.Context, ticketID int64, actor service.Actor) (*dto.RefundAllResponse, error) {
	args := m.Called(ctx, ticketID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.RefundAllResponse), args.Error(1)
}

// MockPurchaseService is a mock implementation of service.PurchaseService
type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) ConfirmPurchase(ctx context.Context, buyerID int64, req *dto.ConfirmPurchaseRequest) (*dto.ConfirmPurchaseResponse, error) {
	args := m.Called(ctx, buyerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ConfirmPurchaseResponse), args.Error(1)
}

func (m *MockPurchaseService) ReturnTicket(ctx context.Context, purchaseID, buyerID int64) (*dto.ReturnTicketResponse, error) {
	args := m.Called(ctx, purchaseID, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReturnTicketResponse), args.Error(1)
}

func (m *MockPurchaseService) ListUserTickets(ctx context.Context, userID int64) ([]*dto.UserTicketResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dto.UserTicketResponse), args.Error(1)
}

// MockPaymentService is a mock implementation of service.PaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreatePayment(ctx context.Context, userID int64, amount float64) (*gateway.Payment, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Payment), args.Error(1)
}

func (m *MockPaymentService) CancelPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Payment), args.Error(1)
}

// MockUserService is a mock implementation of service.UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Follow(ctx context.Context, organizerID, followerID int64) error {
	return m.Called(ctx, organizerID, followerID).Error(0)
}

func (m *MockUserService) Unfollow(ctx context.Context, organizerID, followerID int64) error {
	return m.Called(ctx, organizerID, followerID).Error(0)
}

func (m *MockUserService) ListFollowing(ctx context.Context, followerID int64) ([]int64, error) {
	args := m.Called(ctx, followerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

// MockNotificationService is a mock implementation of service.NotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Deliver(ctx context.Context, notice *domain.Notice) (int, error) {
	args := m.Called(ctx, notice)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) ListNotifications(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	return m.Called(ctx, notificationID, userID).Error(0)
}
