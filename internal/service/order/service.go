package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/cache"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/config"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/identity"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/messaging"
	repo "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/repository/order"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/JoyelAlbert/ManoMercy-Supermarket/service/order")

// Store is the persistence surface the lifecycle service drives. The
// bun repository satisfies it; tests substitute an in-memory fake.
type Store interface {
	NextOrderNumber(ctx context.Context) (string, error)
	FindDraftByCustomer(ctx context.Context, customerID int64) (*entity.Order, error)
	Create(ctx context.Context, order *entity.Order) error
	Save(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*entity.Order, error)
	ListAll(ctx context.Context) ([]*entity.Order, error)
	Delete(ctx context.Context, id int64) error
}

// ConfirmInput carries the fulfilment preferences recorded on the
// Draft -> Pending transition.
type ConfirmInput struct {
	PaymentMode  string
	DeliveryMode string
	CollectBy    string
}

// Service enforces the order state machine and its business rules.
type Service struct {
	store     Store
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// NewServiceWithStore builds a Service over an arbitrary Store with no
// cache or messaging attached. Used by tests and tooling.
func NewServiceWithStore(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// GetOrCreateDraft returns the customer's draft order, creating one
// when none exists. Concurrent calls for the same customer converge on
// a single draft: the storage layer rejects a second draft insert and
// the loser re-reads the winner's row.
func (s *Service) GetOrCreateDraft(ctx context.Context, customerID int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.GetOrCreateDraft", trace.WithAttributes(attribute.Int64("order.customer_id", customerID)))
	defer span.End()

	if draft, err := s.draftFromCache(ctx, customerID); err == nil {
		return draft, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		if s.logger != nil {
			s.logger.Warn("draft cache read failed", zap.Int64("customer_id", customerID), zap.Error(err))
		}
	}

	draft, err := s.store.FindDraftByCustomer(ctx, customerID)
	if err == nil {
		s.storeDraftInCache(ctx, draft)
		return draft, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load draft order", errorbank.WithCause(err))
	}

	// One retry: a conflict means another request won the race, either
	// on the draft index or on the order number.
	for attempt := 0; attempt < 2; attempt++ {
		number, err := s.store.NextOrderNumber(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sequence error")
			return nil, errorbank.Internal("failed to allocate order number", errorbank.WithCause(err))
		}

		now := time.Now().UTC()
		draft = &entity.Order{
			Number:     number,
			CustomerID: customerID,
			Status:     entity.StatusDraft,
			Lines:      []*entity.OrderLine{},
			Total:      0,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err = s.store.Create(ctx, draft)
		if err == nil {
			s.storeDraftInCache(ctx, draft)
			return draft, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to create draft order", errorbank.WithCause(err))
		}

		if existing, findErr := s.store.FindDraftByCustomer(ctx, customerID); findErr == nil {
			return existing, nil
		}
	}

	span.SetStatus(codes.Error, "conflict")
	return nil, errorbank.Conflict("draft creation kept conflicting; refresh and retry")
}

// AddItem merges a price-snapshotted line into a draft order and
// recomputes the total. Draft-only; owner-only.
func (s *Service) AddItem(ctx context.Context, orderID int64, caller identity.Principal, line *entity.OrderLine) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AddItem", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := validateLine(line); err != nil {
		return nil, err
	}

	// Retry once on a concurrent mutation: re-read, re-merge, re-save.
	for attempt := 0; attempt < 2; attempt++ {
		order, err := s.loadOwned(ctx, orderID, caller)
		if err != nil {
			return nil, err
		}
		if order.Status != entity.StatusDraft {
			return nil, errorbank.InvalidState("items can only be added to a draft order")
		}

		order.MergeLine(&entity.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Qty:       line.Qty,
			Image:     line.Image,
			Discount:  line.Discount,
		})

		err = s.store.Save(ctx, order)
		if err == nil {
			s.storeDraftInCache(ctx, order)
			return order, nil
		}
		if !errors.Is(err, repo.ErrVersionMismatch) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to save order", errorbank.WithCause(err))
		}
	}

	span.SetStatus(codes.Error, "conflict")
	return nil, errorbank.Conflict("order changed concurrently; refresh and retry")
}

// Confirm moves a draft to Pending, recording fulfilment preferences.
// This is the single irreversible step that locks item contents.
func (s *Service) Confirm(ctx context.Context, orderID int64, caller identity.Principal, input ConfirmInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Confirm", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if input.PaymentMode == "" {
		return nil, errorbank.Unprocessable("paymentMode is required")
	}
	if input.DeliveryMode == "" {
		return nil, errorbank.Unprocessable("deliveryMode is required")
	}
	if input.DeliveryMode != entity.DeliveryDoor && input.DeliveryMode != entity.DeliveryCollect {
		return nil, errorbank.Unprocessable(fmt.Sprintf("unknown deliveryMode %q", input.DeliveryMode))
	}
	if input.DeliveryMode == entity.DeliveryDoor && input.CollectBy == "" {
		return nil, errorbank.Unprocessable("collectBy is required for door delivery")
	}

	order, err := s.loadOwned(ctx, orderID, caller)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusDraft {
		return nil, errorbank.InvalidState("only a draft order can be confirmed")
	}

	order.PaymentMode = input.PaymentMode
	order.DeliveryMode = input.DeliveryMode
	order.CollectBy = input.CollectBy
	order.Status = entity.StatusPending
	order.ConfirmedAt = time.Now().UTC()

	if err := s.store.Save(ctx, order); err != nil {
		if errors.Is(err, repo.ErrVersionMismatch) {
			span.SetStatus(codes.Error, "conflict")
			return nil, errorbank.Conflict("order changed concurrently; refresh and retry")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to confirm order", errorbank.WithCause(err))
	}

	s.dropDraftFromCache(ctx, order.CustomerID)
	s.publishLifecycleEvent(ctx, order, "order.confirmed")
	return order, nil
}

// Cancel marks a draft as Canceled. Canceled is terminal: a second
// cancel is rejected.
func (s *Service) Cancel(ctx context.Context, orderID int64, caller identity.Principal) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.loadOwned(ctx, orderID, caller)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusDraft {
		return nil, errorbank.InvalidState("only a draft order can be canceled")
	}

	order.Status = entity.StatusCanceled
	if err := s.store.Save(ctx, order); err != nil {
		if errors.Is(err, repo.ErrVersionMismatch) {
			span.SetStatus(codes.Error, "conflict")
			return nil, errorbank.Conflict("order changed concurrently; refresh and retry")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
	}

	s.dropDraftFromCache(ctx, order.CustomerID)
	return order, nil
}

// AdminSetStatus is the administrative override: it may set any status
// in the admin-assignable set, in any direction, with no transition
// guard. Deliberately unguarded.
func (s *Service) AdminSetStatus(ctx context.Context, orderID int64, status entity.Status) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AdminSetStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if !status.AdminAssignable() {
		return nil, errorbank.Unprocessable(fmt.Sprintf("status %q cannot be assigned by an admin", status))
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.Status = status
	if err := s.store.Save(ctx, order); err != nil {
		if errors.Is(err, repo.ErrVersionMismatch) {
			span.SetStatus(codes.Error, "conflict")
			return nil, errorbank.Conflict("order changed concurrently; refresh and retry")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order status", errorbank.WithCause(err))
	}

	s.publishLifecycleEvent(ctx, order, "order.status_changed")
	return order, nil
}

// AdminDelete removes an order permanently, regardless of status.
func (s *Service) AdminDelete(ctx context.Context, orderID int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AdminDelete", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, orderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	if order.Status == entity.StatusDraft {
		s.dropDraftFromCache(ctx, order.CustomerID)
	}
	return nil
}

// ListForCustomer returns the caller's orders, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForCustomer", trace.WithAttributes(attribute.Int64("order.customer_id", customerID)))
	defer span.End()

	orders, err := s.store.ListByCustomer(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListAll")
	defer span.End()

	orders, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if _, err := entity.ParseStatus(string(order.Status)); err != nil {
		return nil, errorbank.Internal("order has corrupt status", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) loadOwned(ctx context.Context, orderID int64, caller identity.Principal) (*entity.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != caller.UserID && !caller.IsAdmin() {
		return nil, errorbank.Forbidden("order belongs to another customer")
	}
	return order, nil
}

func validateLine(line *entity.OrderLine) error {
	if line == nil {
		return errorbank.BadRequest("item payload is required")
	}
	if line.ProductID == "" {
		return errorbank.Unprocessable("productId is required")
	}
	if line.Name == "" {
		return errorbank.Unprocessable("name is required")
	}
	if line.Price < 0 {
		return errorbank.Unprocessable("price must not be negative")
	}
	if line.Qty <= 0 {
		return errorbank.Unprocessable("qty must be a positive integer")
	}
	if line.Discount < 0 || line.Discount > 100 {
		return errorbank.Unprocessable("discount must be between 0 and 100")
	}
	return nil
}

// LifecycleEvent is emitted whenever an order leaves the draft stage or
// an admin overrides its status.
type LifecycleEvent struct {
	Kind       string    `json:"kind"`
	ID         int64     `json:"id"`
	Number     string    `json:"number"`
	CustomerID int64     `json:"customer_id"`
	Status     string    `json:"status"`
	Total      float64   `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publishLifecycleEvent(ctx context.Context, order *entity.Order, kind string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := LifecycleEvent{
		Kind:       kind,
		ID:         order.ID,
		Number:     order.Number,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal lifecycle event", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish lifecycle event", zap.String("kind", kind), zap.Error(err))
		}
	}
}

func (s *Service) draftCacheKey(customerID int64) string {
	return fmt.Sprintf("orders:draft:%d", customerID)
}

func (s *Service) draftFromCache(ctx context.Context, customerID int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	payload, err := s.cache.Get(ctx, s.draftCacheKey(customerID))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, err
	}
	if order.Status != entity.StatusDraft {
		return nil, cache.ErrCacheMiss
	}
	return &order, nil
}

func (s *Service) storeDraftInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	payload, err := json.Marshal(order)
	if err == nil {
		err = s.cache.Set(ctx, s.draftCacheKey(order.CustomerID), payload, s.cacheTTL)
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("draft cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) dropDraftFromCache(ctx context.Context, customerID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.draftCacheKey(customerID)); err != nil && s.logger != nil {
		s.logger.Warn("draft cache delete failed", zap.Int64("customer_id", customerID), zap.Error(err))
	}
}
