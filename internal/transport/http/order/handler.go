package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/dto"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/identity"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/presentation/http/response"
	service "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/service/order"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/JoyelAlbert/ManoMercy-Supermarket/transport/http/order")

// Handler exposes order lifecycle endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. All routes sit
// behind the identity middleware; admin routes add the role guard.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders", identity.Middleware())
	g.GET("", h.listMine)
	g.GET("/draft", h.getOrCreateDraft)
	g.POST("/:id/items", h.addItem)
	g.POST("/:id/confirm", h.confirm)
	g.POST("/:id/cancel", h.cancel)

	admin := g.Group("/admin", identity.RequireAdmin())
	admin.GET("/all", h.listAll)
	admin.PUT("/:id/status", h.setStatus)
	admin.DELETE("/:id", h.deleteOrder)
}

func (h *Handler) getOrCreateDraft(c echo.Context) error {
	b := response.New(c)
	caller, _ := identity.FromContext(c.Request().Context())

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getOrCreateDraft", trace.WithAttributes(attribute.Int64("order.customer_id", caller.UserID)))
	defer span.End()

	order, err := h.svc.GetOrCreateDraft(ctx, caller.UserID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) addItem(c echo.Context) error {
	b := response.New(c)
	caller, _ := identity.FromContext(c.Request().Context())

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.AddItemRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.addItem", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.product_id", payload.ProductID),
	))
	defer span.End()

	order, err := h.svc.AddItem(ctx, id, caller, &entity.OrderLine{
		ProductID: payload.ProductID,
		Name:      payload.Name,
		Price:     payload.Price,
		Qty:       payload.Qty,
		Image:     payload.Image,
		Discount:  payload.Discount,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) confirm(c echo.Context) error {
	b := response.New(c)
	caller, _ := identity.FromContext(c.Request().Context())

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.ConfirmRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.confirm", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Confirm(ctx, id, caller, service.ConfirmInput{
		PaymentMode:  payload.PaymentMode,
		DeliveryMode: payload.DeliveryMode,
		CollectBy:    payload.CollectBy,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)
	caller, _ := identity.FromContext(c.Request().Context())

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, id, caller)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)
	caller, _ := identity.FromContext(c.Request().Context())

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listMine", trace.WithAttributes(attribute.Int64("order.customer_id", caller.UserID)))
	defer span.End()

	orders, err := h.svc.ListForCustomer(ctx, caller.UserID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(orders)).Build()
}

func (h *Handler) listAll(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listAll")
	defer span.End()

	orders, err := h.svc.ListAll(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTOs(orders)).Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.SetStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	status, err := entity.ParseStatus(payload.Status)
	if err != nil {
		return b.WithError(errorbank.Unprocessable("unknown status", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.AdminSetStatus(ctx, id, status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) deleteOrder(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.AdminDelete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusOK).WithData(map[string]string{"message": "order deleted"}).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func toDTO(order *entity.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:           order.ID,
		Number:       order.Number,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		Lines:        make([]dto.OrderLineResponse, 0, len(order.Lines)),
		Total:        order.Total,
		PaymentMode:  order.PaymentMode,
		DeliveryMode: order.DeliveryMode,
		CollectBy:    order.CollectBy,
		CreatedAt:    order.CreatedAt,
	}
	if !order.ConfirmedAt.IsZero() {
		confirmed := order.ConfirmedAt
		resp.ConfirmedAt = &confirmed
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, dto.OrderLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Price,
			Qty:       line.Qty,
			Image:     line.Image,
			Discount:  line.Discount,
		})
	}
	return resp
}

func toDTOs(orders []*entity.Order) []dto.OrderResponse {
	out := make([]dto.OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toDTO(order))
	}
	return out
}
