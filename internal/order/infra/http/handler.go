package http

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/cristianortiz/marketplace/internal/order/application"
	"github.com/cristianortiz/marketplace/internal/order/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service       application.OrderService
	webhookSecret string
}

func NewHandler(service application.OrderService, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	orders := app.Group("/api/v1/orders")
	orders.Post("/reserve-funds", h.reserveFunds)
	orders.Get("/:id", h.get)
	orders.Post("/:id/tracking-number", h.enterTrackingNumber)

	app.Post("/api/v1/webhooks/orders/ship24", h.ship24Webhook)
}

// StatusFor maps order errors to HTTP status codes.
func StatusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidReservation),
		errors.Is(err, domain.ErrMissingTrackingNumber),
		errors.Is(err, domain.ErrUnknownMilestone):
		return fiber.StatusBadRequest, true
	case errors.Is(err, domain.ErrOrderNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, domain.ErrOrderAlreadyExists),
		errors.Is(err, domain.ErrInvalidOrderState):
		return fiber.StatusConflict, true
	}
	return 0, false
}

type reserveFundsRequest struct {
	OrderID               *uuid.UUID      `json:"orderId"`
	BuyerID               string          `json:"buyerId"`
	PaymentMethodID       string          `json:"paymentMethodId"`
	NetAmount             decimal.Decimal `json:"netAmount"`
	SellerID              string          `json:"sellerId"`
	SellerPayoutAccountID string          `json:"sellerPayoutAccountId"`
}

type trackingNumberRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

func (h *Handler) reserveFunds(c *fiber.Ctx) error {
	var req reserveFundsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	dto := application.ReserveFundsDTO{
		BuyerID:               req.BuyerID,
		PaymentMethodID:       req.PaymentMethodID,
		NetAmount:             req.NetAmount,
		SellerID:              req.SellerID,
		SellerPayoutAccountID: req.SellerPayoutAccountID,
	}
	if req.OrderID != nil {
		dto.OrderID = *req.OrderID
	}
	order, err := h.service.ReserveFunds(c.UserContext(), dto)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	order, err := h.service.GetOrder(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

func (h *Handler) enterTrackingNumber(c *fiber.Ctx) error {
	id, err := orderID(c)
	if err != nil {
		return err
	}
	var req trackingNumberRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.service.EnterTrackingNumber(c.UserContext(), id, req.TrackingNumber); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func orderID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}
	return id, nil
}

// authorized checks the shared webhook secret sent as a bearer token.
func (h *Handler) authorized(c *fiber.Ctx) bool {
	if h.webhookSecret == "" {
		return false
	}
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookSecret)) == 1
}
