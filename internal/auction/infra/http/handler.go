package http

import (
	"errors"
	"time"

	"github.com/cristianortiz/marketplace/internal/auction/application"
	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserHeader carries the caller identity, resolved upstream.
const UserHeader = "X-User-ID"

type Handler struct {
	service application.AuctionService
}

func NewHandler(service application.AuctionService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	g := app.Group("/api/auctions")
	g.Post("/", h.create)
	g.Get("/:id", h.get)
	g.Post("/:id/bids", h.placeBid)
	g.Post("/:id/close", h.close)
}

// StatusFor maps auction errors to HTTP status codes.
func StatusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidStartingPrice),
		errors.Is(err, domain.ErrInvalidEndTime),
		errors.Is(err, domain.ErrMissingSeller),
		errors.Is(err, domain.ErrMissingBidder):
		return fiber.StatusBadRequest, true
	case errors.Is(err, domain.ErrAuctionNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, domain.ErrAuctionAlreadyExists):
		return fiber.StatusConflict, true
	}
	return 0, false
}

type createAuctionRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartingPrice  decimal.Decimal `json:"startingPrice"`
	AuctionEndTime time.Time       `json:"auctionEndTime"`
}

type placeBidRequest struct {
	BidID  uuid.UUID       `json:"bidId"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) create(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	state, err := h.service.CreateAuction(c.UserContext(), application.CreateAuctionDTO{
		SellerID:       c.Get(UserHeader),
		Title:          req.Title,
		Description:    req.Description,
		StartingPrice:  req.StartingPrice,
		AuctionEndTime: req.AuctionEndTime,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	state, err := h.service.GetAuctionState(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(state)
}

func (h *Handler) placeBid(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	result, err := h.service.PlaceBid(c.UserContext(), application.PlaceBidDTO{
		AuctionItemID: id,
		BidID:         req.BidID,
		BidderID:      c.Get(UserHeader),
		Amount:        req.Amount,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) close(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	if err := h.service.CloseAuction(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func auctionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
	}
	return id, nil
}
