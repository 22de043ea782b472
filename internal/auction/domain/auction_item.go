package domain

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AggregateType names auction streams in the event store.
const AggregateType = "AuctionItem"

// AuctionEndDeadline is the deadline name that closes an auction at its end time.
const AuctionEndDeadline = "auction-end-deadline"

// AuctionEndPayload is what the scheduler hands back when the auction end deadline fires.
// EndTime lets the handler tell an auction still being created from an orphaned timer.
type AuctionEndPayload struct {
	AuctionItemID uuid.UUID `json:"auctionItemId"`
	EndTime       time.Time `json:"endTime"`
}

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// AuctionItem is the auction aggregate, rebuilt by folding its events.
type AuctionItem struct {
	ID               uuid.UUID
	SellerID         string
	Title            string
	Description      string
	StartingPrice    decimal.Decimal
	AuctionEndTime   time.Time
	Status           Status
	HighestBidderID  string // empty until the first accepted bid
	HighestBidAmount decimal.Decimal
	TopBids          []Bid
	DeadlineHandle   string
	CreatedAt        time.Time
	ClosedAt         *time.Time
}

func NewAuctionItem() *AuctionItem {
	return &AuctionItem{}
}

func (a *AuctionItem) Exists() bool {
	return a.ID != uuid.Nil
}

// Apply folds one event into the state. It never fails and never looks outside the event.
func (a *AuctionItem) Apply(e eventsourcing.Event) {
	switch ev := e.(type) {
	case AuctionItemAdded:
		a.ID = ev.AuctionItemID
		a.SellerID = ev.SellerID
		a.Title = ev.Title
		a.Description = ev.Description
		a.StartingPrice = ev.StartingPrice
		a.AuctionEndTime = ev.AuctionEndTime
		a.DeadlineHandle = ev.DeadlineHandle
		a.CreatedAt = ev.CreatedAt
		a.Status = StatusActive
		a.HighestBidAmount = ev.StartingPrice
		a.TopBids = nil
	case HighestBidSet:
		a.HighestBidderID = ev.BidderID
		a.HighestBidAmount = ev.Amount
		a.TopBids = withTopBid(a.TopBids, Bid{BidID: ev.BidID, BidderID: ev.BidderID, Amount: ev.Amount})
	case AuctionClosed:
		closedAt := ev.ClosedAt
		a.Status = StatusClosed
		a.ClosedAt = &closedAt
	case BidPlaced, BidRejected:
		// audit only
	}
}

// CreateAuction holds the seller's input for a new auction.
type CreateAuction struct {
	AuctionItemID  uuid.UUID
	SellerID       string
	Title          string
	Description    string
	StartingPrice  decimal.Decimal
	AuctionEndTime time.Time
}

// Validate checks the command against now without touching any state.
func (c CreateAuction) Validate(now time.Time) error {
	if c.SellerID == "" {
		return ErrMissingSeller
	}
	if !c.StartingPrice.IsPositive() {
		return ErrInvalidStartingPrice
	}
	if !c.AuctionEndTime.After(now) {
		return ErrInvalidEndTime
	}
	return nil
}

// Create decides the events for a new auction. deadlineHandle is the already
// scheduled auction end deadline.
func (a *AuctionItem) Create(cmd CreateAuction, deadlineHandle string, now time.Time) ([]eventsourcing.Event, error) {
	if a.Exists() {
		return nil, ErrAuctionAlreadyExists
	}
	if err := cmd.Validate(now); err != nil {
		return nil, err
	}
	return []eventsourcing.Event{AuctionItemAdded{
		AuctionItemID:  cmd.AuctionItemID,
		SellerID:       cmd.SellerID,
		Title:          cmd.Title,
		Description:    cmd.Description,
		StartingPrice:  cmd.StartingPrice,
		AuctionEndTime: cmd.AuctionEndTime.UTC(),
		DeadlineHandle: deadlineHandle,
		CreatedAt:      now,
	}}, nil
}

// PlaceBid always records the attempt. The bid is accepted only while the
// auction is active and the amount beats the current highest bid.
func (a *AuctionItem) PlaceBid(bidID uuid.UUID, bidderID string, amount decimal.Decimal, now time.Time) ([]eventsourcing.Event, BidResult, error) {
	if !a.Exists() {
		return nil, BidResult{}, ErrAuctionNotFound
	}
	if bidderID == "" {
		return nil, BidResult{}, ErrMissingBidder
	}

	placed := BidPlaced{AuctionItemID: a.ID, BidID: bidID, BidderID: bidderID, Amount: amount, PlacedAt: now}

	var reason RejectionReason
	switch {
	case a.Status != StatusActive:
		reason = ReasonAuctionClosed
	case !amount.GreaterThan(a.HighestBidAmount):
		reason = ReasonBidTooLow
	}

	if reason != "" {
		log.Info("Bid rejected",
			zap.String("auctionItemID", a.ID.String()),
			zap.String("bidderID", bidderID),
			zap.String("amount", amount.String()),
			zap.String("highestBid", a.HighestBidAmount.String()),
			zap.String("reason", string(reason)),
		)
		return []eventsourcing.Event{
			placed,
			BidRejected{AuctionItemID: a.ID, BidID: bidID, BidderID: bidderID, Amount: amount, Reason: reason},
		}, BidResult{Accepted: false, Reason: reason}, nil
	}

	return []eventsourcing.Event{
		placed,
		HighestBidSet{AuctionItemID: a.ID, BidID: bidID, BidderID: bidderID, Amount: amount},
	}, BidResult{Accepted: true}, nil
}

// Close ends the auction with the current leaderboard as its winning bids.
// Closing a closed auction is a no-op.
func (a *AuctionItem) Close(now time.Time) ([]eventsourcing.Event, error) {
	if !a.Exists() {
		return nil, ErrAuctionNotFound
	}
	if a.Status == StatusClosed {
		return nil, nil
	}
	winning := make([]Bid, len(a.TopBids))
	copy(winning, a.TopBids)
	return []eventsourcing.Event{AuctionClosed{AuctionItemID: a.ID, WinningBids: winning, ClosedAt: now}}, nil
}
