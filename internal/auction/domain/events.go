package domain

import (
	"time"

	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuctionItemAdded struct {
	AuctionItemID  uuid.UUID       `json:"auctionItemId"`
	SellerID       string          `json:"sellerId"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartingPrice  decimal.Decimal `json:"startingPrice"`
	AuctionEndTime time.Time       `json:"auctionEndTime"`
	DeadlineHandle string          `json:"deadlineHandle"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// BidPlaced is the audit record of every bid attempt, accepted or not.
type BidPlaced struct {
	AuctionItemID uuid.UUID       `json:"auctionItemId"`
	BidID         uuid.UUID       `json:"bidId"`
	BidderID      string          `json:"bidderId"`
	Amount        decimal.Decimal `json:"amount"`
	PlacedAt      time.Time       `json:"placedAt"`
}

type HighestBidSet struct {
	AuctionItemID uuid.UUID       `json:"auctionItemId"`
	BidID         uuid.UUID       `json:"bidId"`
	BidderID      string          `json:"bidderId"`
	Amount        decimal.Decimal `json:"amount"`
}

type BidRejected struct {
	AuctionItemID uuid.UUID       `json:"auctionItemId"`
	BidID         uuid.UUID       `json:"bidId"`
	BidderID      string          `json:"bidderId"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        RejectionReason `json:"reason"`
}

type AuctionClosed struct {
	AuctionItemID uuid.UUID `json:"auctionItemId"`
	WinningBids   []Bid     `json:"winningBids"`
	ClosedAt      time.Time `json:"closedAt"`
}

func (AuctionItemAdded) EventType() string { return "AuctionItemAdded" }
func (BidPlaced) EventType() string        { return "BidPlaced" }
func (HighestBidSet) EventType() string    { return "HighestBidSet" }
func (BidRejected) EventType() string      { return "BidRejected" }
func (AuctionClosed) EventType() string    { return "AuctionClosed" }

// RegisterEvents adds every auction event to r.
func RegisterEvents(r *eventsourcing.Registry) {
	eventsourcing.Register[AuctionItemAdded](r)
	eventsourcing.Register[BidPlaced](r)
	eventsourcing.Register[HighestBidSet](r)
	eventsourcing.Register[BidRejected](r)
	eventsourcing.Register[AuctionClosed](r)
}
