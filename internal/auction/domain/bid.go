package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopBidsCapacity is how many bids an auction keeps on its leaderboard.
const TopBidsCapacity = 10

// Bid is a recorded offer, immutable once placed.
type Bid struct {
	BidID    uuid.UUID       `json:"bidId"`
	BidderID string          `json:"bidderId"`
	Amount   decimal.Decimal `json:"amount"`
}

// RejectionReason explains why a bid was not accepted.
type RejectionReason string

const (
	ReasonAuctionClosed RejectionReason = "AUCTION_CLOSED"
	ReasonBidTooLow     RejectionReason = "BID_TOO_LOW"
)

// BidResult is the synchronous answer to PlaceBid. A rejection is not an error.
type BidResult struct {
	Accepted bool            `json:"accepted"`
	Reason   RejectionReason `json:"reason,omitempty"`
}

// withTopBid returns the leaderboard after b is accepted: the bidder's previous
// entry is dropped, then entries are ordered by amount desc (earlier first on ties)
// and cut to TopBidsCapacity.
func withTopBid(current []Bid, b Bid) []Bid {
	next := make([]Bid, 0, len(current)+1)
	for _, existing := range current {
		if existing.BidderID != b.BidderID {
			next = append(next, existing)
		}
	}
	next = append(next, b)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Amount.GreaterThan(next[j].Amount)
	})
	if len(next) > TopBidsCapacity {
		next = next[:TopBidsCapacity]
	}
	return next
}
