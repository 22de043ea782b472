package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionStateDTO is the output DTO for exposing auction state to the UI/WS
type AuctionStateDTO struct {
	AuctionItemID    uuid.UUID       `json:"auctionItemId"`
	SellerID         string          `json:"sellerId"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	StartingPrice    decimal.Decimal `json:"startingPrice"`
	AuctionEndTime   time.Time       `json:"auctionEndTime"`
	Status           string          `json:"status"`
	HighestBidderID  string          `json:"highestBidderId,omitempty"`
	HighestBidAmount decimal.Decimal `json:"highestBidAmount"`
	TopBids          []domain.Bid    `json:"topBids"`
	ClosedAt         *time.Time      `json:"closedAt,omitempty"`
}

// GetAuctionStateUseCase replays an auction and returns its current state
type GetAuctionStateUseCase struct {
	repo *AuctionRepository
}

func NewGetAuctionStateUseCase(repo *AuctionRepository) *GetAuctionStateUseCase {
	return &GetAuctionStateUseCase{repo: repo}
}

func (uc *GetAuctionStateUseCase) Execute(ctx context.Context, auctionItemID uuid.UUID) (*AuctionStateDTO, error) {
	a, _, err := uc.repo.Load(ctx, auctionItemID)
	if err != nil {
		return nil, fmt.Errorf("get auction state: %w", err)
	}
	if !a.Exists() {
		return nil, domain.ErrAuctionNotFound
	}
	return toStateDTO(a), nil
}

func toStateDTO(a *domain.AuctionItem) *AuctionStateDTO {
	topBids := make([]domain.Bid, len(a.TopBids))
	copy(topBids, a.TopBids)
	return &AuctionStateDTO{
		AuctionItemID:    a.ID,
		SellerID:         a.SellerID,
		Title:            a.Title,
		Description:      a.Description,
		StartingPrice:    a.StartingPrice,
		AuctionEndTime:   a.AuctionEndTime,
		Status:           string(a.Status),
		HighestBidderID:  a.HighestBidderID,
		HighestBidAmount: a.HighestBidAmount,
		TopBids:          topBids,
		ClosedAt:         a.ClosedAt,
	}
}
