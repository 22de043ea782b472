package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/cristianortiz/marketplace/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// PlaceBidDTO is DTO input for PlaceBid useCase. A nil BidID gets a generated one.
type PlaceBidDTO struct {
	AuctionItemID uuid.UUID
	BidID         uuid.UUID
	BidderID      string
	Amount        decimal.Decimal
}

// BidResultDTO tells the bidder what happened to the bid
type BidResultDTO struct {
	BidID            uuid.UUID       `json:"bidId"`
	Accepted         bool            `json:"accepted"`
	Reason           string          `json:"reason,omitempty"`
	HighestBidAmount decimal.Decimal `json:"highestBidAmount"`
}

// PlaceBidUseCase runs a bid against the auction aggregate
type PlaceBidUseCase struct {
	repo  *AuctionRepository
	clock clock.Clock
}

func NewPlaceBidUseCase(repo *AuctionRepository, clk clock.Clock) *PlaceBidUseCase {
	return &PlaceBidUseCase{repo: repo, clock: clk}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*BidResultDTO, error) {
	if cmd.BidID == uuid.Nil {
		cmd.BidID = uuid.New()
	}
	log.Debug("Executing PlaceBidUseCase",
		zap.String("auctionItemID", cmd.AuctionItemID.String()),
		zap.String("bidderID", cmd.BidderID),
		zap.String("amount", cmd.Amount.String()),
	)

	var (
		result  domain.BidResult
		highest decimal.Decimal
	)
	_, err := uc.repo.Execute(ctx, cmd.AuctionItemID, func(a *domain.AuctionItem) ([]eventsourcing.Event, error) {
		events, r, err := a.PlaceBid(cmd.BidID, cmd.BidderID, cmd.Amount, uc.clock.Now())
		if err != nil {
			return nil, err
		}
		result = r
		highest = a.HighestBidAmount
		if r.Accepted {
			highest = cmd.Amount
		}
		return events, nil
	})
	if err != nil {
		return nil, fmt.Errorf("place bid use case: bid failed for auction %s: %w", cmd.AuctionItemID, err)
	}

	if result.Accepted {
		log.Info("Bid accepted",
			zap.String("auctionItemID", cmd.AuctionItemID.String()),
			zap.String("bidID", cmd.BidID.String()),
			zap.String("bidderID", cmd.BidderID),
			zap.String("amount", cmd.Amount.String()),
		)
	}
	return &BidResultDTO{
		BidID:            cmd.BidID,
		Accepted:         result.Accepted,
		Reason:           string(result.Reason),
		HighestBidAmount: highest,
	}, nil
}
