package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAuctionDTO is the seller input for a new auction. A nil AuctionItemID gets a generated one.
type CreateAuctionDTO struct {
	AuctionItemID  uuid.UUID       `json:"auctionItemId"`
	SellerID       string          `json:"sellerId"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	StartingPrice  decimal.Decimal `json:"startingPrice"`
	AuctionEndTime time.Time       `json:"auctionEndTime"`
}

type CreateAuctionUseCase struct {
	repo      *AuctionRepository
	scheduler deadline.Scheduler
	clock     clock.Clock
}

func NewCreateAuctionUseCase(repo *AuctionRepository, scheduler deadline.Scheduler, clk clock.Clock) *CreateAuctionUseCase {
	return &CreateAuctionUseCase{repo: repo, scheduler: scheduler, clock: clk}
}

func (uc *CreateAuctionUseCase) Execute(ctx context.Context, dto CreateAuctionDTO) (*AuctionStateDTO, error) {
	if dto.AuctionItemID == uuid.Nil {
		dto.AuctionItemID = uuid.New()
	}
	cmd := domain.CreateAuction{
		AuctionItemID:  dto.AuctionItemID,
		SellerID:       dto.SellerID,
		Title:          dto.Title,
		Description:    dto.Description,
		StartingPrice:  dto.StartingPrice,
		AuctionEndTime: dto.AuctionEndTime,
	}
	now := uc.clock.Now()

	// validate before scheduling so a bad request never leaves a timer behind
	if err := cmd.Validate(now); err != nil {
		log.Warn("CreateAuctionUseCase: invalid command",
			zap.String("auctionItemID", cmd.AuctionItemID.String()),
			zap.String("sellerID", cmd.SellerID),
			zap.Error(err),
		)
		return nil, err
	}

	handle, err := uc.scheduler.Schedule(ctx, cmd.AuctionEndTime, domain.AuctionEndDeadline,
		domain.AuctionEndPayload{AuctionItemID: cmd.AuctionItemID, EndTime: cmd.AuctionEndTime})
	if err != nil {
		return nil, fmt.Errorf("create auction use case: failed to schedule end deadline: %w", err)
	}

	var created *domain.AuctionItem
	_, err = uc.repo.Execute(ctx, cmd.AuctionItemID, func(a *domain.AuctionItem) ([]eventsourcing.Event, error) {
		events, err := a.Create(cmd, string(handle), now)
		if err != nil {
			return nil, err
		}
		created = domain.NewAuctionItem()
		for _, e := range events {
			created.Apply(e)
		}
		return events, nil
	})
	if err != nil {
		if cancelErr := uc.scheduler.Cancel(ctx, domain.AuctionEndDeadline, handle); cancelErr != nil {
			log.Error("CreateAuctionUseCase: failed to cancel orphan deadline",
				zap.String("auctionItemID", cmd.AuctionItemID.String()),
				zap.Error(cancelErr),
			)
		}
		return nil, fmt.Errorf("create auction use case: %w", err)
	}

	log.Info("Auction created",
		zap.String("auctionItemID", cmd.AuctionItemID.String()),
		zap.String("sellerID", cmd.SellerID),
		zap.Time("auctionEndTime", cmd.AuctionEndTime),
	)
	return toStateDTO(created), nil
}
