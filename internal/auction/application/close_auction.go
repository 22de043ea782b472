package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CloseAuctionUseCase closes an auction on request of the seller or an operator.
type CloseAuctionUseCase struct {
	repo      *AuctionRepository
	scheduler deadline.Scheduler
	clock     clock.Clock
}

func NewCloseAuctionUseCase(repo *AuctionRepository, scheduler deadline.Scheduler, clk clock.Clock) *CloseAuctionUseCase {
	return &CloseAuctionUseCase{repo: repo, scheduler: scheduler, clock: clk}
}

func (uc *CloseAuctionUseCase) Execute(ctx context.Context, auctionItemID uuid.UUID) error {
	var handle string
	committed, err := uc.repo.Execute(ctx, auctionItemID, func(a *domain.AuctionItem) ([]eventsourcing.Event, error) {
		handle = a.DeadlineHandle
		return a.Close(uc.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("close auction use case: %w", err)
	}
	if len(committed) == 0 {
		log.Debug("Auction already closed", zap.String("auctionItemID", auctionItemID.String()))
		return nil
	}

	log.Info("Auction closed", zap.String("auctionItemID", auctionItemID.String()))

	// the end deadline is now useless, if it still fires the aggregate ignores it
	if handle != "" {
		if err := uc.scheduler.Cancel(ctx, domain.AuctionEndDeadline, deadline.Handle(handle)); err != nil {
			log.Warn("Failed to cancel auction end deadline",
				zap.String("auctionItemID", auctionItemID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// AuctionEndDeadlineHandler closes the auction when its end deadline fires.
type AuctionEndDeadlineHandler struct {
	repo  *AuctionRepository
	clock clock.Clock
}

func NewAuctionEndDeadlineHandler(repo *AuctionRepository, clk clock.Clock) *AuctionEndDeadlineHandler {
	return &AuctionEndDeadlineHandler{repo: repo, clock: clk}
}

func (h *AuctionEndDeadlineHandler) Handle(ctx context.Context, p domain.AuctionEndPayload) error {
	committed, err := h.repo.Execute(ctx, p.AuctionItemID, func(a *domain.AuctionItem) ([]eventsourcing.Event, error) {
		return a.Close(h.clock.Now())
	})
	if errors.Is(err, domain.ErrAuctionNotFound) {
		if deadline.Orphaned(p.EndTime, h.clock.Now()) {
			log.Warn("Auction end deadline for unknown auction, dropping",
				zap.String("auctionItemID", p.AuctionItemID.String()),
				zap.Time("endTime", p.EndTime),
			)
			return nil
		}
		// the auction may still be mid-creation, let the scheduler redeliver
		return fmt.Errorf("auction end deadline: %w", err)
	}
	if err != nil {
		return fmt.Errorf("auction end deadline: %w", err)
	}
	if len(committed) == 0 {
		log.Warn("Auction end deadline fired after close, ignoring",
			zap.String("auctionItemID", p.AuctionItemID.String()))
		return nil
	}
	log.Info("Auction closed by end deadline", zap.String("auctionItemID", p.AuctionItemID.String()))
	return nil
}
