package application

import (
	"context"

	"github.com/cristianortiz/marketplace/internal/auction/domain"
	"github.com/cristianortiz/marketplace/internal/shared/clock"
	"github.com/cristianortiz/marketplace/internal/shared/deadline"
	"github.com/cristianortiz/marketplace/internal/shared/eventsourcing"
	"github.com/google/uuid"
)

// AuctionRepository is the event-sourced repository of auction items.
type AuctionRepository = eventsourcing.Repository[*domain.AuctionItem]

// NewAuctionRepository builds the repository for auction streams on store.
func NewAuctionRepository(store eventsourcing.Store, publisher eventsourcing.Publisher) *AuctionRepository {
	return eventsourcing.NewRepository(domain.AggregateType, domain.NewAuctionItem, store, publisher)
}

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error)
	// PlaceBid records the bid and tells whether it was accepted, a rejection is not an error
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*BidResultDTO, error)
	CloseAuction(ctx context.Context, auctionItemID uuid.UUID) error
	GetAuctionState(ctx context.Context, auctionItemID uuid.UUID) (*AuctionStateDTO, error)
}

type auctionService struct {
	createUC   *CreateAuctionUseCase
	placeBidUC *PlaceBidUseCase
	closeUC    *CloseAuctionUseCase
	getStateUC *GetAuctionStateUseCase
}

// NewAuctionService wires every use case around one repository and scheduler.
func NewAuctionService(repo *AuctionRepository, scheduler deadline.Scheduler, clk clock.Clock) AuctionService {
	return &auctionService{
		createUC:   NewCreateAuctionUseCase(repo, scheduler, clk),
		placeBidUC: NewPlaceBidUseCase(repo, clk),
		closeUC:    NewCloseAuctionUseCase(repo, scheduler, clk),
		getStateUC: NewGetAuctionStateUseCase(repo),
	}
}

func (as *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionStateDTO, error) {
	return as.createUC.Execute(ctx, cmd)
}

func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*BidResultDTO, error) {
	return as.placeBidUC.Execute(ctx, cmd)
}

func (as *auctionService) CloseAuction(ctx context.Context, auctionItemID uuid.UUID) error {
	return as.closeUC.Execute(ctx, auctionItemID)
}

func (as *auctionService) GetAuctionState(ctx context.Context, auctionItemID uuid.UUID) (*AuctionStateDTO, error) {
	return as.getStateUC.Execute(ctx, auctionItemID)
}

// RegisterDeadlines routes the auction end deadline to its handler.
func RegisterDeadlines(d *deadline.Dispatcher, repo *AuctionRepository, clk clock.Clock) {
	h := NewAuctionEndDeadlineHandler(repo, clk)
	d.Register(domain.AuctionEndDeadline, deadline.Typed(h.Handle))
}
