package bidding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"credit-auction/internal/auction"
	"credit-auction/internal/auctionerrors"
	"credit-auction/internal/events"
	model "credit-auction/internal/models"
	"credit-auction/internal/registry"
	"credit-auction/internal/repository"
)

// countingSink records how many notifications fired.
type countingSink struct {
	mu           sync.Mutex
	stateChanged int
	settled      int
}

func (c *countingSink) StateChanged(_ context.Context, _ model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateChanged++
}

func (c *countingSink) Settled(_ context.Context, _ model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled++
}

func validParams() CreateAuctionParams {
	now := time.Now().UTC()
	return CreateAuctionParams{
		CreditID:          "credit1",
		Quantity:          100,
		StartPrice:        50,
		FloorPrice:        10,
		PriceDecrement:    5,
		DecrementInterval: 10 * time.Minute,
		StartTime:         now.Add(-time.Minute),
		EndTime:           now.Add(2 * time.Hour),
	}
}

func registerAuction(t *testing.T, reg *registry.Registry, id string, status model.AuctionStatus, remaining int) *auction.Auction {
	t.Helper()
	now := time.Now().UTC()
	a := auction.New(model.Auction{
		AuctionID:         id,
		CreditID:          "credit1",
		Quantity:          100,
		Remaining:         remaining,
		StartPrice:        50,
		CurrentPrice:      50,
		FloorPrice:        10,
		PriceDecrement:    5,
		DecrementInterval: 10 * time.Minute,
		StartTime:         now.Add(-time.Hour),
		EndTime:           now.Add(time.Hour),
		LastPriceUpdate:   now.Add(-time.Hour),
		Status:            status,
		CreatedAt:         now.Add(-time.Hour),
		UpdatedAt:         now.Add(-time.Hour),
	})
	require.NoError(t, reg.Add(a))
	return a
}

func TestCreateAuction_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *CreateAuctionParams)
	}{
		{name: "missing_credit_id", mutate: func(p *CreateAuctionParams) { p.CreditID = "" }},
		{name: "non_positive_quantity", mutate: func(p *CreateAuctionParams) { p.Quantity = 0 }},
		{name: "non_positive_start_price", mutate: func(p *CreateAuctionParams) { p.StartPrice = 0 }},
		{name: "negative_floor_price", mutate: func(p *CreateAuctionParams) { p.FloorPrice = -1 }},
		{name: "floor_above_start", mutate: func(p *CreateAuctionParams) { p.FloorPrice = 60 }},
		{name: "non_positive_decrement", mutate: func(p *CreateAuctionParams) { p.PriceDecrement = 0 }},
		{name: "non_positive_interval", mutate: func(p *CreateAuctionParams) { p.DecrementInterval = 0 }},
		{name: "end_before_start", mutate: func(p *CreateAuctionParams) { p.EndTime = p.StartTime.Add(-time.Minute) }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			mockRepo := repository.NewMockAuctionDB(ctrl)

			service := NewAuctionService(registry.New(24*time.Hour), mockRepo, events.NewFanout())

			p := validParams()
			tc.mutate(&p)

			_, err := service.CreateAuction(context.Background(), p)
			require.Error(t, err)
			require.True(t, errors.Is(err, auctionerrors.ErrInvalidAuction))
		})
	}
}

func TestCreateAuction_Success(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockRepo.EXPECT().RecordAuction(gomock.Any(), gomock.Any()).Return(nil)

	reg := registry.New(24 * time.Hour)
	service := NewAuctionService(reg, mockRepo, events.NewFanout())

	record, err := service.CreateAuction(context.Background(), validParams())
	require.NoError(t, err)
	require.NotEmpty(t, record.AuctionID)
	require.Equal(t, model.AuctionActive, record.Status)
	require.Equal(t, 100, record.Remaining)
	require.Equal(t, 50.0, record.CurrentPrice)

	// The live state machine is registered and resolvable.
	snap, err := service.GetSnapshot(record.AuctionID)
	require.NoError(t, err)
	require.Equal(t, record.AuctionID, snap.AuctionID)
}

func TestCreateAuction_FutureStartIsPending(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockRepo.EXPECT().RecordAuction(gomock.Any(), gomock.Any()).Return(nil)

	service := NewAuctionService(registry.New(24*time.Hour), mockRepo, events.NewFanout())

	p := validParams()
	p.StartTime = time.Now().UTC().Add(time.Hour)
	p.EndTime = p.StartTime.Add(2 * time.Hour)

	record, err := service.CreateAuction(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, model.AuctionPending, record.Status)
}

func TestCreateAuction_RepoFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)
	mockRepo.EXPECT().RecordAuction(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	reg := registry.New(24 * time.Hour)
	service := NewAuctionService(reg, mockRepo, events.NewFanout())

	_, err := service.CreateAuction(context.Background(), validParams())
	require.Error(t, err)
	require.Equal(t, 0, reg.Len())
}

func TestStartAuction(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)

	reg := registry.New(24 * time.Hour)
	sink := &countingSink{}
	service := NewAuctionService(reg, mockRepo, sink)
	registerAuction(t, reg, "auction1", model.AuctionPending, 100)

	snap, err := service.StartAuction(context.Background(), "auction1")
	require.NoError(t, err)
	require.Equal(t, model.AuctionActive, snap.Status)
	require.Equal(t, 1, sink.stateChanged)

	// Starting an already-active auction is an invalid transition.
	_, err = service.StartAuction(context.Background(), "auction1")
	require.True(t, errors.Is(err, auctionerrors.ErrInvalidTransition))
	require.Equal(t, 1, sink.stateChanged)
}

func TestSubmitBid_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        model.AuctionStatus
		remaining     int
		bidPrice      float64
		quantity      int
		wantStatus    model.BidStatus
		expectedError error
	}{
		{
			name: "accepted", status: model.AuctionActive, remaining: 100,
			bidPrice: 50, quantity: 10, wantStatus: model.BidAccepted,
		},
		{
			name: "outbid_below_current_price", status: model.AuctionActive, remaining: 100,
			bidPrice: 45, quantity: 10, wantStatus: model.BidOutbid,
			expectedError: auctionerrors.ErrPriceMismatch,
		},
		{
			name: "rejected_insufficient_quantity", status: model.AuctionActive, remaining: 5,
			bidPrice: 50, quantity: 10, wantStatus: model.BidRejected,
			expectedError: auctionerrors.ErrInsufficientQuantity,
		},
		{
			name: "rejected_not_open", status: model.AuctionEnded, remaining: 100,
			bidPrice: 50, quantity: 10, wantStatus: model.BidRejected,
			expectedError: auctionerrors.ErrAuctionNotActive,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			reg := registry.New(24 * time.Hour)
			repo := repository.NewMemoryRepo()
			sink := &countingSink{}
			service := NewAuctionService(reg, repo, sink)

			a := registerAuction(t, reg, "auction1", tc.status, tc.remaining)
			require.NoError(t, repo.RecordAuction(ctx, a.Record()))

			result, err := service.SubmitBid(ctx, "auction1", "user1", "company1", tc.bidPrice, tc.quantity)
			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				require.Equal(t, 0, sink.stateChanged)
			} else {
				require.NoError(t, err)
				require.Equal(t, 1, sink.stateChanged)
			}

			// The outcome is always returned and always audited. Accepted
			// bids carry their reservation sequence; others carry none.
			require.Equal(t, tc.wantStatus, result.Bid.Status)
			require.NotEmpty(t, result.Bid.BidID)
			if tc.wantStatus == model.BidAccepted {
				require.Equal(t, int64(1), result.Bid.Sequence)
			} else {
				require.Zero(t, result.Bid.Sequence)
			}

			bids, dbErr := repo.GetBidsByAuction(ctx, "auction1")
			require.NoError(t, dbErr)
			require.Len(t, bids, 1)
			require.Equal(t, tc.wantStatus, bids[0].Status)
			require.Equal(t, result.Bid.Sequence, bids[0].Sequence)
		})
	}
}

func TestSubmitBid_InvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)

	service := NewAuctionService(registry.New(24*time.Hour), mockRepo, events.NewFanout())

	tests := []struct {
		name      string
		auctionID string
		userID    string
		bidPrice  float64
		quantity  int
	}{
		{name: "missing_auction_id", auctionID: "", userID: "user1", bidPrice: 50, quantity: 1},
		{name: "missing_user_id", auctionID: "auction1", userID: "", bidPrice: 50, quantity: 1},
		{name: "non_positive_price", auctionID: "auction1", userID: "user1", bidPrice: 0, quantity: 1},
		{name: "non_positive_quantity", auctionID: "auction1", userID: "user1", bidPrice: 50, quantity: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := service.SubmitBid(ctx, tc.auctionID, tc.userID, "company1", tc.bidPrice, tc.quantity)
			require.True(t, errors.Is(err, auctionerrors.ErrInvalidBid))
		})
	}
}

func TestSubmitBid_UnknownAuction(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)

	service := NewAuctionService(registry.New(24*time.Hour), mockRepo, events.NewFanout())

	_, err := service.SubmitBid(context.Background(), "missing", "user1", "company1", 50, 1)
	require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
}

func TestSubmitBid_ConcurrentContention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := registry.New(24 * time.Hour)
	repo := repository.NewMemoryRepo()
	service := NewAuctionService(reg, repo, events.NewFanout())

	a := registerAuction(t, reg, "auction1", model.AuctionActive, 10)
	require.NoError(t, repo.RecordAuction(ctx, a.Record()))

	// Two bids of 6 against remaining 10: exactly one wins.
	results := make([]BidResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.SubmitBid(ctx, "auction1", "user1", "company1", 50, 6)
		}(i)
	}
	wg.Wait()

	accepted, insufficient := 0, 0
	for i := range results {
		switch {
		case errs[i] == nil:
			accepted++
			require.Equal(t, model.BidAccepted, results[i].Bid.Status)
		case errors.Is(errs[i], auctionerrors.ErrInsufficientQuantity):
			insufficient++
			require.Equal(t, model.BidRejected, results[i].Bid.Status)
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	require.Equal(t, 1, accepted)
	require.Equal(t, 1, insufficient)

	snap, err := service.GetSnapshot("auction1")
	require.NoError(t, err)
	require.Equal(t, 4, snap.Remaining)
}

func TestSubmitBid_AcceptedQuantitiesNeverExceedTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := registry.New(24 * time.Hour)
	repo := repository.NewMemoryRepo()
	service := NewAuctionService(reg, repo, events.NewFanout())

	a := registerAuction(t, reg, "auction1", model.AuctionActive, 100)
	require.NoError(t, repo.RecordAuction(ctx, a.Record()))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = service.SubmitBid(ctx, "auction1", "user1", "company1", 50, 1+i%7)
		}(i)
	}
	wg.Wait()

	accepted, err := repo.GetAcceptedBids(ctx, "auction1")
	require.NoError(t, err)

	total := 0
	for _, b := range accepted {
		total += b.Quantity
	}
	snap, err := service.GetSnapshot("auction1")
	require.NoError(t, err)
	require.LessOrEqual(t, total, 100)
	require.Equal(t, 100-total, snap.Remaining)
}

func TestCancelAuction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)

	reg := registry.New(24 * time.Hour)
	sink := &countingSink{}
	service := NewAuctionService(reg, mockRepo, sink)
	registerAuction(t, reg, "auction1", model.AuctionActive, 100)

	snap, err := service.CancelAuction(ctx, "auction1", "listing withdrawn")
	require.NoError(t, err)
	require.Equal(t, model.AuctionCancelled, snap.Status)
	require.Equal(t, 1, sink.stateChanged)

	// The second cancel is an invalid transition and fires no event.
	_, err = service.CancelAuction(ctx, "auction1", "again")
	require.True(t, errors.Is(err, auctionerrors.ErrInvalidTransition))
	require.Equal(t, 1, sink.stateChanged)

	_, err = service.CancelAuction(ctx, "missing", "")
	require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
}

func TestListAuctions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := repository.NewMockAuctionDB(ctrl)

	reg := registry.New(24 * time.Hour)
	service := NewAuctionService(reg, mockRepo, events.NewFanout())

	require.Empty(t, service.ListAuctions())

	registerAuction(t, reg, "auction1", model.AuctionActive, 100)
	registerAuction(t, reg, "auction2", model.AuctionPending, 100)

	snaps := service.ListAuctions()
	require.Len(t, snaps, 2)
}
