package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	model "credit-auction/internal/models"
	"credit-auction/services/auction/helpers"
)

func createAuctionRequest(quantity int, start, end time.Time) helpers.CreateAuctionRequest {
	return helpers.CreateAuctionRequest{
		CreditID:          "credit1",
		Quantity:          quantity,
		StartPrice:        50,
		FloorPrice:        10,
		PriceDecrement:    5,
		DecrementInterval: 10,
		StartTime:         start.Format(time.RFC3339),
		EndTime:           end.Format(time.RFC3339),
	}
}

func createAuction(t *testing.T, env *TestEnv, req helpers.CreateAuctionRequest) string {
	t.Helper()
	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions", req, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	auctionID := Data(t, resp)["auction_id"].(string)
	require.NotEmpty(t, auctionID)
	return auctionID
}

func TestAuctionBiddingLifecycle(t *testing.T) {
	env := SetupTestEnv()
	now := time.Now().UTC()

	auctionID := createAuction(t, env, createAuctionRequest(100, now.Add(-time.Minute), now.Add(2*time.Hour)))

	// The auction started in the past, so it is live immediately.
	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(model.AuctionActive), Data(t, resp)["status"])
	require.Equal(t, 50.0, Data(t, resp)["current_price"])

	// It shows up in the listing.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 1)

	// Before any bid arrives the audit log is an empty list, not an error.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID+"/bids", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"].([]any))

	// An at-price bid is accepted and decrements remaining.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 30}, bidderHeaders("user1"))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, string(model.BidAccepted), Data(t, resp)["status"])
	require.Equal(t, 70.0, Data(t, resp)["remaining"])

	// A below-price bid comes back outbid with the live price attached.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 30, Quantity: 10}, bidderHeaders("user2"))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, string(model.BidOutbid), Data(t, resp)["status"])
	require.Equal(t, 50.0, Data(t, resp)["current_price"])
	require.Equal(t, 70.0, Data(t, resp)["remaining"])

	// Both outcomes are in the audit log.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID+"/bids", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 2)

	// A bid without identity headers is refused outright and not audited.
	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 10}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID+"/bids", nil, nil)
	require.Len(t, resp["data"].([]any), 2)
}

func TestExhaustionTriggersSettlement(t *testing.T) {
	env := SetupTestEnv()
	now := time.Now().UTC()

	auctionID := createAuction(t, env, createAuctionRequest(10, now.Add(-time.Minute), now.Add(2*time.Hour)))

	// Draining the full quantity concludes the auction on the spot.
	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 10}, bidderHeaders("user1"))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, 0.0, Data(t, resp)["remaining"])

	resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil, nil)
	require.Equal(t, string(model.AuctionEnded), Data(t, resp)["status"])

	// Further bids bounce off the ended auction but stay on the audit log.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 1}, bidderHeaders("user2"))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, string(model.BidRejected), Data(t, resp)["status"])

	// Settlement crowns the exhausting bidder at the admission price.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/settle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(model.AuctionSettled), Data(t, resp)["status"])
	require.Equal(t, "user1", Data(t, resp)["winner_id"])
	require.Equal(t, 50.0, Data(t, resp)["final_price"])

	// Settling again returns the same frozen outcome.
	resp, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/settle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user1", Data(t, resp)["winner_id"])
}

func TestPendingAuctionStartFlow(t *testing.T) {
	env := SetupTestEnv()
	now := time.Now().UTC()

	auctionID := createAuction(t, env, createAuctionRequest(100, now.Add(time.Hour), now.Add(3*time.Hour)))

	resp, _ := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil, nil)
	require.Equal(t, string(model.AuctionPending), Data(t, resp)["status"])

	// Bids against a pending auction are rejected.
	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 10}, bidderHeaders("user1"))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, string(model.BidRejected), Data(t, resp)["status"])

	// An explicit start opens it early.
	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/start", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 10}, bidderHeaders("user1"))
	require.Equal(t, http.StatusCreated, w.Code)

	// Starting twice is a conflict.
	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/start", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelFlow(t *testing.T) {
	env := SetupTestEnv()
	now := time.Now().UTC()

	auctionID := createAuction(t, env, createAuctionRequest(100, now.Add(-time.Minute), now.Add(2*time.Hour)))

	resp, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/cancel",
		helpers.CancelAuctionRequest{Reason: "listing withdrawn"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(model.AuctionCancelled), Data(t, resp)["status"])

	// Cancelled auctions accept no bids and cannot be settled.
	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 10}, bidderHeaders("user1"))
	require.Equal(t, http.StatusConflict, w.Code)

	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/settle", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	_, w = ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/cancel", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSchedulerDrivenExpiry(t *testing.T) {
	env := SetupTestEnv()
	now := time.Now().UTC()

	auctionID := createAuction(t, env, createAuctionRequest(100, now.Add(-time.Minute), now.Add(time.Hour)))

	// A tick halfway through decays the price but keeps the auction open.
	env.Scheduler.Tick(context.Background(), now.Add(29*time.Minute))
	resp, _ := ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil, nil)
	require.Equal(t, string(model.AuctionActive), Data(t, resp)["status"])
	require.Equal(t, 35.0, Data(t, resp)["current_price"])

	// The tick past the deadline ends and settles it winnerless, with the
	// final price frozen where the decay schedule left it.
	env.Scheduler.Tick(context.Background(), now.Add(2*time.Hour))
	resp, _ = ExecuteRequestAndParse(t, env.Router, http.MethodGet, "/auctions/"+auctionID, nil, nil)
	require.Equal(t, string(model.AuctionSettled), Data(t, resp)["status"])
	require.NotContains(t, Data(t, resp), "winner_id")
	require.Equal(t, 10.0, Data(t, resp)["final_price"])
}

func TestSettleActiveAuctionIsConflict(t *testing.T) {
	env := SetupTestEnv()
	now := time.Now().UTC()

	auctionID := createAuction(t, env, createAuctionRequest(100, now.Add(-time.Minute), now.Add(2*time.Hour)))

	_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/"+auctionID+"/settle", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownAuctionRoutes(t *testing.T) {
	env := SetupTestEnv()

	for _, route := range []struct{ method, url string }{
		{http.MethodGet, "/auctions/missing"},
		{http.MethodPost, "/auctions/missing/start"},
		{http.MethodPost, "/auctions/missing/settle"},
		{http.MethodPost, "/auctions/missing/cancel"},
		{http.MethodGet, "/auctions/missing/bids"},
	} {
		_, w := ExecuteRequestAndParse(t, env.Router, route.method, route.url, nil, nil)
		require.Equal(t, http.StatusNotFound, w.Code, fmt.Sprintf("%s %s", route.method, route.url))
	}

	_, w := ExecuteRequestAndParse(t, env.Router, http.MethodPost, "/auctions/missing/bids",
		helpers.PlaceBidRequest{BidPrice: 50, Quantity: 1}, bidderHeaders("user1"))
	require.Equal(t, http.StatusNotFound, w.Code)
}
