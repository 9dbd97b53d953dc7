package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	bidding "credit-auction/internal/biddingService"
	"credit-auction/internal/events"
	"credit-auction/internal/registry"
	"credit-auction/internal/repository"
	"credit-auction/internal/scheduler"
	"credit-auction/internal/server"
	"credit-auction/internal/settlement"
	"credit-auction/services/auction/handler"
)

// TestEnv wires the full auction stack on in-memory collaborators. The
// scheduler is not running; tests drive it explicitly through Tick.
type TestEnv struct {
	Router    *gin.Engine
	Registry  *registry.Registry
	Repo      *repository.MemoryRepo
	Scheduler *scheduler.Scheduler
}

// SetupTestEnv initializes the router with in-memory collaborators for integration testing.
func SetupTestEnv() *TestEnv {
	gin.SetMode(gin.TestMode)

	reg := registry.New(24 * time.Hour)
	repo := repository.NewMemoryRepo()
	notifier := events.NewFanout()

	service := bidding.NewAuctionService(reg, repo, notifier)
	coordinator := settlement.NewCoordinator(reg, repo, notifier)
	sched := scheduler.New(reg, coordinator, notifier, 15*time.Second, false)

	h := handler.NewAuctionHandler(service, coordinator, nil, nil)

	return &TestEnv{
		Router:    server.SetupRouter(h),
		Registry:  reg,
		Repo:      repo,
		Scheduler: sched,
	}
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any, headers map[string]string) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := ExecuteRequest(t, router, method, url, reqBody, headers)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// Data extracts the data object from a response envelope.
func Data(t *testing.T, resp map[string]any) map[string]any {
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", resp)
	}
	return data
}

func bidderHeaders(userID string) map[string]string {
	return map[string]string{
		"X-User-Id":    userID,
		"X-Company-Id": "company1",
	}
}
