package route

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testRequest() Request {
	return Request{
		FromChainID: 42161,
		ToChainID:   8453,
		FromToken:   "0xaf88",
		ToToken:     "0x8335",
		FromAddress: "0xvaultA",
		ToAddress:   "0xvaultB",
		AmountMicro: 6_000_000,
	}
}

func testQuoter(baseURL string) *LiFi {
	return NewLiFi(LiFiOptions{
		BaseURL:     baseURL,
		Integrator:  "test",
		SlippagePct: 3,
		Timeout:     time.Second,
	}, zerolog.Nop())
}

func TestRoutesSuccess(t *testing.T) {
	var received routesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"routes": []map[string]any{
				{
					"id":         "route-1",
					"gasCostUSD": "1.25",
					"steps": []map[string]any{
						{
							"tool":        "stargate",
							"toolDetails": map[string]string{"name": "Stargate"},
							"estimate":    map[string]int64{"executionDuration": 180},
						},
					},
				},
				{
					"id":         "route-2",
					"gasCostUSD": "4.00",
					"steps":      []map[string]any{{"tool": "hop"}},
				},
			},
		})
	}))
	defer srv.Close()

	quotes, err := testQuoter(srv.URL).Routes(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	first := quotes[0]
	if first.EstimatedCostMicro != 1_250_000 {
		t.Fatalf("expected cost 1,250,000 micro, got %d", first.EstimatedCostMicro)
	}
	if len(first.Steps) != 1 || first.Steps[0].Tool != "Stargate" {
		t.Fatalf("expected tool name from toolDetails, got %+v", first.Steps)
	}
	if first.Steps[0].DurationSeconds != 180 {
		t.Fatalf("expected duration 180s, got %d", first.Steps[0].DurationSeconds)
	}
	if len(first.Raw) == 0 {
		t.Fatal("raw payload must be preserved")
	}

	if received.FromAmount != "6000000" {
		t.Fatalf("amount must be sent in micro units, got %s", received.FromAmount)
	}
	if received.Options.Order != "RECOMMENDED" {
		t.Fatalf("expected RECOMMENDED order, got %s", received.Options.Order)
	}
	if received.Options.Slippage != 0.03 {
		t.Fatalf("slippage must be a fraction, got %v", received.Options.Slippage)
	}
}

func TestRoutesEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"routes": []any{}})
	}))
	defer srv.Close()

	_, err := testQuoter(srv.URL).Routes(context.Background(), testRequest())
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestRoutesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 1001, "message": "invalid token"})
	}))
	defer srv.Close()

	_, err := testQuoter(srv.URL).Routes(context.Background(), testRequest())
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestRoutesInvalidRequest(t *testing.T) {
	q := testQuoter("http://unused.invalid")

	req := testRequest()
	req.AmountMicro = 0
	if _, err := q.Routes(context.Background(), req); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("zero amount must fail fast, got %v", err)
	}

	req = testRequest()
	req.FromToken = ""
	if _, err := q.Routes(context.Background(), req); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("missing token must fail fast, got %v", err)
	}
}

func TestRoutesSkipsUnparseableCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"routes": []map[string]any{
				{"id": "bad", "gasCostUSD": "not-a-number"},
				{"id": "good", "gasCostUSD": "0.50", "steps": []map[string]any{{"tool": "cbridge"}}},
			},
		})
	}))
	defer srv.Close()

	quotes, err := testQuoter(srv.URL).Routes(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected the bad candidate to be skipped, got %d quotes", len(quotes))
	}
	if quotes[0].EstimatedCostMicro != 500_000 {
		t.Fatalf("expected cost 500,000 micro, got %d", quotes[0].EstimatedCostMicro)
	}
}
