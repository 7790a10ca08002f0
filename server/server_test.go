package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MrWiki15/server-party-polaris/core"
)

type stubSettlementService struct {
	provisionFn func(ctx context.Context, req core.ProvisionWalletRequest) (core.ProvisionedWallet, error)
	fundingFn   func(ctx context.Context, eventID string) (core.FundingStatus, error)
	issueFn     func(ctx context.Context, req core.IssueTokenRequest) (core.IssuedToken, error)
	settleFn    func(ctx context.Context, req core.SettleDonationRequest) (core.SettlementResult, error)
}

func (s stubSettlementService) ProvisionWallet(ctx context.Context, req core.ProvisionWalletRequest) (core.ProvisionedWallet, error) {
	if s.provisionFn == nil {
		return core.ProvisionedWallet{}, nil
	}
	return s.provisionFn(ctx, req)
}

func (s stubSettlementService) CheckFunding(ctx context.Context, eventID string) (core.FundingStatus, error) {
	if s.fundingFn == nil {
		return core.FundingStatus{}, nil
	}
	return s.fundingFn(ctx, eventID)
}

func (s stubSettlementService) IssueToken(ctx context.Context, req core.IssueTokenRequest) (core.IssuedToken, error) {
	if s.issueFn == nil {
		return core.IssuedToken{}, nil
	}
	return s.issueFn(ctx, req)
}

func (s stubSettlementService) SettleDonation(ctx context.Context, req core.SettleDonationRequest) (core.SettlementResult, error) {
	if s.settleFn == nil {
		return core.SettlementResult{}, nil
	}
	return s.settleFn(ctx, req)
}

func newTestServer(t *testing.T, service SettlementService) *httptest.Server {
	t.Helper()
	srv, err := New(Config{Production: true}, service)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestProvisionWalletEndpoint(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{
		provisionFn: func(_ context.Context, req core.ProvisionWalletRequest) (core.ProvisionedWallet, error) {
			if req.EventID != "evt_1" {
				t.Fatalf("expected evt_1, got %q", req.EventID)
			}
			return core.ProvisionedWallet{EventID: "evt_1", AccountID: "0.0.1001", PublicKey: "aabb"}, nil
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/events", `{"event_id":"evt_1","organizer_wallet":"0.0.7"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["success"] != true {
		t.Fatalf("expected success flag, got %#v", body)
	}
	wallet, ok := body["wallet"].(map[string]any)
	if !ok || wallet["account_id"] != "0.0.1001" {
		t.Fatalf("expected wallet payload, got %#v", body)
	}
}

func TestProvisionWalletEndpoint_RequiresEventID(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{})

	resp, body := postJSON(t, ts.URL+"/api/v1/events", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %#v", body)
	}
	if body["code"] != core.PolarisErrorBadInput {
		t.Fatalf("expected bad input code, got %#v", body["code"])
	}
}

func TestCheckFundingEndpoint_Underfunded(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{
		fundingFn: func(_ context.Context, eventID string) (core.FundingStatus, error) {
			return core.FundingStatus{
				EventID:      eventID,
				AccountID:    "0.0.1001",
				Funded:       false,
				RequiredHbar: decimal.NewFromInt(10),
				CurrentHbar:  decimal.NewFromInt(5),
			}, nil
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/events/check-funding", `{"event_id":"evt_1"}`)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
	if body["funded"] != false {
		t.Fatalf("expected funded=false, got %#v", body)
	}
	if body["required"] != "10" || body["current"] != "5" {
		t.Fatalf("expected balance payload, got %#v", body)
	}
}

func TestCheckFundingEndpoint_Funded(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{
		fundingFn: func(_ context.Context, eventID string) (core.FundingStatus, error) {
			return core.FundingStatus{
				EventID:      eventID,
				Funded:       true,
				RequiredHbar: decimal.NewFromInt(10),
				CurrentHbar:  decimal.NewFromInt(15),
			}, nil
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/events/check-funding", `{"event_id":"evt_1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["funded"] != true {
		t.Fatalf("expected funded=true, got %#v", body)
	}
}

func TestCheckFundingEndpoint_WalletMissing(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{
		fundingFn: func(_ context.Context, _ string) (core.FundingStatus, error) {
			return core.FundingStatus{}, fmt.Errorf("funding check: %w", core.ErrWalletNotProvisioned)
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/events/check-funding", `{"event_id":"evt_1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %#v", body)
	}
}

func TestIssueTokenEndpoint(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{
		issueFn: func(_ context.Context, req core.IssueTokenRequest) (core.IssuedToken, error) {
			return core.IssuedToken{EventID: req.EventID, TokenID: "0.0.2002", Symbol: "SUM"}, nil
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/events/create-token", `{"event_id":"evt_1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["tokenId"] != "0.0.2002" {
		t.Fatalf("expected token id, got %#v", body)
	}
}

func TestSettleDonationEndpoint(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{
		settleFn: func(_ context.Context, req core.SettleDonationRequest) (core.SettlementResult, error) {
			if !req.Amount.Equal(decimal.RequireFromString("20")) {
				t.Fatalf("expected amount 20, got %s", req.Amount)
			}
			return core.SettlementResult{
				Donation:      core.Donation{ID: "don_1"},
				TransactionID: "tx_99",
				TokensMinted:  decimal.RequireFromString("10"),
			}, nil
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/donations",
		`{"event_id":"evt_1","donor_wallet":"0.0.4242","amount_hbar":20}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["transactionId"] != "tx_99" {
		t.Fatalf("expected transaction id, got %#v", body)
	}
	if body["tokensReceived"] != "10" {
		t.Fatalf("expected minted amount, got %#v", body)
	}
}

func TestSettleDonationEndpoint_RejectsBadAmount(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{})

	resp, _ := postJSON(t, ts.URL+"/api/v1/donations",
		`{"event_id":"evt_1","donor_wallet":"0.0.4242","amount_hbar":-5}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestErrorEnvelope_MapsServiceErrors(t *testing.T) {
	mapped := core.MapServiceError(fmt.Errorf("settle: %w", core.ErrMintedNotDelivered))
	ts := newTestServer(t, stubSettlementService{
		settleFn: func(_ context.Context, _ core.SettleDonationRequest) (core.SettlementResult, error) {
			return core.SettlementResult{}, mapped
		},
	})

	resp, body := postJSON(t, ts.URL+"/api/v1/donations",
		`{"event_id":"evt_1","donor_wallet":"0.0.4242","amount_hbar":20}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body["code"] != core.PolarisErrorMintedNotTransferred {
		t.Fatalf("expected partial settlement code, got %#v", body["code"])
	}
	if _, hasStack := body["stack"]; hasStack {
		t.Fatalf("expected no stack detail in production mode")
	}
}

func TestErrorEnvelope_MalformedJSON(t *testing.T) {
	ts := newTestServer(t, stubSettlementService{})

	resp, body := postJSON(t, ts.URL+"/api/v1/donations", `{"event_id":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %#v", body)
	}
}
