package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/MrWiki15/server-party-polaris/core"
)

type provisionWalletRequest struct {
	EventID string `json:"event_id"`
	// OrganizerWallet is accepted for wire compatibility; event rows are
	// created upstream, so provisioning only needs the event id.
	OrganizerWallet string `json:"organizer_wallet"`
}

type provisionWalletResponse struct {
	Success bool          `json:"success"`
	Wallet  walletPayload `json:"wallet"`
}

type walletPayload struct {
	EventID   string `json:"event_id"`
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
}

func (s *Server) handleProvisionWallet(w http.ResponseWriter, r *http.Request) {
	var body provisionWalletRequest
	if err := decodeRequest(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.EventID) == "" {
		s.writeError(w, r, fieldRequired("event_id"))
		return
	}

	wallet, err := s.service.ProvisionWallet(r.Context(), core.ProvisionWalletRequest{
		EventID: strings.TrimSpace(body.EventID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, provisionWalletResponse{
		Success: true,
		Wallet: walletPayload{
			EventID:   wallet.EventID,
			AccountID: wallet.AccountID,
			PublicKey: wallet.PublicKey,
		},
	})
}

type checkFundingRequest struct {
	EventID string `json:"event_id"`
}

type checkFundingResponse struct {
	Funded   bool   `json:"funded"`
	Required string `json:"required"`
	Current  string `json:"current"`
}

func (s *Server) handleCheckFunding(w http.ResponseWriter, r *http.Request) {
	var body checkFundingRequest
	if err := decodeRequest(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.EventID) == "" {
		s.writeError(w, r, fieldRequired("event_id"))
		return
	}

	status, err := s.service.CheckFunding(r.Context(), strings.TrimSpace(body.EventID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	httpStatus := http.StatusOK
	if !status.Funded {
		httpStatus = http.StatusPaymentRequired
	}
	writeJSON(w, httpStatus, checkFundingResponse{
		Funded:   status.Funded,
		Required: status.RequiredHbar.String(),
		Current:  status.CurrentHbar.String(),
	})
}

type issueTokenRequest struct {
	EventID string `json:"event_id"`
	Name    string `json:"name"`
}

type issueTokenResponse struct {
	Success bool   `json:"success"`
	TokenID string `json:"tokenId"`
	Symbol  string `json:"symbol"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var body issueTokenRequest
	if err := decodeRequest(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.EventID) == "" {
		s.writeError(w, r, fieldRequired("event_id"))
		return
	}

	token, err := s.service.IssueToken(r.Context(), core.IssueTokenRequest{
		EventID: strings.TrimSpace(body.EventID),
		Name:    strings.TrimSpace(body.Name),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueTokenResponse{
		Success: true,
		TokenID: token.TokenID,
		Symbol:  token.Symbol,
	})
}

type settleDonationRequest struct {
	EventID     string      `json:"event_id"`
	DonorWallet string      `json:"donor_wallet"`
	AmountHbar  json.Number `json:"amount_hbar"`
}

type settleDonationResponse struct {
	Success        bool   `json:"success"`
	TransactionID  string `json:"transactionId"`
	TokensReceived string `json:"tokensReceived"`
	DonationID     string `json:"donation_id"`
}

func (s *Server) handleSettleDonation(w http.ResponseWriter, r *http.Request) {
	var body settleDonationRequest
	if err := decodeRequest(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.EventID) == "" {
		s.writeError(w, r, fieldRequired("event_id"))
		return
	}
	if strings.TrimSpace(body.DonorWallet) == "" {
		s.writeError(w, r, fieldRequired("donor_wallet"))
		return
	}
	amount, err := core.ParseContribution(body.AmountHbar.String())
	if err != nil {
		s.writeError(w, r, invalidField("amount_hbar", err))
		return
	}

	result, err := s.service.SettleDonation(r.Context(), core.SettleDonationRequest{
		EventID:     strings.TrimSpace(body.EventID),
		DonorWallet: strings.TrimSpace(body.DonorWallet),
		Amount:      amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, settleDonationResponse{
		Success:        true,
		TransactionID:  result.TransactionID,
		TokensReceived: result.TokensMinted.String(),
		DonationID:     result.Donation.ID,
	})
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "An unexpected error occurred"
	code := core.PolarisErrorInternal

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		richErr = core.MapServiceError(err)
	}
	if richErr != nil {
		if richErr.Code != 0 {
			status = richErr.Code
		}
		if strings.TrimSpace(richErr.Message) != "" {
			message = richErr.Message
		}
		if strings.TrimSpace(richErr.TextCode) != "" {
			code = richErr.TextCode
		}
	}

	s.logger.Error("request failed",
		"timestamp", time.Now().UTC().Format(time.RFC3339),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	payload := errorEnvelope{
		Status:  "error",
		Message: message,
		Code:    code,
	}
	if !s.config.Production {
		payload.Stack = fmt.Sprintf("%+v", err)
	}
	writeJSON(w, status, payload)
}

func decodeRequest(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return goerrors.NewValidation("request body is not valid JSON").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.PolarisErrorBadInput)
	}
	return nil
}

func fieldRequired(field string) error {
	return goerrors.NewValidation(
		fmt.Sprintf("%s is required", field),
		goerrors.FieldError{Field: field, Message: "required"},
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.PolarisErrorBadInput)
}

func invalidField(field string, cause error) error {
	return goerrors.NewValidation(
		fmt.Sprintf("%s is invalid", field),
		goerrors.FieldError{Field: field, Message: cause.Error()},
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.PolarisErrorBadInput)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
