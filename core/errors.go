package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PolarisErrorBadInput             = "POLARIS_BAD_INPUT"
	PolarisErrorEventNotFound        = "POLARIS_EVENT_NOT_FOUND"
	PolarisErrorWalletNotProvisioned = "POLARIS_WALLET_NOT_PROVISIONED"
	PolarisErrorWalletProvisioned    = "POLARIS_WALLET_ALREADY_PROVISIONED"
	PolarisErrorTokenNotIssued       = "POLARIS_TOKEN_NOT_ISSUED"
	PolarisErrorTokenIssued          = "POLARIS_TOKEN_ALREADY_ISSUED"
	PolarisErrorUnderfunded          = "POLARIS_WALLET_UNDERFUNDED"
	PolarisErrorConfiguration        = "POLARIS_CONFIG_INVALID"
	PolarisErrorCiphertextInvalid    = "POLARIS_CIPHERTEXT_INVALID"
	PolarisErrorDecryptionFailed     = "POLARIS_DECRYPTION_FAILED"
	PolarisErrorLedgerFailed         = "POLARIS_LEDGER_OPERATION_FAILED"
	PolarisErrorMintedNotTransferred = "POLARIS_MINTED_NOT_TRANSFERRED"
	PolarisErrorPersistenceGap       = "POLARIS_LEDGER_STATE_UNRECORDED"
	PolarisErrorEventBusy            = "POLARIS_EVENT_BUSY"
	PolarisErrorInternal             = "POLARIS_INTERNAL_ERROR"
)

// Vault-level sentinels. The vault package wraps these so callers can match
// without importing crypto details.
var (
	ErrInvalidCiphertext  = errors.New("core: encrypted secret payload is invalid")
	ErrDecryptionFailure  = errors.New("core: secret decryption failed")
	ErrInvalidSecretKey   = errors.New("core: encryption secret is missing or not 32 bytes of hex")
	ErrEventLockHeld      = errors.New("core: event lock already held")
	ErrWalletUnderfunded  = errors.New("core: event wallet below funding threshold")
	ErrLedgerUnavailable  = errors.New("core: ledger operation failed")
	ErrMintedNotDelivered = errors.New("core: tokens minted but transfer failed")
	ErrLedgerNotRecorded  = errors.New("core: ledger effect succeeded but store write failed")
)

// MapServiceError normalizes any error into the service envelope: category,
// HTTP code and text code populated. Boundaries call this before rendering.
func MapServiceError(err error) *goerrors.Error {
	return polarisErrorMapper(err)
}

func polarisErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePolarisErrorEnvelope(richErr)
	}

	switch {
	// Reconciliation errors come first: a chain can carry both a persistence
	// gap and an idempotency sentinel (a provisioning race orphaning a fresh
	// account), and the critical envelope must win.
	case errors.Is(err, ErrMintedNotDelivered):
		return ensurePolarisErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryOperation, err.Error()).
				WithCode(http.StatusInternalServerError).
				WithTextCode(PolarisErrorMintedNotTransferred).
				WithSeverity(goerrors.SeverityCritical),
		)
	case errors.Is(err, ErrLedgerNotRecorded):
		return ensurePolarisErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryOperation, err.Error()).
				WithCode(http.StatusInternalServerError).
				WithTextCode(PolarisErrorPersistenceGap).
				WithSeverity(goerrors.SeverityCritical),
		)
	case errors.Is(err, ErrEventNotFound):
		return newPolarisError(err, goerrors.CategoryNotFound, PolarisErrorEventNotFound)
	case errors.Is(err, ErrDonationNotFound):
		return newPolarisError(err, goerrors.CategoryNotFound, PolarisErrorEventNotFound)
	case errors.Is(err, ErrWalletNotProvisioned):
		return newPolarisError(err, goerrors.CategoryNotFound, PolarisErrorWalletNotProvisioned)
	case errors.Is(err, ErrWalletAlreadyProvisioned):
		return newPolarisError(err, goerrors.CategoryBadInput, PolarisErrorWalletProvisioned)
	case errors.Is(err, ErrTokenNotIssued):
		return newPolarisError(err, goerrors.CategoryNotFound, PolarisErrorTokenNotIssued)
	case errors.Is(err, ErrTokenAlreadyIssued):
		return newPolarisError(err, goerrors.CategoryBadInput, PolarisErrorTokenIssued)
	case errors.Is(err, ErrInvalidSecretKey):
		return newPolarisError(err, goerrors.CategoryInternal, PolarisErrorConfiguration)
	case errors.Is(err, ErrInvalidCiphertext):
		return newPolarisError(err, goerrors.CategoryInternal, PolarisErrorCiphertextInvalid)
	case errors.Is(err, ErrDecryptionFailure):
		return newPolarisError(err, goerrors.CategoryInternal, PolarisErrorDecryptionFailed)
	case errors.Is(err, ErrEventLockHeld):
		return newPolarisError(err, goerrors.CategoryConflict, PolarisErrorEventBusy)
	case errors.Is(err, ErrWalletUnderfunded):
		return ensurePolarisErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryOperation, err.Error()).
				WithCode(http.StatusPaymentRequired).
				WithTextCode(PolarisErrorUnderfunded),
		)
	case errors.Is(err, ErrLedgerUnavailable):
		return ensurePolarisErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryExternal, err.Error()).
				WithCode(http.StatusBadGateway).
				WithTextCode(PolarisErrorLedgerFailed),
		)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newPolarisError(err, goerrors.CategoryBadInput, PolarisErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePolarisErrorEnvelope(mapped)
}

func newPolarisError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensurePolarisErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func ensurePolarisErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = polarisHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPolarisTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPolarisTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PolarisErrorBadInput
	case goerrors.CategoryNotFound:
		return PolarisErrorEventNotFound
	case goerrors.CategoryConflict:
		return PolarisErrorEventBusy
	case goerrors.CategoryExternal:
		return PolarisErrorLedgerFailed
	default:
		return PolarisErrorInternal
	}
}

func polarisHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
