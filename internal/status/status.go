package status

import (
	"errors"
	"net/http"
)

// GateError is a business failure of the gate protocol. Code is the wire
// error code returned to the scanner device, Status the HTTP status to
// respond with. TicketState is filled for state-conflict errors so staff
// can see why a ticket was rejected.
type GateError struct {
	Code        string
	Status      int
	TicketState string
}

func (e *GateError) Error() string {
	return e.Code
}

// Is matches by code so copies produced by WithState still compare equal
// to their sentinel.
func (e *GateError) Is(target error) bool {
	t, ok := target.(*GateError)
	return ok && t.Code == e.Code
}

// WithState returns a copy of the error annotated with the ticket's
// current state.
func (e *GateError) WithState(state string) *GateError {
	return &GateError{Code: e.Code, Status: e.Status, TicketState: state}
}

func newGateError(code string, status int) *GateError {
	return &GateError{Code: code, Status: status}
}

var (
	// scan phase
	ErrInvalidQRFormat      = newGateError("invalid_qr_format", http.StatusBadRequest)
	ErrQRMissingFields      = newGateError("qr_missing_fields", http.StatusBadRequest)
	ErrUnsupportedQRVersion = newGateError("unsupported_qr_version", http.StatusBadRequest)
	ErrQRExpired            = newGateError("qr_expired", http.StatusBadRequest)
	ErrQRTampered           = newGateError("qr_tampered", http.StatusBadRequest)
	ErrMintMismatch         = newGateError("mint_mismatch", http.StatusBadRequest)
	ErrTicketNotFound       = newGateError("ticket_not_found", http.StatusNotFound)
	ErrAmbiguousAssetRef    = newGateError("ambiguous_asset_ref", http.StatusBadRequest)
	ErrTicketNotActive      = newGateError("ticket_not_active", http.StatusConflict)

	// verify phase
	ErrInvalidOrExpiredChallenge  = newGateError("invalid_or_expired_challenge", http.StatusBadRequest)
	ErrInvalidChallengePayload    = newGateError("invalid_challenge_payload", http.StatusBadRequest)
	ErrInvalidSignature           = newGateError("invalid_signature", http.StatusBadRequest)
	ErrWalletDoesNotOwnMint       = newGateError("wallet_does_not_own_mint", http.StatusBadRequest)
	ErrLedgerUnreachable          = newGateError("ledger_unreachable", http.StatusServiceUnavailable)
	ErrAlreadyRedeemed            = newGateError("already_redeemed_or_invalid", http.StatusConflict)
	ErrVerificationNotFound       = newGateError("verification_record_not_found", http.StatusBadRequest)
	ErrVerificationTicketMismatch = newGateError("verification_ticket_mismatch", http.StatusBadRequest)

	ErrServer = newGateError("server_error", http.StatusInternalServerError)
)

// FromError maps any error to the GateError to surface to the caller.
// Unknown errors collapse to server_error so internals never leak.
func FromError(err error) *GateError {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge
	}
	return ErrServer
}
