// Package httputil maps service errors onto HTTP responses. Handlers call
// WriteError with whatever the service returned; the mapping from error code
// to status code lives here and nowhere else.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as a JSON error response. Internal errors hide
// their description; everything else explains itself to the caller.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)
	body := errorBody{Error: string(code)}
	if status != http.StatusInternalServerError {
		body.Description = dErrors.ReasonOf(err)
	}
	WriteJSON(w, status, body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest,
		dErrors.CodeInvalidTransferPeriod, dErrors.CodeTransferPeriodMustBeOneYear,
		dErrors.CodePeriodZeroWithFee, dErrors.CodeFeeMismatch,
		dErrors.CodeMissingBillingAccount:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeBadAuthInfo,
		dErrors.CodeNotAuthorizedForTLD, dErrors.CodeRegistrarNotActive:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeAlreadyPendingTransfer,
		dErrors.CodeObjectAlreadySponsored, dErrors.CodeNotPendingTransfer,
		dErrors.CodeStatusProhibitsOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
