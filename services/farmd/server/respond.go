package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"farmchain/native/bank"
	"farmchain/native/collectible"
	"farmchain/native/farming"
)

const maxRequestBody = 1 << 20

var errCallerRequired = errors.New("X-Farm-Caller header required")

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps engine failure classes onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, collectible.ErrUnitNotFound):
		return http.StatusNotFound
	case errors.Is(err, collectible.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, collectible.ErrInvalidAmount), errors.Is(err, collectible.ErrCollectionMismatch),
		errors.Is(err, collectible.ErrInvalidCollection):
		return http.StatusBadRequest
	}
	switch farming.Kind(err) {
	case farming.KindValidation:
		return http.StatusBadRequest
	case farming.KindNotFound:
		return http.StatusNotFound
	case farming.KindConflict:
		return http.StatusConflict
	case farming.KindAuthorization:
		return http.StatusForbidden
	case farming.KindTiming:
		return http.StatusPreconditionFailed
	case farming.KindEmergency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
