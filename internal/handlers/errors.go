package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"kidpoints/internal/ledger"
	"kidpoints/internal/security"
	"kidpoints/internal/service"
	"kidpoints/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
	// Pending names the parked action when the PIN is required
	Pending string `json:"pending,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Warn(logMsg, zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, errorResponse{Error: userMsg})
}

// statusFor maps a domain error to the status and message shown to clients
func statusFor(err error) (int, string) {
	var verr validation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, ledger.ErrChildNotFound),
		errors.Is(err, ledger.ErrActionNotFound),
		errors.Is(err, ledger.ErrLogNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, security.ErrPinRequired):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, security.ErrPinIncorrect):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, security.ErrNoPendingAction),
		errors.Is(err, service.ErrFamilyCodeWithIdentity),
		errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrRemoteUnavailable),
		errors.Is(err, service.ErrAuthUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, ErrInternalServerError
	}
}

// respondWithDomainError writes err with the status statusFor picks. Server
// errors are logged; client errors are only returned.
func (h *APIHandler) respondWithDomainError(w http.ResponseWriter, logMsg string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		respondWithError(w, h.logger, status, msg, logMsg, err)
		return
	}
	resp := errorResponse{Error: msg}
	if errors.Is(err, security.ErrPinRequired) {
		resp.Pending, _ = h.app.PendingAction()
	}
	respondJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
