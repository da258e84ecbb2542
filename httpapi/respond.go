package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/middleware"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Login failed: Incorrect username or password"
	msgDuplicate          = "Username already taken"
	msgNotFound           = "Not found"
	msgDeviceNotFound     = "Device not found"
	msgInternal           = "Internal server error"
)

// StatusFor maps an error onto the response status and client message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, goFleet.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, goFleet.ErrUnauthenticated), errors.Is(err, goFleet.ErrReAuthRequired):
		return http.StatusUnauthorized, middleware.MessageUnauthenticated
	case errors.Is(err, goFleet.ErrDuplicateIdentity):
		return http.StatusConflict, msgDuplicate
	case errors.Is(err, goFleet.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, goFleet.ErrValidationFailed):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, goFleet.ErrRateLimited):
		return http.StatusTooManyRequests, middleware.MessageRateLimited
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage strips the sentinel prefix so clients see only the
// problem, e.g. "password must be at least 6 characters".
func validationMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{goFleet.ErrValidationFailed.Error() + ": ", "invalid device data: "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	if msg == "" {
		return goFleet.ErrValidationFailed.Error()
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	middleware.WriteError(w, status, msg)
}
