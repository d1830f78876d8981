package httpserver

import (
	"encoding/json"
	"net/http"

	"reelcv-backend/internal/domain"
)

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps an application error to its HTTP status and a JSON body
// carrying the error code.
func writeError(w http.ResponseWriter, err error) {
	code := domain.ErrCode(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.CodeInvalidArgument:
		status = http.StatusBadRequest
	case domain.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case domain.CodePermissionDenied:
		status = http.StatusForbidden
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeAlreadyExists, domain.CodeFailedPrecondition:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
