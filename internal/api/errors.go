package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/benchlink-core/internal/auth"
	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

// Error represents a structured error response.
type Error struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Transport-level error codes. Domain codes come from device.ErrorCode.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = device.CodeNotFound
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = device.CodeInternal
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// statusForCode maps a domain error code to its HTTP status.
var statusForCode = map[string]int{
	device.CodeInvalidRequest: http.StatusBadRequest,
	device.CodeUnreachable:    http.StatusConflict,
	device.CodeAmbiguous:      http.StatusConflict,
	device.CodeUnlabeled:      http.StatusInternalServerError,
	device.CodeCommunication:  http.StatusBadGateway,
	device.CodeNotFound:       http.StatusNotFound,
	device.CodeNotSupported:   http.StatusMethodNotAllowed,
	device.CodeInternal:       http.StatusInternalServerError,
}

// writeDomainError maps a valve, device, model or auth error onto the
// error body. labels, when non-nil, turns ambiguous candidate indices into
// position labels.
func writeDomainError(w http.ResponseWriter, err error, labels func(int) string) {
	switch {
	case errors.Is(err, models.ErrModelNotFound):
		writeNotFound(w, err.Error())
		return
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
		return
	}

	code := device.ErrorCode(err)
	status, ok := statusForCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := Error{Status: status, Code: code, Message: err.Error()}

	var amb *valve.AmbiguousConnectionError
	if errors.As(err, &amb) {
		candidates := make([]any, len(amb.Candidates))
		for i, idx := range amb.Candidates {
			if labels != nil {
				candidates[i] = labels(idx)
			} else {
				candidates[i] = idx
			}
		}
		body.Details = map[string]any{"candidates": candidates}
	}

	var unreachable *valve.UnreachableConnectionError
	if errors.As(err, &unreachable) {
		body.Details = map[string]any{"request": unreachable.Request}
	}

	writeJSON(w, status, body)
}
