// Package api exposes the engine over HTTP/JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/types"
)

// Response is the uniform API envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, data any) {
	writeJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	kind := types.KindOf(err)
	status := statusForKind(kind)

	var engineErr *types.Error
	info := &ErrorInfo{Kind: string(types.KindInternal), Message: "internal error"}
	if errors.As(err, &engineErr) {
		info.Kind = string(engineErr.Kind)
		info.Message = engineErr.Message
		info.Retryable = engineErr.Retryable
	}

	if logger != nil {
		logger.Error("request failed",
			zap.String("kind", info.Kind),
			zap.Int("status", status),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
	}

	writeJSON(w, status, Response{
		Success:   false,
		Error:     info,
		Timestamp: time.Now(),
		RequestID: requestID(r.Context()),
	})
}

func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindProvider:
		return http.StatusBadGateway
	case types.KindGeneration:
		return http.StatusBadGateway
	case types.KindRetrieval, types.KindPlanning, types.KindStorage, types.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		writeError(w, r, types.NewError(types.KindValidation, "invalid JSON body").WithCause(err), logger)
		return false
	}
	return true
}
