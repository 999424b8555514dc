// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/samber/oops"

	"github.com/tillgate/tilld/internal/auth"
	"github.com/tillgate/tilld/pkg/errutil"
)

// apiError is the structured error response body.
type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeErrorCode writes a structured error response.
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// statusForCode maps service error codes to HTTP statuses. Codes outside the
// client-facing set are internal failures and map to 500.
func statusForCode(code string) (int, bool) {
	switch code {
	case auth.CodeInvalidInput:
		return http.StatusBadRequest, true
	case auth.CodeConflict:
		return http.StatusConflict, true
	case auth.CodeUnauthenticated:
		return http.StatusUnauthorized, true
	case auth.CodeForbidden:
		return http.StatusForbidden, true
	case auth.CodeRateLimited:
		return http.StatusTooManyRequests, true
	case auth.CodeNotFound:
		return http.StatusNotFound, true
	}
	return http.StatusInternalServerError, false
}

// writeError maps a service error to its HTTP response. The response carries
// the service message only for client-facing codes; everything else is
// logged and surfaces as an opaque internal error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errutil.Code(err)
	status, clientFacing := statusForCode(code)
	if !clientFacing {
		errutil.LogError(s.logger, "request failed", err)
		writeErrorCode(w, status, "AUTH_INTERNAL", "internal server error")
		return
	}

	message := "request failed"
	if oopsErr, ok := oops.AsOops(err); ok {
		message = oopsErr.Error()
	}
	writeErrorCode(w, status, code, message)
}
