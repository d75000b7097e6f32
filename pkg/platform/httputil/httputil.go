// Package httputil holds the JSON request and response helpers shared by all
// HTTP handlers: one envelope for errors, one decode path for request bodies.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	derrors "prequal/pkg/domain-errors"
)

// ErrorBody is the JSON error envelope. Internal errors carry no
// description so infrastructure detail never leaks to the client.
type ErrorBody struct {
	Error       string   `json:"error"`
	Description string   `json:"error_description,omitempty"`
	Items       []string `json:"items,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error into its HTTP status and envelope.
// Uncoded errors surface as a bare 500.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	body := ErrorBody{Error: string(code)}
	if code != derrors.CodeInternal {
		var de *derrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
			body.Items = de.Items
		}
	}
	WriteJSON(w, derrors.ToHTTPStatus(code), body)
}

// DecodeAndPrepare decodes a JSON request body into T, writing a 400 and
// logging on malformed input. The bool result reports whether the handler
// should continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "malformed request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, derrors.New(derrors.CodeBadRequest, "malformed JSON request body"))
		return req, false
	}
	return req, true
}
