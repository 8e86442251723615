package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/routing"
	"github.com/4ndr3jS/TravelStory/pkg/session"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  story.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error(), Kind: story.KindOf(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch story.KindOf(err) {
	case story.KindOutlineTimeout, story.KindSegmentTimeout:
		return http.StatusGatewayTimeout
	case story.KindOutlineFailure, story.KindSegmentFailure:
		return http.StatusBadGateway
	case story.KindNoRouteOrStory:
		return http.StatusConflict
	}
	switch {
	case errors.Is(err, story.ErrStoryActive), errors.Is(err, story.ErrReset):
		return http.StatusConflict
	case errors.Is(err, story.ErrInvalidRoute), errors.Is(err, story.ErrCursorOutOfRange),
		errors.Is(err, model.ErrRouteDuration), errors.Is(err, model.ErrUnknownValue):
		return http.StatusBadRequest
	case errors.Is(err, routing.ErrAddressNotFound), errors.Is(err, session.ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, story.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeBody decodes a JSON request body into v, tolerating an empty body.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
