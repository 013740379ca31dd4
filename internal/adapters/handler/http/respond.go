package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vncsmyrnk/tessera/internal/core/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrElectionNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidElectionID, http.StatusBadRequest, "invalid_id"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrInvalidSession, http.StatusUnauthorized, "invalid_session"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
	{domain.ErrEmptyBallot, http.StatusBadRequest, "empty_ballot"},
	{domain.ErrNotEnoughCandidates, http.StatusBadRequest, "not_enough_candidates"},
	{domain.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
	{domain.ErrElectionNotOpen, http.StatusBadRequest, "election_not_open"},
	{domain.ErrElectionNotClosed, http.StatusBadRequest, "election_not_closed"},
	{domain.ErrElectionNotDraft, http.StatusConflict, "election_not_draft"},
	{domain.ErrElectionClosed, http.StatusConflict, "election_closed"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrTokenAlreadyUsed, http.StatusConflict, "token_already_used"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError maps domain errors to their status; anything unknown is logged
// and reported as a bare 500 so internals never leak.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorResponse{Code: m.code, Message: err.Error()})
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "internal_error", Message: domain.ErrInternal.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}
