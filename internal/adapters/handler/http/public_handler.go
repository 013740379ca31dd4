package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

// PublicHandler serves unauthenticated, slug-addressed election data.
// Everything but the election itself is available only once closed.
type PublicHandler struct {
	elections ports.ElectionService
	results   ports.ResultService
}

func NewPublicHandler(elections ports.ElectionService, results ports.ResultService) *PublicHandler {
	return &PublicHandler{
		elections: elections,
		results:   results,
	}
}

func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	details, err := h.elections.GetPublic(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (h *PublicHandler) Results(w http.ResponseWriter, r *http.Request) {
	result, err := h.results.PublicResults(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PublicHandler) Receipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.results.Receipts(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

func (h *PublicHandler) LookupReceipt(w http.ResponseWriter, r *http.Request) {
	found, err := h.results.HasReceipt(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"found": found})
}

func (h *PublicHandler) Ballots(w http.ResponseWriter, r *http.Request) {
	ballots, err := h.results.Ballots(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ballots == nil {
		ballots = []counting.Ballot{}
	}

	writeJSON(w, http.StatusOK, ballots)
}
