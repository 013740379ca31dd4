package http

import (
	"bytes"
	"encoding/csv"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type ElectionHandler struct {
	elections ports.ElectionService
	results   ports.ResultService
}

func NewElectionHandler(elections ports.ElectionService, results ports.ResultService) *ElectionHandler {
	return &ElectionHandler{
		elections: elections,
		results:   results,
	}
}

type createElectionRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Mode        domain.ElectionMode `json:"mode"`
	Seats       int                 `json:"seats"`
	MaxRank     *int                `json:"max_rank"`
}

type candidateRequest struct {
	Name      string `json:"name"`
	Info      string `json:"info"`
	ImageURL  string `json:"image_url"`
	SortIndex int    `json:"sort_index"`
}

type updateStatusRequest struct {
	Status domain.ElectionStatus `json:"status"`
}

type mintTokensRequest struct {
	Count       int    `json:"count"`
	LabelPrefix string `json:"labelPrefix"`
}

type mintTokensResponse struct {
	Tokens []ports.MintedToken `json:"tokens"`
	CSV    string              `json:"csv"`
}

func (h *ElectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthorized)
		return
	}

	var req createElectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	election, err := h.elections.Create(r.Context(), ports.CreateElectionInput{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Mode:        req.Mode,
		Seats:       req.Seats,
		MaxRank:     req.MaxRank,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, election)
}

func (h *ElectionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthorized)
		return
	}

	elections, err := h.elections.ListMine(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if elections == nil {
		elections = []*domain.Election{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"elections": elections})
}

func (h *ElectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	details, err := h.elections.Get(r.Context(), electionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (h *ElectionHandler) SetCandidates(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	var req []candidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	input := make([]ports.CandidateInput, len(req))
	for i, c := range req {
		input[i] = ports.CandidateInput{
			Name:      c.Name,
			Info:      c.Info,
			ImageURL:  c.ImageURL,
			SortIndex: c.SortIndex,
		}
	}

	candidates, err := h.elections.SetCandidates(r.Context(), electionID, ownerID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (h *ElectionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	election, err := h.elections.UpdateStatus(r.Context(), electionID, ownerID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, election)
}

// MintTokens returns the plaintext tokens exactly once, as JSON and as a CSV
// ready for distribution.
func (h *ElectionHandler) MintTokens(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	var req mintTokensRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.elections.MintTokens(r.Context(), ports.MintTokensInput{
		ElectionID:  electionID,
		OwnerID:     ownerID,
		Count:       req.Count,
		LabelPrefix: req.LabelPrefix,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := tokensCSV(tokens)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mintTokensResponse{Tokens: tokens, CSV: doc})
}

func (h *ElectionHandler) TokenStats(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	stats, err := h.elections.TokenStats(r.Context(), electionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *ElectionHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	analytics, err := h.elections.Analytics(r.Context(), electionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

func (h *ElectionHandler) Results(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	result, err := h.results.OwnerResults(r.Context(), electionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ElectionHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ownerID, electionID, ok := ownedRequest(w, r)
	if !ok {
		return
	}

	export, err := h.results.Audit(r.Context(), electionID, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, export)
}

// ownedRequest extracts the organizer and the election ID path parameter,
// writing the error response itself when either is missing.
func ownedRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, r, domain.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}

	electionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, domain.ErrInvalidElectionID)
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, electionID, true
}

func tokensCSV(tokens []ports.MintedToken) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"token", "issued_to"}); err != nil {
		return "", err
	}
	for _, t := range tokens {
		if err := cw.Write([]string{t.Token, t.IssuedTo}); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return buf.String(), cw.Error()
}
