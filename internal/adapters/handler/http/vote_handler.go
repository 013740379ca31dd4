package http

import (
	"net/http"
	"strings"

	"github.com/vncsmyrnk/tessera/internal/core/counting"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type VoteHandler struct {
	service ports.VoteService
}

func NewVoteHandler(service ports.VoteService) *VoteHandler {
	return &VoteHandler{
		service: service,
	}
}

type claimRequest struct {
	Slug  string `json:"slug"`
	Token string `json:"token"`
}

type submitRequest struct {
	SessionToken string                 `json:"ballot_session_jwt"`
	Rankings     []counting.CandidateID `json:"rankings"`
}

func (h *VoteHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Slug) == "" || strings.TrimSpace(req.Token) == "" {
		writeError(w, r, domain.ErrInvalidInput)
		return
	}

	result, err := h.service.Claim(r.Context(), strings.TrimSpace(req.Slug), strings.TrimSpace(req.Token))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *VoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionToken == "" {
		writeError(w, r, domain.ErrInvalidSession)
		return
	}

	result, err := h.service.Submit(r.Context(), ports.SubmitBallotInput{
		SessionToken: req.SessionToken,
		Rankings:     req.Rankings,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
