package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/auth"
)

// IdentityHandler mints identity tokens. There is no login: the client picks
// (or is assigned) an opaque user id once and exchanges it for a signed token
// so later requests can't be trivially spoofed.
type IdentityHandler struct {
	tokens *auth.TokenService
}

func NewIdentityHandler(tokens *auth.TokenService) *IdentityHandler {
	return &IdentityHandler{tokens: tokens}
}

type IssueTokenRequest struct {
	UserID string `json:"userId"`
}

type IssueTokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (h *IdentityHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "userId is required")
		return
	}

	token, err := h.tokens.GenerateIdentityToken(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, IssueTokenResponse{Token: token, UserID: req.UserID})
}
