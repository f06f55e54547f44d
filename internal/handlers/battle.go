package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/battle"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/middleware"
)

type BattleHandler struct {
	svc *battle.Service
}

func NewBattleHandler(svc *battle.Service) *BattleHandler {
	return &BattleHandler{svc: svc}
}

type CreateBattleRequest struct {
	Score     *float64 `json:"score"`
	UserID    string   `json:"userId"`
	Mode      string   `json:"mode,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}

type JoinBattleRequest struct {
	UserID string `json:"userId"`
}

type RespondBattleRequest struct {
	Score     *float64 `json:"score"`
	UserID    string   `json:"userId"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}

type DeleteBattleRequest struct {
	UserID string `json:"userId"`
}

// callerID resolves the effective caller: a verified identity from the
// middleware beats whatever the body claims.
func callerID(r *http.Request, bodyUserID string) string {
	if id := middleware.UserID(r); id != "" {
		return id
	}
	return bodyUserID
}

func (h *BattleHandler) CreateBattle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.svc.Create(ctx, battle.CreateInput{
		Score:     req.Score,
		CreatorID: callerID(r, req.UserID),
		Mode:      req.Mode,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		respondWithBattleError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, view)
}

func (h *BattleHandler) GetBattle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	includeExpired := r.URL.Query().Get("includeExpired") == "true"

	view, err := h.svc.Get(ctx, vars["battleId"], includeExpired)
	if err != nil {
		respondWithBattleError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *BattleHandler) JoinBattle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	vars := mux.Vars(r)

	var req JoinBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.svc.Join(ctx, vars["battleId"], callerID(r, req.UserID))
	if err != nil {
		respondWithBattleError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *BattleHandler) RespondBattle(w http.ResponseWriter, r *http.Request) {
	// Generous timeout: this path waits on the comparative judge.
	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	vars := mux.Vars(r)

	var req RespondBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.svc.Respond(ctx, vars["battleId"], battle.RespondInput{
		Score:       req.Score,
		ResponderID: callerID(r, req.UserID),
		Thumbnail:   req.Thumbnail,
	})
	if err != nil {
		respondWithBattleError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *BattleHandler) DeleteBattle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	vars := mux.Vars(r)

	// DELETE bodies are optional; fall back to the userId query parameter.
	var req DeleteBattleRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.UserID == "" {
		req.UserID = r.URL.Query().Get("userId")
	}

	result, err := h.svc.Delete(ctx, vars["battleId"], callerID(r, req.UserID))
	if err != nil {
		respondWithBattleError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// respondWithBattleError maps the service error taxonomy onto HTTP codes.
func respondWithBattleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, battle.ErrInvalidScore),
		errors.Is(err, battle.ErrMissingCreatorID),
		errors.Is(err, battle.ErrMissingResponderID),
		errors.Is(err, battle.ErrAlreadyCompleted):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, battle.ErrNotFound),
		errors.Is(err, battle.ErrExpired):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, battle.ErrOpponentBound):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, battle.ErrSelfBattle),
		errors.Is(err, battle.ErrUnauthorized):
		respondWithError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("Battle request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
