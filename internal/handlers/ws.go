package handlers

import (
	"net/http"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/middleware"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/notify"
)

// WSHandler upgrades notification subscriptions onto the push hub.
type WSHandler struct {
	hub *notify.Hub
}

func NewWSHandler(hub *notify.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	h.hub.Serve(w, r, userID)
}
