package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/service"
)

func handleListConnections(connSvc *service.ConnectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		views, err := connSvc.ListForUser(r.Context(), currentUser.UID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetConnection(connSvc *service.ConnectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		otherUID := chi.URLParam(r, "uid")
		if otherUID == "" || otherUID == currentUser.UID {
			writeError(w, domain.InvalidArg("peer uid is required"))
			return
		}
		pairID := domain.PairID(currentUser.UID, otherUID)
		conn, err := connSvc.Get(r.Context(), currentUser.UID, pairID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conn)
	}
}

type respondConnectionRequest struct {
	Action string `json:"action"`
}

func handleRespondConnection(connSvc *service.ConnectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		otherUID := chi.URLParam(r, "uid")
		if otherUID == "" || otherUID == currentUser.UID {
			writeError(w, domain.InvalidArg("peer uid is required"))
			return
		}
		var req respondConnectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.InvalidArg("invalid JSON body"))
			return
		}
		pairID := domain.PairID(currentUser.UID, otherUID)
		if err := connSvc.Respond(r.Context(), currentUser.UID, pairID, req.Action); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
