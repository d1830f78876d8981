package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/service"
)

type sendRequestRequest struct {
	ToUID string `json:"to_uid"`
}

func handleSendRequest(reqSvc *service.RequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		var req sendRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.InvalidArg("invalid JSON body"))
			return
		}
		created, err := reqSvc.Send(r.Context(), currentUser.UID, req.ToUID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleListRequests(reqSvc *service.RequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		direction := r.URL.Query().Get("direction")
		status := r.URL.Query().Get("status")
		reqs, err := reqSvc.List(r.Context(), currentUser.UID, direction, status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func handleResolveRequest(reqSvc *service.RequestService, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		id := chi.URLParam(r, "requestID")

		var err error
		var result string
		switch action {
		case "accept":
			err = reqSvc.Accept(r.Context(), currentUser.UID, id)
			result = string(domain.RequestAccepted)
		case "decline":
			err = reqSvc.Decline(r.Context(), currentUser.UID, id)
			result = string(domain.RequestDeclined)
		case "cancel":
			err = reqSvc.Cancel(r.Context(), currentUser.UID, id)
			result = string(domain.RequestCanceled)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": result})
	}
}
