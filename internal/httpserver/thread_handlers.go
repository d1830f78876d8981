package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/service"
)

type openThreadRequest struct {
	OtherUID string `json:"other_uid"`
}

func handleOpenThread(threadSvc *service.ThreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		var req openThreadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.InvalidArg("invalid JSON body"))
			return
		}
		result, err := threadSvc.Open(r.Context(), currentUser.UID, req.OtherUID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleListThreads(threadSvc *service.ThreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		views, err := threadSvc.ListForUser(r.Context(), currentUser.UID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleMarkThreadRead(threadSvc *service.ThreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		threadID := chi.URLParam(r, "threadID")
		if err := threadSvc.MarkRead(r.Context(), currentUser.UID, threadID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
