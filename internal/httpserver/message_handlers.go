package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/service"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		threadID := chi.URLParam(r, "threadID")
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.InvalidArg("invalid JSON body"))
			return
		}
		msg, err := msgSvc.Send(r.Context(), currentUser.UID, threadID, req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msgSvc.ToResponse(r.Context(), msg))
	}
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		threadID := chi.URLParam(r, "threadID")
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, domain.InvalidArg("limit must be a non-negative integer"))
				return
			}
			limit = n
		}
		msgs, err := msgSvc.List(r.Context(), currentUser.UID, threadID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgSvc.ToResponses(r.Context(), msgs))
	}
}
