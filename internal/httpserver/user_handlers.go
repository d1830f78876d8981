package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/presence"
	"reelcv-backend/internal/service"
)

func handleListUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		users, err := userSvc.Search(r.Context(), q, offset, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func handleGetUser(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")
		user, err := userSvc.GetByUID(r.Context(), uid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

type profileUpdateRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Headline    *string `json:"headline"`
}

func handleUpdateProfile(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		var req profileUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.InvalidArg("invalid JSON body"))
			return
		}
		user, err := userSvc.UpdateProfile(r.Context(), currentUser.UID, service.ProfileUpdateInput{
			DisplayName: req.DisplayName,
			AvatarURL:   req.AvatarURL,
			Headline:    req.Headline,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// handleGetPresence resolves a user's live presence from the TTL store.
// Missing or expired records read as offline.
func handleGetPresence(tracker *presence.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")
		rec, err := tracker.Get(r.Context(), uid)
		if err != nil {
			// Presence is a liveness hint; degrade to offline rather
			// than failing the request.
			rec = presence.Record{State: presence.StateOffline}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"uid":          uid,
			"state":        rec.State,
			"last_changed": rec.LastChanged,
		})
	}
}
