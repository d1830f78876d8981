package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/service"
)

func handleListNotifications(notifSvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, domain.InvalidArg("limit must be a non-negative integer"))
				return
			}
			limit = n
		}
		notifs, err := notifSvc.ListForUser(r.Context(), currentUser.UID, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, notifs)
	}
}

func handleMarkNotificationRead(notifSvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		id := chi.URLParam(r, "notificationID")
		if err := notifSvc.MarkRead(r.Context(), currentUser.UID, id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleMarkAllNotificationsRead(notifSvc *service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentUser := CurrentUser(r)
		if currentUser == nil {
			writeError(w, domain.Unauthenticated("unauthorized"))
			return
		}
		if err := notifSvc.MarkAllRead(r.Context(), currentUser.UID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
