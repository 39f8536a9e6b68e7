package api

import (
	"errors"
	"net/http"

	"github.com/marcus/soilnet/internal/serverdb"
)

// NotificationListResponse is returned by GET /v1/notifications.
type NotificationListResponse struct {
	Data   []*serverdb.Notification `json:"data"`
	Unread int                      `json:"unread"`
}

// handleListNotifications handles GET /v1/notifications[?unread=true].
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, unread, err := s.store.ListNotifications(user.UserID, unreadOnly, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		logFor(r.Context()).Error("list notifications", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list notifications")
		return
	}
	if list == nil {
		list = []*serverdb.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Data: list, Unread: unread})
}

// handleReadNotification handles POST /v1/notifications/{id}/read.
func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	err := s.store.MarkNotificationRead(user.UserID, r.PathValue("id"))
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("mark notification read", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReadAllNotifications handles POST /v1/notifications/read-all.
func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	n, err := s.store.MarkAllNotificationsRead(user.UserID)
	if err != nil {
		logFor(r.Context()).Error("mark all read", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to update notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// handleDeleteNotification handles DELETE /v1/notifications/{id}.
func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	err := s.store.DeleteNotification(user.UserID, r.PathValue("id"))
	if errors.Is(err, serverdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "notification not found")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("delete notification", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
