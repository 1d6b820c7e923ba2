package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/notify"
)

// NotificationHandlers expose the caller's notification inbox
type NotificationHandlers struct {
	hub *notify.Hub
}

// @Summary Pending notifications
// @Description Returns the inbox; transient entries are removed once returned
// @Tags notifications
// @Produce json
// @Success 200 {array} notify.Notification
// @Router /notifications [get]
// @Security BearerAuth
func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(nuts.NID("req", 12)))
		return
	}
	items := h.hub.Inbox(p.Identifier()).Drain()
	if items == nil {
		items = []notify.Notification{}
	}
	respondWithJSON(w, http.StatusOK, items)
}

// @Summary Dismiss a notification
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Router /notifications/{id} [delete]
// @Security BearerAuth
func (h *NotificationHandlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	if !h.hub.Inbox(p.Identifier()).Dismiss(mux.Vars(r)["id"]) {
		respondWithError(w, errors.NewNotFoundError("notification not found", nil).WithRequestID(requestID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
