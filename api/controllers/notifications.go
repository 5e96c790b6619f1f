package controllers

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
	"github.com/angelmondragon/pcstore-storefront/internal/notify"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
)

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Dropped       int                   `json:"dropped"`
}

// Notifications hands the queued toasts to the UI. Reading drains the inbox
// unless ?peek=true.
func Notifications(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := currentWorkspace(w, r, logg)
		if !ok {
			return
		}

		peek := false
		if raw := r.URL.Query().Get("peek"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "peek must be a boolean"))
				return
			}
			peek = parsed
		}

		var items []notify.Notification
		if peek {
			items = ws.Notifications.Peek()
		} else {
			items = ws.Notifications.Drain()
		}
		if items == nil {
			items = []notify.Notification{}
		}
		responses.WriteSuccess(w, notificationsResponse{Notifications: items, Dropped: ws.Notifications.Dropped()})
	}
}
