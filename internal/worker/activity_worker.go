package worker

import (
	"github.com/spec-kit/ticket-lifecycle/internal/service"
)

// StartActivityWorker registers the ticket activity handlers.
func StartActivityWorker(activity *service.ActivityService) {
	if activity == nil {
		return
	}
	activity.RegisterHandlers()
}
