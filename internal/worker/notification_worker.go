package worker

import (
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/service"
)

// StartNotificationWorker subscribes lifecycle side effects to the dispatcher:
// outbound mail and ticket-count cache invalidation.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, teamService *service.TeamService) {
	if dispatcher == nil {
		return
	}
	if notificationService != nil {
		notificationService.RegisterHandlers(dispatcher)
	}
	if teamService != nil {
		teamService.RegisterHandlers(dispatcher)
	}
}
