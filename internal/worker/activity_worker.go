package worker

import (
	"github.com/spec-kit/movie-comments/internal/service"
)

// StartActivityWorker registers the comment activity log handlers.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
