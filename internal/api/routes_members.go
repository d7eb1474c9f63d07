package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clubhouse/internal/handlers"
	"github.com/charlesng35/clubhouse/internal/middleware"
	"github.com/charlesng35/clubhouse/internal/services"
)

func registerMemberRoutes(api *gin.RouterGroup, members *services.MembershipService, logs *services.LogService) error {
	memberHandler, err := handlers.NewMemberHandler(members, logs)
	if err != nil {
		return err
	}

	group := api.Group("/members/:id")
	{
		// Self-service read; the handler widens access for officers.
		group.GET("/membership-log", memberHandler.MembershipLog)

		admin := group.Group("", middleware.RequireAdministrative())
		admin.POST("/membership-log", memberHandler.AddLogEntry)
		admin.POST("/unlock", memberHandler.Unlock)
		admin.POST("/reject", memberHandler.Reject)
		admin.POST("/dues", memberHandler.RecordDues)
	}
	return nil
}
