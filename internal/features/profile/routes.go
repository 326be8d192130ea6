package profile

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches the privileged user endpoints and the profile directory.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, adminOnly []gin.HandlerFunc) {
	users := router.Group("/users")
	users.POST("/create", append(adminOnly, handler.CreateUser)...)
	users.POST("/delete", append(adminOnly, handler.DeleteUser)...)

	profiles := router.Group("/profiles")
	profiles.GET("", append(adminOnly, handler.List)...)
	profiles.GET("/:profileId", append(adminOnly, handler.GetByID)...)
	profiles.PATCH("/:profileId", append(adminOnly, handler.Update)...)
	profiles.POST("/:profileId/toggle-active", append(adminOnly, handler.ToggleActive)...)
	profiles.DELETE("/:profileId", append(adminOnly, handler.Delete)...)
}
