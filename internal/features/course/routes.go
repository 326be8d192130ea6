package course

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches course endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, adminOnly []gin.HandlerFunc) {
	courses := router.Group("/courses")

	courses.GET("", append(allUsers, handler.List)...)
	courses.POST("", append(adminOnly, handler.Create)...)
	courses.GET("/:courseId", append(allUsers, handler.GetByID)...)
	courses.PUT("/:courseId", append(adminOnly, handler.Update)...)
	courses.POST("/:courseId/toggle-active", append(adminOnly, handler.ToggleActive)...)
	courses.DELETE("/:courseId", append(adminOnly, handler.Delete)...)
}
