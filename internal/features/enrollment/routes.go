package enrollment

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches enrollment endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, studentOnly, adminOnly []gin.HandlerFunc) {
	enrollments := router.Group("/enrollments")

	enrollments.GET("", append(adminOnly, handler.List)...)
	enrollments.GET("/stats", append(adminOnly, handler.Stats)...)
	enrollments.GET("/mine", append(studentOnly, handler.Mine)...)
	enrollments.POST("", append(adminOnly, handler.Create)...)
	enrollments.PATCH("/:enrollmentId", append(adminOnly, handler.Update)...)
	enrollments.POST("/:enrollmentId/toggle-active", append(adminOnly, handler.ToggleActive)...)
	enrollments.DELETE("/:enrollmentId", append(adminOnly, handler.Delete)...)
}
