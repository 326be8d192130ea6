package assignment

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches assignment endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, adminOnly []gin.HandlerFunc) {
	assignments := router.Group("/assignments")

	assignments.GET("", append(adminOnly, handler.List)...)
	assignments.POST("", append(adminOnly, handler.Create)...)
	assignments.POST("/:assignmentId/toggle-active", append(adminOnly, handler.ToggleActive)...)
	assignments.DELETE("/:assignmentId", append(adminOnly, handler.Delete)...)
}
