package progress

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches progress endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers []gin.HandlerFunc) {
	router.GET("/videos/:videoId/progress", append(allUsers, handler.Get)...)
	router.PUT("/videos/:videoId/progress", append(allUsers, handler.Save)...)
	router.GET("/courses/:courseId/progress", append(allUsers, handler.Course)...)
}
