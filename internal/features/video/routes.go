package video

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches video endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, staff []gin.HandlerFunc) {
	courseVideos := router.Group("/courses/:courseId/videos")
	courseVideos.GET("", append(allUsers, handler.ListByCourse)...)
	courseVideos.POST("", append(staff, handler.Upload)...)

	videos := router.Group("/videos")
	videos.GET("/:videoId", append(allUsers, handler.GetByID)...)
	videos.GET("/:videoId/playback", append(allUsers, handler.Playback)...)
	videos.PATCH("/:videoId", append(staff, handler.Update)...)
	videos.DELETE("/:videoId", append(staff, handler.Delete)...)
}
