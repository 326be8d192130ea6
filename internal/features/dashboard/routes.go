package dashboard

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, handler *Handler, allUsers, instructorOnly, studentOnly, adminOnly []gin.HandlerFunc) {
	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/admin", append(adminOnly, handler.GetAdminDashboard)...)
		dashboard.GET("/instructor", append(instructorOnly, handler.GetInstructorDashboard)...)
		dashboard.GET("/instructor/students", append(instructorOnly, handler.GetInstructorStudents)...)
		dashboard.GET("/student", append(studentOnly, handler.GetStudentDashboard)...)
		dashboard.GET("/courses/:courseId", append(allUsers, handler.GetCoursePage)...)
		dashboard.GET("/system-stats", append(adminOnly, handler.GetSystemStats)...)
		dashboard.GET("/logs", append(adminOnly, handler.GetSystemLogs)...)
		dashboard.POST("/logs/clear", append(adminOnly, handler.ClearLogs)...)
	}
}
