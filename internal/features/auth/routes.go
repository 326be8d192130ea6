package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches authentication endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, authenticated, limited []gin.HandlerFunc) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", append(limited, handler.Login)...)
		auth.POST("/refresh", append(limited, handler.RefreshToken)...)
		auth.POST("/logout", handler.Logout)
		auth.GET("/me", append(authenticated, handler.Me)...)
	}
}
