package routes

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/access"
	"github.com/aulavirtual/lms-server-go/internal/features/assignment"
	"github.com/aulavirtual/lms-server-go/internal/features/auth"
	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/dashboard"
	"github.com/aulavirtual/lms-server-go/internal/features/enrollment"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/features/progress"
	"github.com/aulavirtual/lms-server-go/internal/features/video"
	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/internal/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/cache"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/health"
	pkgmiddleware "github.com/aulavirtual/lms-server-go/pkg/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/storage"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// UploadRoute is the route whose body limit is raised to the upload limit.
const UploadRoute = "POST /api/courses/:courseId/videos"

// Login attempts allowed per client and minute.
const loginAttemptsPerMinute = 10

// Dependencies are the shared services handed to feature handlers.
type Dependencies struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *slog.Logger
	Identity identity.Provider
	Store    storage.ObjectStore
	Cache    cache.Client
}

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, deps Dependencies) {
	cfg, db, logger := deps.Config, deps.DB, deps.Logger
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache()
	}

	// Health check endpoints (no /api prefix for Kubernetes liveness checks)
	healthHandler := health.NewHandler(db, logger, map[string]health.Pinger{"cache": deps.Cache})
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)

	// Metrics endpoint for Prometheus
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !cfg.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	api := engine.Group("/api")

	authMiddleware := middleware.NewAuthMiddleware(db, deps.Identity, logger)
	if cfg.Identity.Provider == config.IdentityGoTrue {
		authMiddleware.WithSubjectCache(deps.Cache, time.Minute)
	}

	adminOnly := authMiddleware.RequireRoles(types.RoleAdmin)
	staff := authMiddleware.RequireRoles(types.RoleAdmin, types.RoleInstructor)
	instructorOnly := authMiddleware.RequireRoles(types.RoleInstructor)
	studentOnly := authMiddleware.RequireRoles(types.RoleStudent)
	allUsers := authMiddleware.Authenticated()

	loginLimiter := pkgmiddleware.NewRateLimiter(deps.Cache, logger, loginAttemptsPerMinute, time.Minute, "rl:login")
	limited := []gin.HandlerFunc{loginLimiter.Middleware()}

	checker := access.NewChecker(db)

	authService := auth.NewService(db, deps.Identity, logger)
	auth.RegisterRoutes(api, auth.NewHandler(db, authService, logger), allUsers, limited)

	profileService := profile.NewService(db, deps.Identity, logger)
	profile.RegisterRoutes(api, profile.NewHandler(db, profileService, logger), adminOnly)

	course.RegisterRoutes(api, course.NewHandler(db, checker, logger), allUsers, adminOnly)
	assignment.RegisterRoutes(api, assignment.NewHandler(db, logger), adminOnly)
	enrollment.RegisterRoutes(api, enrollment.NewHandler(db, logger), studentOnly, adminOnly)

	videoService := video.NewService(db, deps.Store, deps.Cache, logger, cfg.Playback.URLTTL)
	video.RegisterRoutes(api, video.NewHandler(db, videoService, checker, logger), allUsers, staff)

	progress.RegisterRoutes(api, progress.NewHandler(db, checker, logger), allUsers)

	dashboardHandler := dashboard.NewHandler(db, checker, cfg.LogDir, logger)
	dashboard.RegisterRoutes(api, dashboardHandler, allUsers, instructorOnly, studentOnly, adminOnly)
}
