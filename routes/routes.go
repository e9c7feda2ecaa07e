// routes/routes.go
package routes

import (
	"time"

	"lifeline/config"
	"lifeline/controllers"
	"lifeline/geoindex"
	"lifeline/middleware"
	"lifeline/repositories"
	"lifeline/services"
	"lifeline/utils"
	"lifeline/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// Deps bundles everything SetupRoutes wires together, so main can reuse the
// constructed services (worker startup, index rebuild).
type Deps struct {
	Repositories *Repositories
	Services     *Services
	Controllers  *Controllers
	Router       *gin.Engine
}

// SetupRoutes initializes all application routes
func SetupRoutes(cfg *config.Config, db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) *Deps {
	router := gin.New()

	// Initialize repositories
	repos := initializeRepositories(db)

	// Initialize services
	svcs := initializeServices(cfg, repos, hub)

	// The hub drives the coordinator for inbound frames and disconnects
	hub.SetDispatchService(svcs.Dispatch)

	// Initialize controllers
	ctrls := initializeControllers(cfg, svcs, redisClient, hub)

	// Global middleware
	setupGlobalMiddleware(cfg, router, redisClient)

	authMiddleware := middleware.NewAuthMiddleware(utils.NewJWTService(cfg.JWTSecret))

	// Setup route groups
	setupPublicRoutes(router, ctrls)
	setupAuthenticatedRoutes(cfg, router, ctrls, authMiddleware, redisClient)
	setupWebSocketRoutes(router, ctrls, authMiddleware)

	return &Deps{
		Repositories: repos,
		Services:     svcs,
		Controllers:  ctrls,
		Router:       router,
	}
}

// Repositories initialization
type Repositories struct {
	Emergency *repositories.EmergencyRepository
	Ambulance *repositories.AmbulanceRepository
}

func initializeRepositories(db *mongo.Database) *Repositories {
	return &Repositories{
		Emergency: repositories.NewEmergencyRepository(db),
		Ambulance: repositories.NewAmbulanceRepository(db),
	}
}

// Services initialization
type Services struct {
	Dispatch  *services.DispatchService
	Ambulance *services.AmbulanceService
}

func initializeServices(cfg *config.Config, repos *Repositories, hub *websocket.Hub) *Services {
	dispatchConfig := services.DispatchConfig{
		RadiusMeters:  float64(cfg.DispatchRadiusMeters),
		MaxCandidates: cfg.DispatchMaxCandidates,
	}

	return &Services{
		Dispatch: services.NewDispatchService(
			repos.Emergency,
			repos.Ambulance,
			geoindex.New(),
			geoindex.New(),
			hub,
			dispatchConfig,
		),
		Ambulance: services.NewAmbulanceService(repos.Ambulance),
	}
}

// Controllers initialization
type Controllers struct {
	Dispatch  *controllers.DispatchController
	Ambulance *controllers.AmbulanceController
	WebSocket *controllers.WebSocketController
	Health    *controllers.HealthController
}

func initializeControllers(cfg *config.Config, svcs *Services, redisClient *redis.Client, hub *websocket.Hub) *Controllers {
	return &Controllers{
		Dispatch:  controllers.NewDispatchController(svcs.Dispatch),
		Ambulance: controllers.NewAmbulanceController(svcs.Ambulance, svcs.Dispatch),
		WebSocket: controllers.NewWebSocketController(hub),
		Health:    controllers.NewHealthController(redisClient, "1.0.0"),
	}
}

// Global middleware setup
func setupGlobalMiddleware(cfg *config.Config, router *gin.Engine, redisClient *redis.Client) {
	errorHandler := middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger())

	router.Use(errorHandler.Handle())
	router.Use(middleware.LoggerMiddleware(middleware.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))
	router.Use(middleware.CORSMiddleware(cfg.Environment))
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, ctrls *Controllers) {
	router.GET("/health", ctrls.Health.Health)
}

// Authenticated routes (requires valid JWT token)
func setupAuthenticatedRoutes(cfg *config.Config, router *gin.Engine, ctrls *Controllers, authMiddleware *middleware.AuthMiddleware, redisClient *redis.Client) {
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Redis:     redisClient,
		Requests:  cfg.RateLimitRequest,
		Window:    time.Duration(cfg.RateLimitWindow) * time.Minute,
		KeyPrefix: "rate_limit:api",
	}, middleware.StrategyUserOrIP)

	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	api.Use(rateLimiter.Middleware())

	emergencies := api.Group("/emergencies")
	{
		emergencies.POST("", ctrls.Dispatch.CreateEmergency)
		emergencies.GET("/nearby", ctrls.Dispatch.GetNearbyEmergencies)
		emergencies.GET("/:emergencyId", ctrls.Dispatch.GetEmergency)
		emergencies.POST("/:emergencyId/accept", authMiddleware.RequireRole("ambulance"), ctrls.Dispatch.AcceptEmergency)
		emergencies.POST("/:emergencyId/complete", authMiddleware.RequireRole("ambulance"), ctrls.Dispatch.CompleteEmergency)
		emergencies.POST("/:emergencyId/cancel", ctrls.Dispatch.CancelEmergency)
	}

	ambulances := api.Group("/ambulances")
	{
		ambulances.POST("", ctrls.Ambulance.RegisterAmbulance)
		ambulances.GET("/:ambulanceId", ctrls.Ambulance.GetAmbulance)
		ambulances.PUT("/status", authMiddleware.RequireRole("ambulance"), ctrls.Ambulance.UpdateStatus)
		ambulances.PUT("/location", authMiddleware.RequireRole("ambulance"), ctrls.Ambulance.ReportLocation)
	}
}

// WebSocket routes
func setupWebSocketRoutes(router *gin.Engine, ctrls *Controllers, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/ws", authMiddleware.RequireAuth(), ctrls.WebSocket.HandleConnection)
	router.GET("/ws/stats", authMiddleware.RequireAuth(), ctrls.WebSocket.GetStats)
}
