package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/teamonboard/flowline-backend/internal/data/db"
	"github.com/teamonboard/flowline-backend/internal/data/repos"
	"github.com/teamonboard/flowline-backend/internal/handlers"
	"github.com/teamonboard/flowline-backend/internal/jobs"
	"github.com/teamonboard/flowline-backend/internal/middleware"
	"github.com/teamonboard/flowline-backend/internal/pkg/envutil"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
	"github.com/teamonboard/flowline-backend/internal/server"
	"github.com/teamonboard/flowline-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	jwtSecretKey := envutil.Str("JWT_SECRET_KEY", "")
	if jwtSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTTL := time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second
	refreshTTL := time.Duration(envutil.Int("REFRESH_TOKEN_TTL", 86400)) * time.Second

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	flowRepo := repos.NewFlowRepo(thePG, log)
	contentRepo := repos.NewFlowContentRepo(thePG, log)
	stepRepo := repos.NewFlowStepRepo(thePG, log)
	componentRepo := repos.NewComponentRepo(thePG, log)
	versionRepo := repos.NewFlowVersionRepo(thePG, log)
	snapshotRepo := repos.NewFlowSnapshotRepo(thePG, log)
	assignmentRepo := repos.NewAssignmentRepo(thePG, log)
	progressRepo := repos.NewProgressRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)
	achievementRepo := repos.NewAchievementRepo(thePG, log)

	// Event bus
	bus, err := services.NewRedisEventBus(log)
	if err != nil {
		log.Warn("Event bus unavailable, notifications stay queued in-db", "error", err)
		bus = nil
	}

	// Services
	log.Info("Setting up services...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, accessTTL, refreshTTL)
	userService := services.NewUserService(thePG, log, userRepo, userTokenRepo)
	flowService := services.NewFlowService(thePG, log, flowRepo, contentRepo, stepRepo, componentRepo, versionRepo)
	achievementService := services.NewAchievementService(thePG, log, achievementRepo, assignmentRepo, notificationRepo)
	assignmentService := services.NewAssignmentService(thePG, log, userRepo, flowRepo, contentRepo, versionRepo, snapshotRepo, assignmentRepo, progressRepo, notificationRepo, achievementService)
	progressService := services.NewProgressService(thePG, log, assignmentRepo, progressRepo, snapshotRepo, notificationRepo, achievementService)
	notificationService := services.NewNotificationService(thePG, log, notificationRepo, bus)
	maintenanceService := services.NewMaintenanceService(thePG, log, assignmentRepo, snapshotRepo, notificationRepo, userTokenRepo)

	// Handlers
	log.Info("Setting up handlers...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	flowHandler := handlers.NewFlowHandler(flowService)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService)
	progressHandler := handlers.NewProgressHandler(progressService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	achievementHandler := handlers.NewAchievementHandler(achievementService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Jobs
	scheduler := jobs.NewScheduler(log, maintenanceService, notificationService)
	if err := scheduler.Register(); err != nil {
		log.Fatal("Failed to register jobs", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:      authMiddleware,
		AuthHandler:         authHandler,
		UserHandler:         userHandler,
		FlowHandler:         flowHandler,
		AssignmentHandler:   assignmentHandler,
		ProgressHandler:     progressHandler,
		NotificationHandler: notificationHandler,
		AchievementHandler:  achievementHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
