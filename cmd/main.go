package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"crowdsource-backend/internal/auth"
	"crowdsource-backend/internal/config"
	"crowdsource-backend/internal/database"
	"crowdsource-backend/internal/handlers"
	"crowdsource-backend/internal/jobs"
	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/services"
	"crowdsource-backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Initialize the upload sink
	sink := storage.NewHTTPSink(cfg.Storage.BaseURL, cfg.Storage.APIKey)

	// Initialize services
	authService := services.NewAuthService(db)
	userService := services.NewUserService(db)
	projectService := services.NewProjectService(db)
	taskService := services.NewTaskService(db)
	allocatorService := services.NewAllocatorService(db)
	assignmentService := services.NewReviewerAssignmentService(db)
	paymentService := services.NewPaymentService(db)
	reviewService := services.NewReviewService(db, paymentService)
	submissionService := services.NewSubmissionService(db, sink, assignmentService)
	analyticsService := services.NewAnalyticsService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	projectHandler := handlers.NewProjectHandler(projectService, allocatorService, assignmentService)
	taskHandler := handlers.NewTaskHandler(taskService)
	submissionHandler := handlers.NewSubmissionHandler(submissionService)
	reviewHandler := handlers.NewReviewHandler(reviewService, paymentService)
	statsHandler := handlers.NewStatsHandler(analyticsService)

	// Start the platform snapshot job
	snapshotInterval, err := time.ParseDuration(cfg.App.StatsSnapshotInterval)
	if err != nil {
		log.Printf("Invalid STATS_SNAPSHOT_INTERVAL %q, defaulting to 6h", cfg.App.StatsSnapshotInterval)
		snapshotInterval = 6 * time.Hour
	}
	snapshotJob := jobs.NewStatsSnapshotJob(db)
	snapshotJob.Start(snapshotInterval)
	log.Println("Platform snapshot job started")

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/api/v1/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/signin", authHandler.Signin)
	}

	// API routes (protected)
	api := router.Group("/api/v1")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		userRoutes := api.Group("/users")
		{
			userRoutes.GET("/me", userHandler.GetProfile)
			userRoutes.GET("", auth.RequireRoles(models.RoleAdmin), userHandler.ListUsers)
			userRoutes.GET("/:id", userHandler.GetUser)
			userRoutes.PATCH("/:id", auth.RequireRoles(models.RoleAdmin), userHandler.UpdateUser)
			userRoutes.PUT("/:id/languages", userHandler.UpdateLanguages)
			userRoutes.PUT("/:id/dialects", userHandler.UpdateDialects)
			userRoutes.DELETE("/:id", auth.RequireRoles(models.RoleAdmin), userHandler.DeleteUser)
			userRoutes.POST("/import", auth.RequireRoles(models.RoleAdmin), userHandler.BulkImportUsers)
		}

		// Project endpoints
		projectRoutes := api.Group("/projects")
		{
			projectRoutes.GET("", projectHandler.ListProjects)
			projectRoutes.POST("", auth.RequireRoles(models.RoleAdmin), projectHandler.CreateProject)
			projectRoutes.GET("/:id", projectHandler.GetProject)
			projectRoutes.PATCH("/:id", auth.RequireRoles(models.RoleAdmin), projectHandler.UpdateProject)

			// Prompts
			projectRoutes.GET("/:id/prompts", projectHandler.ListPrompts)
			projectRoutes.POST("/:id/prompts", auth.RequireRoles(models.RoleAdmin), projectHandler.CreatePrompt)

			// Reviewer pool
			projectRoutes.GET("/:id/reviewers", projectHandler.ListReviewers)
			projectRoutes.POST("/:id/reviewers", auth.RequireRoles(models.RoleAdmin), projectHandler.AddReviewers)
			projectRoutes.DELETE("/:id/reviewers/:reviewer", auth.RequireRoles(models.RoleAdmin), projectHandler.RemoveReviewer)

			// Allocation
			projectRoutes.POST("/:id/allocate", auth.RequireRoles(models.RoleAdmin), projectHandler.Allocate)
			projectRoutes.POST("/:id/allocate/bulk", auth.RequireRoles(models.RoleAdmin), projectHandler.BulkAllocate)

			// Reviewer assignment
			projectRoutes.POST("/:id/assign", auth.RequireRoles(models.RoleAdmin, models.RoleSuperReviewer), projectHandler.AssignReviewer)
			projectRoutes.POST("/:id/assign/bulk", auth.RequireRoles(models.RoleAdmin, models.RoleSuperReviewer), projectHandler.BulkAssignReviewers)

			// Submissions and reviews
			projectRoutes.POST("/:id/submissions", submissionHandler.CreateSubmission)
			projectRoutes.POST("/:id/submissions/:sid/review",
				auth.RequireRoles(models.RoleReviewer, models.RoleSuperReviewer), reviewHandler.SubmitReview)
			projectRoutes.PATCH("/:id/submissions/:sid/review",
				auth.RequireRoles(models.RoleReviewer, models.RoleSuperReviewer), reviewHandler.OverrideReview)
		}

		// Task endpoints
		taskRoutes := api.Group("/tasks")
		{
			taskRoutes.GET("", taskHandler.ListTasks)
			taskRoutes.GET("/:id", taskHandler.GetTask)
			taskRoutes.PATCH("/:id", auth.RequireRoles(models.RoleAdmin), taskHandler.UpdateTask)
			taskRoutes.DELETE("/:id", auth.RequireRoles(models.RoleAdmin), taskHandler.DeleteTask)
		}

		// Submission read endpoints
		api.GET("/submissions", submissionHandler.ListSubmissions)
		api.GET("/submissions/:id", submissionHandler.GetSubmission)
		api.POST("/submissions/:sid/reward", auth.RequireRoles(models.RoleAdmin), reviewHandler.RewardAgent)

		// Reviewer worklist
		reviewerRoutes := api.Group("/reviewers")
		{
			reviewerRoutes.GET("/:reviewer/queue", reviewHandler.ReviewerQueue)
			reviewerRoutes.GET("/:reviewer/history", reviewHandler.ReviewerHistory)
		}

		// Analytics endpoints
		statsRoutes := api.Group("/stats")
		{
			statsRoutes.GET("/contributor", statsHandler.ContributorStats)
			statsRoutes.GET("/reviewer", statsHandler.ReviewerStats)
			statsRoutes.GET("/platform", auth.RequireRoles(models.RoleAdmin), statsHandler.PlatformStats)
			statsRoutes.GET("/daily", statsHandler.DailyStats)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
