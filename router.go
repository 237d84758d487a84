package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/helphub-api/config"
	"github.com/kendall-kelly/helphub-api/controllers"
	"github.com/kendall-kelly/helphub-api/middleware"
	"github.com/kendall-kelly/helphub-api/services"
)

// setupRouter builds the gin engine with every API route mounted under /api/v1
func setupRouter(app *application) (*gin.Engine, error) {
	authenticate, err := middleware.EnsureValidToken(app.cfg, app.log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up authentication: %w", err)
	}
	volunteerOnly := []gin.HandlerFunc{authenticate, middleware.RequireRole(services.RoleVolunteer)}
	otpLimiter := middleware.NewRateLimiter(app.cfg.OtpRateLimitPerMinute, app.cfg.OtpRateLimitBurst, app.log)

	requests := controllers.NewRequestController(app.lifecycle, app.log)
	otp := controllers.NewOtpController(app.lifecycle, app.log)
	auth := controllers.NewAuthController(app.volunteers, app.log)
	volunteers := controllers.NewVolunteerController(app.volunteers, app.log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(app.log))
	router.Use(cors.New(corsConfig(app.cfg)))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", auth.Register)
			authRoutes.POST("/login", auth.Login)
			authRoutes.GET("/me", append(volunteerOnly, auth.Me)...)
			authRoutes.PUT("/profile", append(volunteerOnly, auth.UpdateProfile)...)
		}

		requestRoutes := v1.Group("/requests")
		{
			requestRoutes.POST("", requests.CreateRequest)
			requestRoutes.GET("/:id", requests.GetRequest)
			requestRoutes.PUT("/:id/cancel", requests.CancelRequest)
			requestRoutes.POST("/:id/feedback", requests.SubmitFeedback)
			requestRoutes.PUT("/:id/assign", append(volunteerOnly, requests.AssignVolunteer)...)
			requestRoutes.PUT("/:id/start", append(volunteerOnly, requests.StartService)...)
		}

		volunteerRoutes := v1.Group("/volunteers")
		{
			volunteerRoutes.GET("/available", requests.ListAvailableVolunteers)
			volunteerRoutes.GET("/:id", volunteers.GetVolunteer)
		}

		otpRoutes := v1.Group("/otp", otpLimiter.Limit())
		{
			otpRoutes.POST("/generate", otp.Generate)
			otpRoutes.POST("/resend", otp.Resend)
			otpRoutes.POST("/verify", otp.Verify)
			otpRoutes.GET("/status/:requestId", otp.Status)
		}

		dashboard := v1.Group("/dashboard", volunteerOnly...)
		{
			dashboard.GET("/requests", volunteers.OpenRequests)
			dashboard.GET("/jobs", volunteers.MyJobs)
			dashboard.PUT("/availability", volunteers.UpdateAvailability)
			dashboard.GET("/stats", volunteers.Stats)
			dashboard.PUT("/profile-image", volunteers.UploadProfileImage)
		}
	}

	return router, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			return corsCfg
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		return corsCfg
	}
	corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	corsCfg.AllowCredentials = true
	return corsCfg
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Help Hub API is running",
	})
}

// databaseStatus checks database connectivity and lists the tables
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not initialized",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.WithContext(c.Request.Context()).Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
