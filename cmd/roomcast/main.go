package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finnianb/roomcast/config"
	"github.com/finnianb/roomcast/internal/handlers"
	"github.com/finnianb/roomcast/internal/middleware"
	"github.com/finnianb/roomcast/internal/redis"
	"github.com/finnianb/roomcast/internal/relay"
	"github.com/finnianb/roomcast/internal/room"
	"github.com/finnianb/roomcast/internal/scheduler"
	"github.com/finnianb/roomcast/internal/store"
	"github.com/finnianb/roomcast/internal/stt"
	"github.com/finnianb/roomcast/internal/translate"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to Redis
	if err := redis.Connect(cfg.Redis); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	log.Println("Redis connection established")

	// Translation pipeline: LibreTranslate mirrors raced against MyMemory,
	// degrading to the original text when every provider fails.
	providers := make([]translate.Provider, 0, len(cfg.Translate.LibreBases)+1)
	for _, base := range cfg.Translate.LibreBases {
		providers = append(providers, translate.NewLibreProvider(base))
	}
	providers = append(providers, translate.NewMyMemoryProvider(cfg.Translate.MyMemoryURL))
	translator := translate.NewPipeline(cfg.Translate.Budget, providers...)

	transcriber := stt.NewClient(cfg.STT.BaseURL, cfg.STT.Model, cfg.STT.Timeout)

	// Room directory with the completed-room archive hook
	directory := room.NewDirectory(room.Options{
		EmptyGrace:    cfg.Rooms.EmptyGrace,
		MaxAge:        cfg.Rooms.MaxAge,
		SweepInterval: cfg.Rooms.SweepInterval,
		OnCompleted:   store.SaveSnapshot,
	})
	defer directory.Close()

	hub := relay.New(directory, translator, transcriber)

	// Meeting reminder sweep
	reminder := scheduler.NewReminder(hub, store.Meetings{}, scheduler.Options{})
	reminder.Start()
	defer reminder.Stop()

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	meetings := &handlers.MeetingHandlers{ClientBaseURL: cfg.ClientBaseURL}
	createLimiter := middleware.NewIPRateLimiter(10, 5, 10*time.Minute)

	// Meeting lifecycle API
	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))

		// Link minting is rate limited per IP
		apiGroup.POST("/create-meet", createLimiter.Middleware(), meetings.CreateMeeting)
		apiGroup.GET("/validate-meet/:meetingId", meetings.ValidateMeeting)

		// Scheduled meetings (requires JWT)
		auth := apiGroup.Group("", middleware.JWTAuth(cfg.JWTSecret))
		auth.POST("/schedule-meet", createLimiter.Middleware(), meetings.ScheduleMeeting)
		auth.GET("/scheduled-meeting/:meetingId", meetings.GetScheduledMeeting)
		auth.PUT("/scheduled-meeting/:meetingId", meetings.UpdateScheduledMeeting)
		auth.DELETE("/scheduled-meeting/:meetingId", meetings.DeleteScheduledMeeting)
		auth.GET("/scheduled-meetings/:hostEmail", meetings.ListScheduledMeetings)
	}

	// WebSocket signaling endpoint
	router.GET("/ws", hub.HandleWS)

	// Start server
	log.Printf("Starting roomcast server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
