package server

import (
	"github.com/gin-gonic/gin"
	turn "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/internal/domains/user"
	"github.com/tobenna/aria/internal/handlers"
	wshandler "github.com/tobenna/aria/internal/handlers/websocket"
	"github.com/tobenna/aria/pkg/Logger"
)

// Dependencies carries everything the route tree needs.
type Dependencies struct {
	TurnService turn.Service
	UserService user.UserService
	Logger      *Logger.Logger
}

func NewServerDependencies(turnService turn.Service, userService user.UserService, logger *Logger.Logger) Dependencies {
	return Dependencies{
		TurnService: turnService,
		UserService: userService,
		Logger:      logger,
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	r.Use(handlers.CORSMiddleware())

	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	userHandler := handlers.NewUserHandler(dep.UserService, dep.Logger)
	turnHandler := handlers.NewTurnHandler(dep.TurnService, dep.Logger)
	sessionHandler := handlers.NewSessionHandler(dep.TurnService, dep.Logger)
	audioWS := wshandler.NewHandler(dep.TurnService, dep.Logger)

	auth := r.Group("/auth")
	{
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
	}

	api := r.Group("/api/v1")
	{
		api.POST("/turns",
			handlers.OptionalAuthMiddleware(dep.UserService, dep.Logger),
			turnHandler.ProcessTurn)
		api.GET("/sessions/:id/turns", sessionHandler.GetTurns)
		api.GET("/me",
			handlers.AuthMiddleware(dep.UserService, dep.Logger),
			userHandler.Profile)
	}

	// chunked voice streaming
	r.GET("/ws/audio", audioWS.HandleAudio)
}
