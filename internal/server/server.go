package server

import (
	"net/http"

	"find-the-impostor/internal/config"
	"find-the-impostor/internal/room"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	service  *room.Service
	manager  *room.Manager
	sessions *sessionIssuer
	ws       *wsHub
	cfg      config.Config
	logger   *zap.Logger
}

func New(service *room.Service, manager *room.Manager, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerValidators()
	return &Server{
		service:  service,
		manager:  manager,
		sessions: newSessionIssuer(cfg.SessionSecret, cfg.SessionTTL),
		ws:       newWSHub(manager, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/sessions", s.handleCreateSession)
	router.GET("/api/rooms/:code/qr.png", s.handleRoomQR)
	router.GET("/ws/rooms/:code", s.requireGuest(), s.handleWebsocket)

	api := router.Group("/api", s.requireGuest())
	api.POST("/rooms", s.handleCreateRoom)
	api.GET("/rooms/:code", s.handleGetRoom)
	api.GET("/rooms/:code/events", s.handleEvents)
	api.POST("/rooms/:code/join", s.handleJoin)
	api.POST("/rooms/:code/leave", s.handleLeave)
	api.POST("/rooms/:code/ready", s.handleReady)
	api.POST("/rooms/:code/settings", s.handleSettings)
	api.POST("/rooms/:code/bots", s.handleAddBot)
	api.DELETE("/rooms/:code/bots", s.handleRemoveBot)
	api.POST("/rooms/:code/kick", s.handleKick)
	api.POST("/rooms/:code/start", s.handleStart)
	api.POST("/rooms/:code/clues", s.handleClue)
	api.POST("/rooms/:code/votes", s.handleVote)
	api.POST("/rooms/:code/resolve", s.handleResolve)
	api.POST("/rooms/:code/next", s.handleNextRound)
	return router
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.ws.CloseAll()
}
