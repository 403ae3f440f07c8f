package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/infra/config"
	"campusmarket/internal/infra/obs"
)

type ChatHTTP interface {
	ListConversations(c *gin.Context)
	StartConversation(c *gin.Context)
	DeleteConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	Unread(c *gin.Context)
	MarkSeen(c *gin.Context)
}

type OrderHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	UpdateStatus(c *gin.Context)
}

type StreamHTTP interface {
	Stream(c *gin.Context)
}

type Handlers struct {
	Chat           ChatHTTP
	Orders         OrderHTTP
	Stream         StreamHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the routing table; NewServer wraps it with the listen
// address.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", deviceHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Chat != nil {
		conv := api.Group("/conversations")
		conv.GET("", h.Chat.ListConversations)
		conv.POST("", h.Chat.StartConversation)
		conv.DELETE("/:id", h.Chat.DeleteConversation)
		conv.GET("/:id/messages", h.Chat.ListMessages)
		conv.POST("/:id/messages", h.Chat.SendMessage)
		api.GET("/unread", h.Chat.Unread)
		api.POST("/unread/seen", h.Chat.MarkSeen)
	}
	if h.Orders != nil {
		orders := api.Group("/orders")
		orders.POST("", h.Orders.Create)
		orders.GET("", h.Orders.List)
		orders.GET("/:id", h.Orders.Get)
		orders.PATCH("/:id/status", h.Orders.UpdateStatus)
	}
	if h.Stream != nil {
		api.GET("/stream", h.Stream.Stream)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
