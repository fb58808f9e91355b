package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/biz-assistant/internal/common"
	"github.com/suPer8Hu/biz-assistant/internal/config"
	"github.com/suPer8Hu/biz-assistant/internal/httpapi/handlers"
	"github.com/suPer8Hu/biz-assistant/internal/httpapi/middleware"
	"github.com/suPer8Hu/biz-assistant/internal/store/rabbitmq"
	"github.com/suPer8Hu/biz-assistant/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, rds, pub)

	r.GET("/ping", h.Ping)

	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Assistant (JWT required)
	authGroup.POST("/assistant/chat", h.Chat)
	authGroup.POST("/assistant/chat/async", h.ChatAsync)
	authGroup.GET("/assistant/jobs/:job_id", h.GetAssistantJob)
	authGroup.GET("/assistant/conversations", h.ListConversations)
	authGroup.GET("/assistant/conversations/:conversation_id/messages", h.ConversationHistory)
	authGroup.DELETE("/assistant/conversations/:conversation_id", h.DeleteConversation)

	return r
}
