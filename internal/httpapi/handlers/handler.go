package handlers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/suPer8Hu/biz-assistant/internal/ai"
	"github.com/suPer8Hu/biz-assistant/internal/assistant"
	"github.com/suPer8Hu/biz-assistant/internal/config"
	"github.com/suPer8Hu/biz-assistant/internal/store/rabbitmq"
	"github.com/suPer8Hu/biz-assistant/internal/store/redisstore"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Redis     *redisstore.Store
	Rabbit    *rabbitmq.Publisher
	Assistant *assistant.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *Handler {
	repo := assistant.NewRepo(db)
	exec := assistant.NewExecutor(db, repo)

	reg := ai.NewRegistry()
	reg.Register("groq", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GroqModel
		}
		return ai.NewGroqProvider(cfg.GroqBaseURL, cfg.GroqAPIKey, m), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	model := cfg.GroqModel
	if strings.EqualFold(cfg.AIProvider, "ollama") {
		model = cfg.OllamaModel
	}

	svc := assistant.NewService(repo, exec, reg, cfg.AIProvider, model,
		cfg.AssistantMaxQueryIterations, cfg.AssistantRowFeedbackLimit)

	return &Handler{
		DB:        db,
		Cfg:       cfg,
		Redis:     rds,
		Rabbit:    pub,
		Assistant: svc,
	}
}
