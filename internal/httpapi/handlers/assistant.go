package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/biz-assistant/internal/common"
	"github.com/suPer8Hu/biz-assistant/internal/httpapi/middleware"
	"github.com/suPer8Hu/biz-assistant/internal/models"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// profileCompany resolves the caller to exactly one company. A missing
// profile is a permission problem, distinct from any not-found below.
func (h *Handler) profileCompany(c *gin.Context, userID uint64) (*models.Profile, bool) {
	var profile models.Profile
	if err := h.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusForbidden, 40300, "user has no profile or company")
			return nil, false
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return nil, false
	}
	return &profile, true
}

func (h *Handler) allowTurn(c *gin.Context, userID uint64) bool {
	if h.Redis == nil {
		return true
	}
	allowed, err := h.Redis.AllowAssistantTurn(c.Request.Context(), userID,
		h.Cfg.AssistantRateLimitPerMinute, time.Minute)
	if err != nil {
		// rate limiter outage must not take the assistant down
		log.Printf("rate limit check failed user=%d err=%v", userID, err)
		return true
	}
	if !allowed {
		common.Fail(c, http.StatusTooManyRequests, 42900, "too many assistant requests")
		return false
	}
	return true
}

type chatReq struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
	NewChat        bool   `json:"new_chat"`
}

func (h *Handler) Chat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if !h.allowTurn(c, uid) {
		return
	}
	profile, okk := h.profileCompany(c, uid)
	if !okk {
		return
	}

	conv, userMsg, asstMsg, err := h.Assistant.ChatTurn(c.Request.Context(),
		uid, profile.CompanyID, req.ConversationID, req.NewChat, req.Message)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "conversation not found")
			return
		}
		log.Printf("chat turn failed user=%d company=%d err=%v", uid, profile.CompanyID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to process message")
		return
	}

	common.OK(c, gin.H{
		"conversation_id":   conv.ConversationID,
		"user_message":      userMsg,
		"assistant_message": asstMsg,
		"reply":             asstMsg.Content,
	})
}

func (h *Handler) ChatAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async processing unavailable")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	if !h.allowTurn(c, uid) {
		return
	}
	profile, okk := h.profileCompany(c, uid)
	if !okk {
		return
	}

	job, created, err := h.Assistant.EnqueueTurn(c.Request.Context(),
		uid, profile.CompanyID, req.ConversationID, req.NewChat, req.Message, idempoKeyPtr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "conversation not found")
			return
		}
		log.Printf("enqueue turn failed user=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			log.Printf("publish job failed user=%d job=%s err=%v", uid, job.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{
		"job_id":          job.ID,
		"conversation_id": job.ConversationID,
	})
}

func (h *Handler) GetAssistantJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")

	j, err := h.Assistant.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"conversation_id":   j.ConversationID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	profile, okk := h.profileCompany(c, uid)
	if !okk {
		return
	}

	convs, err := h.Assistant.ListConversations(c.Request.Context(), uid, profile.CompanyID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list conversations")
		return
	}
	common.OK(c, gin.H{"conversations": convs})
}

func (h *Handler) ConversationHistory(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	profile, okk := h.profileCompany(c, uid)
	if !okk {
		return
	}

	conv, msgs, err := h.Assistant.History(c.Request.Context(), uid, profile.CompanyID, c.Param("conversation_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load history")
		return
	}
	common.OK(c, gin.H{
		"conversation": conv,
		"messages":     msgs,
	})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	profile, okk := h.profileCompany(c, uid)
	if !okk {
		return
	}

	err := h.Assistant.DeleteConversation(c.Request.Context(), uid, profile.CompanyID, c.Param("conversation_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to delete conversation")
		return
	}
	common.OK(c, gin.H{"deleted": true})
}
