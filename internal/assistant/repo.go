package assistant

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/biz-assistant/internal/common"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateConversation(ctx context.Context, companyID, userID uint64, title string) (*Conversation, error) {
	cid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	conv := &Conversation{
		ConversationID: cid,
		CompanyID:      companyID,
		UserID:         userID,
		Title:          title,
		Active:         true,
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation is scoped by (company, user): a conversation owned by
// anyone else reports gorm.ErrRecordNotFound, never forbidden.
func (r *Repo) GetConversation(ctx context.Context, conversationID string, companyID, userID uint64) (*Conversation, error) {
	var conv Conversation
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND company_id = ? AND user_id = ? AND active = ?",
			conversationID, companyID, userID, true).
		First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessage inserts a turn and bumps the conversation's updated_at.
func (r *Repo) AppendMessage(ctx context.Context, conversationID, role, content string, metadata *string) (*Message, error) {
	msg := &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("conversation_id = ?", conversationID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a conversation's turns in creation order,
// optionally excluding one message id (the just-inserted user turn).
func (r *Repo) ListMessages(ctx context.Context, conversationID string, excludeID uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC")
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) ListConversations(ctx context.Context, companyID, userID uint64) ([]Conversation, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND user_id = ? AND active = ?", companyID, userID, true).
		Order("updated_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

// DeleteConversation soft-deletes by flipping the active flag. Missing
// or foreign-owned ids report gorm.ErrRecordNotFound.
func (r *Repo) DeleteConversation(ctx context.Context, conversationID string, companyID, userID uint64) error {
	res := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ? AND company_id = ? AND user_id = ? AND active = ?",
			conversationID, companyID, userID, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Audit trail

func (r *Repo) CreateQueryAudit(ctx context.Context, a *QueryAudit) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repo) FinalizeQueryAudit(ctx context.Context, a *QueryAudit) error {
	return r.db.WithContext(ctx).Model(&QueryAudit{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"success":     a.Success,
			"result":      a.Result,
			"error":       a.Error,
			"duration_ms": a.DurationMS,
		}).Error
}

// Job CRUD

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job; if the idempotency key
// already exists for this user, the existing job wins.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
