package assistant

import (
	"context"
	"fmt"
	"log"

	"github.com/suPer8Hu/biz-assistant/internal/ai"
	"github.com/suPer8Hu/biz-assistant/internal/common"
)

// Service drives the bounded model-and-query exchange and owns every
// Conversation/Message write.
type Service struct {
	repo     *Repo
	exec     *Executor
	registry *ai.Registry

	providerName string
	model        string

	maxQueryIterations int
	rowFeedbackLimit   int
}

func NewService(repo *Repo, exec *Executor, registry *ai.Registry, providerName, model string, maxQueryIterations, rowFeedbackLimit int) *Service {
	if maxQueryIterations <= 0 || maxQueryIterations > 10 {
		maxQueryIterations = 3
	}
	if rowFeedbackLimit <= 0 || rowFeedbackLimit > 100 {
		rowFeedbackLimit = 20
	}
	return &Service{
		repo:               repo,
		exec:               exec,
		registry:           registry,
		providerName:       providerName,
		model:              model,
		maxQueryIterations: maxQueryIterations,
		rowFeedbackLimit:   rowFeedbackLimit,
	}
}

// Process runs one user turn through the model, executing at most
// maxQueryIterations queries. It returns the final answer and the full
// transcript it built; persistence of the user and assistant turns is
// the caller's business.
func (s *Service) Process(ctx context.Context, userText string, prior []ai.Message, userID, companyID uint64) (string, []ai.Message) {
	msgs := make([]ai.Message, 0, len(prior)+2)
	msgs = append(msgs, ai.Message{Role: RoleSystem, Content: systemPrompt})
	msgs = append(msgs, prior...)
	msgs = append(msgs, ai.Message{Role: RoleUser, Content: userText})

	provider, err := s.registry.Get(ctx, s.providerName, s.model)
	if err != nil {
		log.Printf("assistant provider lookup failed provider=%s err=%v", s.providerName, err)
		return fmt.Sprintf("Error communicating with the assistant: %v", err), msgs
	}

	for iteration := 1; iteration <= s.maxQueryIterations; iteration++ {
		reply := s.chat(ctx, provider, msgs)

		query, found := ExtractQuery(reply)
		if !found {
			return reply, msgs
		}

		log.Printf("assistant executing query iteration=%d company=%d user=%d", iteration, companyID, userID)

		msgs = append(msgs, ai.Message{Role: RoleAssistant, Content: reply})

		cols, rows, execErr := s.exec.Execute(ctx, query, companyID, userID, nil)
		if execErr != nil {
			msgs = append(msgs, ai.Message{
				Role:    RoleUser,
				Content: fmt.Sprintf(correctionPromptFmt, execErr.Error()),
			})
			continue
		}
		msgs = append(msgs, ai.Message{
			Role:    RoleUser,
			Content: RenderFeedback(cols, rows, s.rowFeedbackLimit),
		})
	}

	// Query budget spent: force a final answer. Any directive in this
	// last reply is returned verbatim, never executed.
	msgs = append(msgs, ai.Message{Role: RoleUser, Content: exhaustedPrompt})
	return s.chat(ctx, provider, msgs), msgs
}

// chat converts a model transport failure into a textual answer so the
// user turn is never lost. The call is not retried.
func (s *Service) chat(ctx context.Context, provider ai.Provider, msgs []ai.Message) string {
	reply, err := provider.Chat(ctx, msgs)
	if err != nil {
		log.Printf("model call failed: %v", err)
		return fmt.Sprintf("Error communicating with the assistant: %v", err)
	}
	return reply
}

// ChatTurn is the synchronous request path: resolve or create the
// conversation, persist the user turn, run the loop over prior history
// and persist the final answer.
func (s *Service) ChatTurn(ctx context.Context, userID, companyID uint64, conversationID string, newChat bool, text string) (*Conversation, *Message, *Message, error) {
	conv, userMsg, err := s.beginTurn(ctx, userID, companyID, conversationID, newChat, text)
	if err != nil {
		return nil, nil, nil, err
	}

	prior, err := s.repo.ListMessages(ctx, conv.ConversationID, userMsg.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	reply, _ := s.Process(ctx, text, toProviderMessages(prior), userID, companyID)

	asstMsg, err := s.repo.AppendMessage(ctx, conv.ConversationID, RoleAssistant, reply, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return conv, userMsg, asstMsg, nil
}

// EnqueueTurn is the async path: persist the user turn, then create (or
// reuse, per idempotency key) a job for the worker to complete.
func (s *Service) EnqueueTurn(ctx context.Context, userID, companyID uint64, conversationID string, newChat bool, text string, idempotencyKey *string) (*Job, bool, error) {
	conv, userMsg, err := s.beginTurn(ctx, userID, companyID, conversationID, newChat, text)
	if err != nil {
		return nil, false, err
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &Job{
		ID:             jobID,
		UserID:         userID,
		CompanyID:      companyID,
		ConversationID: conv.ConversationID,
		UserMessageID:  userMsg.ID,
		Prompt:         text,
		IdempotencyKey: idempotencyKey,
		Status:         JobQueued,
	}
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

// RunJob completes one queued turn. Used by the worker.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	prior, err := s.repo.ListMessages(ctx, j.ConversationID, j.UserMessageID)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	reply, _ := s.Process(ctx, j.Prompt, toProviderMessages(prior), j.UserID, j.CompanyID)

	asstMsg, err := s.repo.AppendMessage(ctx, j.ConversationID, RoleAssistant, reply, nil)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, asstMsg.ID)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

func (s *Service) ListConversations(ctx context.Context, userID, companyID uint64) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, companyID, userID)
}

func (s *Service) History(ctx context.Context, userID, companyID uint64, conversationID string) (*Conversation, []Message, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID, companyID, userID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ConversationID, 0)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *Service) DeleteConversation(ctx context.Context, userID, companyID uint64, conversationID string) error {
	return s.repo.DeleteConversation(ctx, conversationID, companyID, userID)
}

func (s *Service) beginTurn(ctx context.Context, userID, companyID uint64, conversationID string, newChat bool, text string) (*Conversation, *Message, error) {
	var (
		conv *Conversation
		err  error
	)
	if newChat || conversationID == "" {
		conv, err = s.repo.CreateConversation(ctx, companyID, userID, deriveTitle(text))
	} else {
		conv, err = s.repo.GetConversation(ctx, conversationID, companyID, userID)
	}
	if err != nil {
		return nil, nil, err
	}

	userMsg, err := s.repo.AppendMessage(ctx, conv.ConversationID, RoleUser, text, nil)
	if err != nil {
		return nil, nil, err
	}
	return conv, userMsg, nil
}

// deriveTitle uses the first 100 characters of the opening message.
func deriveTitle(text string) string {
	r := []rune(text)
	if len(r) > 100 {
		r = r[:100]
	}
	return string(r)
}

func toProviderMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
