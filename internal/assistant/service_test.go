package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/biz-assistant/internal/ai"
	"github.com/suPer8Hu/biz-assistant/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Conversation{}, &Message{}, &QueryAudit{}, &Job{}, &models.Client{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// scriptedProvider replays canned replies and records every transcript
// it was called with.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   [][]ai.Message
	err     error
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs []ai.Message) (string, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]ai.Message(nil), msgs...))
	if p.err != nil {
		return "", p.err
	}
	if len(p.replies) == 0 {
		return "done", nil
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) call(i int) []ai.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

func newTestService(t *testing.T, db *gorm.DB, prov ai.Provider) *Service {
	t.Helper()
	repo := NewRepo(db)
	exec := NewExecutor(db, repo)
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return prov, nil
	})
	return NewService(repo, exec, reg, "fake", "test-model", 3, 20)
}

func TestChatTurn_PlainAnswerPersistsBothTurns(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{replies: []string{"Hello, how can I help?"}}
	svc := newTestService(t, db, prov)

	conv, userMsg, asstMsg, err := svc.ChatTurn(context.Background(), 11, 1001, "", false, "Hi there")
	if err != nil {
		t.Fatalf("chat turn: %v", err)
	}
	if conv.Title != "Hi there" {
		t.Fatalf("title should derive from first message, got %q", conv.Title)
	}
	if userMsg.Role != RoleUser || userMsg.Content != "Hi there" {
		t.Fatalf("unexpected user turn: %+v", userMsg)
	}
	if asstMsg.Role != RoleAssistant || asstMsg.Content != "Hello, how can I help?" {
		t.Fatalf("unexpected assistant turn: %+v", asstMsg)
	}

	var msgs []Message
	if err := db.Where("conversation_id = ?", conv.ConversationID).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(msgs))
	}
	if prov.callCount() != 1 {
		t.Fatalf("expected 1 model call, got %d", prov.callCount())
	}

	// transcript starts with the system preamble
	first := prov.call(0)
	if first[0].Role != RoleSystem {
		t.Fatalf("expected system turn first, got %q", first[0].Role)
	}
	if first[len(first)-1].Content != "Hi there" {
		t.Fatalf("expected user turn last, got %q", first[len(first)-1].Content)
	}
}

func TestChatTurn_QueryThenAnswer(t *testing.T) {
	db := openTestDB(t)

	for _, c := range []models.Client{
		{CompanyID: 1002, FirstName: "Ada", LastName: "Lovelace", Active: true},
		{CompanyID: 1002, FirstName: "Grace", LastName: "Hopper", Active: true},
		{CompanyID: 1002, FirstName: "Edsger", LastName: "Dijkstra", Active: true},
	} {
		cc := c
		if err := db.Create(&cc).Error; err != nil {
			t.Fatalf("seed client: %v", err)
		}
	}

	prov := &scriptedProvider{replies: []string{
		`[QUERY: "SELECT COUNT(*) AS total FROM clients WHERE company_id = 1002"]`,
		"You have 3 active clients.",
	}}
	svc := newTestService(t, db, prov)

	conv, _, asstMsg, err := svc.ChatTurn(context.Background(), 12, 1002, "", false, "How many active clients do I have?")
	if err != nil {
		t.Fatalf("chat turn: %v", err)
	}
	if asstMsg.Content != "You have 3 active clients." {
		t.Fatalf("unexpected final answer: %q", asstMsg.Content)
	}
	if prov.callCount() != 2 {
		t.Fatalf("expected 2 model calls, got %d", prov.callCount())
	}

	// second call must carry the assistant directive turn plus the row feedback
	second := prov.call(1)
	feedback := second[len(second)-1]
	if feedback.Role != RoleUser {
		t.Fatalf("feedback must be injected as a user turn, got %q", feedback.Role)
	}
	if !strings.Contains(feedback.Content, `"total": 3`) {
		t.Fatalf("feedback should carry the count row: %q", feedback.Content)
	}
	if !strings.Contains(feedback.Content, "1 rows in total") {
		t.Fatalf("feedback should report the true total: %q", feedback.Content)
	}

	var audits []QueryAudit
	if err := db.Where("company_id = ? AND user_id = ?", 1002, 12).Find(&audits).Error; err != nil {
		t.Fatalf("query audits: %v", err)
	}
	if len(audits) != 1 || !audits[0].Success {
		t.Fatalf("expected 1 successful audit, got %+v", audits)
	}

	// only the user turn and the final answer are persisted
	var msgs []Message
	if err := db.Where("conversation_id = ?", conv.ConversationID).Find(&msgs).Error; err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(msgs))
	}
}

func TestProcess_RejectedQueryFedBackAsCorrection(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{replies: []string{
		`[QUERY: "DELETE FROM clients"]`,
		"Understood, I cannot do that.",
	}}
	svc := newTestService(t, db, prov)

	answer, transcript := svc.Process(context.Background(), "wipe my clients", nil, 13, 1003)
	if answer != "Understood, I cannot do that." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if prov.callCount() != 2 {
		t.Fatalf("expected 2 model calls, got %d", prov.callCount())
	}

	last := transcript[len(transcript)-1]
	if last.Role != RoleUser || !strings.Contains(last.Content, "operation not allowed: DELETE") {
		t.Fatalf("correction turn should name the keyword: %+v", last)
	}

	var audits []QueryAudit
	if err := db.Where("company_id = ? AND user_id = ?", 1003, 13).Find(&audits).Error; err != nil {
		t.Fatalf("query audits: %v", err)
	}
	if len(audits) != 1 || audits[0].Success {
		t.Fatalf("expected 1 failed audit, got %+v", audits)
	}
}

func TestProcess_IterationCapForcesFinalAnswer(t *testing.T) {
	db := openTestDB(t)

	directive := `[QUERY: "SELECT first_name FROM clients WHERE company_id = 1004"]`
	prov := &scriptedProvider{replies: []string{directive, directive, directive, directive}}
	svc := newTestService(t, db, prov)

	answer, transcript := svc.Process(context.Background(), "keep digging", nil, 14, 1004)

	// 3 query-triggering calls plus exactly one forced final call
	if prov.callCount() != 4 {
		t.Fatalf("expected 4 model calls, got %d", prov.callCount())
	}
	// the final reply still contains a directive and is returned verbatim
	if answer != directive {
		t.Fatalf("final reply must be returned verbatim: %q", answer)
	}

	var audits []QueryAudit
	if err := db.Where("company_id = ? AND user_id = ?", 1004, 14).Find(&audits).Error; err != nil {
		t.Fatalf("query audits: %v", err)
	}
	if len(audits) != 3 {
		t.Fatalf("the forced final directive must not execute; expected 3 audits, got %d", len(audits))
	}

	forced := transcript[len(transcript)-1]
	if forced.Role != RoleUser || !strings.Contains(forced.Content, "Do NOT request more data") {
		t.Fatalf("expected the exhausted prompt last: %+v", forced)
	}
}

func TestProcess_ZeroRowFeedback(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{replies: []string{
		`[QUERY: "SELECT first_name FROM clients WHERE company_id = 1005"]`,
		"No clients found.",
	}}
	svc := newTestService(t, db, prov)

	answer, _ := svc.Process(context.Background(), "list my clients", nil, 15, 1005)
	if answer != "No clients found." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	second := prov.call(1)
	feedback := second[len(second)-1].Content
	if !strings.Contains(feedback, "0 rows") {
		t.Fatalf("zero-row feedback expected: %q", feedback)
	}
}

func TestProcess_ModelFailureBecomesTextualAnswer(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{err: errors.New("connection refused")}
	svc := newTestService(t, db, prov)

	answer, _ := svc.Process(context.Background(), "hello", nil, 16, 1006)
	if !strings.Contains(answer, "connection refused") {
		t.Fatalf("transport failure should surface as text: %q", answer)
	}
	if prov.callCount() != 1 {
		t.Fatalf("transport failure must not be retried, got %d calls", prov.callCount())
	}
}

func TestHistory_CrossTenantIsNotFound(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{replies: []string{"hi"}}
	svc := newTestService(t, db, prov)

	conv, _, _, err := svc.ChatTurn(context.Background(), 17, 1007, "", false, "mine")
	if err != nil {
		t.Fatalf("chat turn: %v", err)
	}

	// same conversation id, different company
	if _, _, err := svc.History(context.Background(), 17, 2007, conv.ConversationID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not-found for foreign tenant, got %v", err)
	}
	// different user in the same company
	if _, _, err := svc.History(context.Background(), 99, 1007, conv.ConversationID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not-found for foreign user, got %v", err)
	}
	// owner still sees it
	if _, msgs, err := svc.History(context.Background(), 17, 1007, conv.ConversationID); err != nil || len(msgs) != 2 {
		t.Fatalf("owner history failed: %v (%d msgs)", err, len(msgs))
	}
}

func TestDeleteConversation_SoftDelete(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{replies: []string{"hi"}}
	svc := newTestService(t, db, prov)

	conv, _, _, err := svc.ChatTurn(context.Background(), 18, 1008, "", false, "bye soon")
	if err != nil {
		t.Fatalf("chat turn: %v", err)
	}

	if err := svc.DeleteConversation(context.Background(), 18, 1008, conv.ConversationID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// gone for reads
	if _, _, err := svc.History(context.Background(), 18, 1008, conv.ConversationID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("deleted conversation should be not-found, got %v", err)
	}
	if err := svc.DeleteConversation(context.Background(), 18, 1008, conv.ConversationID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("double delete should be not-found, got %v", err)
	}
	// but the row survives with active=false
	var raw Conversation
	if err := db.Where("conversation_id = ?", conv.ConversationID).First(&raw).Error; err != nil {
		t.Fatalf("raw lookup: %v", err)
	}
	if raw.Active {
		t.Fatal("soft delete must flip the active flag")
	}
}

func TestAppendMessage_BumpsConversationUpdatedAt(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	conv, err := repo.CreateConversation(context.Background(), 1009, 19, "bump check")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	before := conv.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	if _, err := repo.AppendMessage(context.Background(), conv.ConversationID, RoleUser, "tick", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded, err := repo.GetConversation(context.Background(), conv.ConversationID, 1009, 19)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.UpdatedAt.After(before) {
		t.Fatalf("updated_at should advance: before=%v after=%v", before, reloaded.UpdatedAt)
	}
}

func TestRunJob_CompletesQueuedTurn(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{replies: []string{"async reply"}}
	svc := newTestService(t, db, prov)

	job, created, err := svc.EnqueueTurn(context.Background(), 20, 1010, "", true, "async question", nil)
	if err != nil || !created {
		t.Fatalf("enqueue: created=%v err=%v", created, err)
	}
	if job.Status != JobQueued {
		t.Fatalf("expected queued job, got %s", job.Status)
	}

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run job: %v", err)
	}

	done, err := svc.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if done.Status != JobSucceeded || done.ResultMessageID == nil {
		t.Fatalf("expected succeeded job with result, got %+v", done)
	}

	var msgs []Message
	if err := db.Where("conversation_id = ?", job.ConversationID).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "async reply" {
		t.Fatalf("worker should persist the assistant turn: %+v", msgs)
	}
}

func TestEnqueueTurn_IdempotencyKeyReusesJob(t *testing.T) {
	db := openTestDB(t)
	prov := &scriptedProvider{}
	svc := newTestService(t, db, prov)

	key := "same-key-1011"
	first, created, err := svc.EnqueueTurn(context.Background(), 21, 1011, "", true, "once", &key)
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}
	second, created, err := svc.EnqueueTurn(context.Background(), 21, 1011, first.ConversationID, false, "once", &key)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected existing job reuse, got created=%v ids %s vs %s", created, first.ID, second.ID)
	}
}
