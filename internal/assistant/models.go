package assistant

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation belongs to exactly one (company, user) pair for its whole
// lifetime. Deletion is soft: Active flips to false and the row stays.
type Conversation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"conversation_id"`
	CompanyID      uint64    `gorm:"index;not null" json:"-"`
	UserID         uint64    `gorm:"index;not null" json:"-"`
	Title          string    `gorm:"type:varchar(255);not null" json:"title"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "assistant_conversations" }

// Message is immutable once created. Creation order is the only replay
// order fed back to the model.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:varchar(26);index;not null" json:"conversation_id"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Metadata       *string   `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "assistant_messages" }

// QueryAudit records one attempted data query, including attempts the
// policy rejected. Rows are append-only.
type QueryAudit struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanyID  uint64    `gorm:"index;not null" json:"-"`
	UserID     uint64    `gorm:"index;not null" json:"-"`
	MessageID  *uint64   `gorm:"index" json:"message_id,omitempty"`
	Query      string    `gorm:"type:text;not null" json:"query"`
	Success    bool      `gorm:"not null;default:false" json:"success"`
	Result     *string   `gorm:"type:json" json:"result,omitempty"`
	Error      *string   `gorm:"type:text" json:"error,omitempty"`
	DurationMS *int64    `json:"duration_ms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (QueryAudit) TableName() string { return "assistant_query_audits" }
