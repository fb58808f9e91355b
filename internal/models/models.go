package models

import "time"

type Company struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	TaxID     string    `gorm:"type:varchar(32);uniqueIndex" json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Profile binds a user to exactly one company. A user without a profile
// cannot use the assistant.
type Profile struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"uniqueIndex;not null" json:"-"`
	CompanyID uint64    `gorm:"index;not null" json:"company_id"`
	ImageURL  *string   `gorm:"type:varchar(255)" json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

// Client and Credit form the per-company catalog the assistant queries.
// Their CRUD surfaces live outside this service.
type Client struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanyID    uint64    `gorm:"index;not null" json:"-"`
	FirstName    string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName     string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Phone        string    `gorm:"type:varchar(15)" json:"phone"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	RegisteredAt time.Time `gorm:"autoCreateTime" json:"registered_at"`
}

func (Client) TableName() string { return "clients" }

type Credit struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanyID       uint64     `gorm:"index;not null" json:"-"`
	ClientID        uint64     `gorm:"index;not null" json:"client_id"`
	AmountRequested string     `gorm:"type:decimal(10,2);not null" json:"amount_requested"`
	Installments    int        `gorm:"not null" json:"installments"`
	InterestRate    string     `gorm:"type:decimal(5,2);not null" json:"interest_rate"`
	Currency        string     `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	Status          string     `gorm:"type:varchar(20);not null;default:'REQUESTED'" json:"status"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Credit) TableName() string { return "credits" }
