package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row or document.
var ErrNotFound = errors.New("database: not found")

// User is an account record. PasswordHash is a bcrypt hash and never
// leaves the database layer in API responses.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionRecord is one completed analysis or roleplay, stored with its
// full report for later review and for training-plan computation.
type SessionRecord struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Kind       string          `json:"kind"` // "analysis" or "simulation"
	Language   string          `json:"language"`
	ReportJSON json.RawMessage `json:"report"`
	CreatedAt  time.Time       `json:"created_at"`
}

// UsageLog is one metered model call.
type UsageLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ServiceType string    `json:"service_type"`
	Model       string    `json:"model"`
	TotalTokens int32     `json:"total_tokens"`
	CostUSD     float64   `json:"cost_usd"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsageSummary is the per-user aggregate across all logged calls.
type UsageSummary struct {
	UserID       string  `json:"user_id"`
	TotalCalls   int     `json:"total_calls"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Store is the persistence surface. Implementations: postgres (lib/pq),
// firestoredb (Cloud Firestore), memorydb (tests).
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	SaveSession(ctx context.Context, record *SessionRecord) error
	// GetUserHistory returns the user's sessions newest first.
	GetUserHistory(ctx context.Context, userID string, limit int) ([]SessionRecord, error)

	AddUsageLog(ctx context.Context, log *UsageLog) error
	GetUserUsage(ctx context.Context, userID string) (*UsageSummary, error)
}
