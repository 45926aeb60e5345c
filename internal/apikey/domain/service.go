package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
	// Authenticate resolves an active key from its raw bearer value.
	Authenticate(ctx context.Context, raw string) (*OperatorKey, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *OperatorKey) error
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*OperatorKey, error)
	FindByKeyID(ctx context.Context, db *gorm.DB, keyID string) (*OperatorKey, error)
	List(ctx context.Context, db *gorm.DB) ([]OperatorKey, error)
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type CreateRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Response struct {
	KeyID      string     `json:"key_id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// SecretResponse is the only place the raw key is ever returned.
type SecretResponse struct {
	KeyID  string `json:"key_id"`
	Role   string `json:"role"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidKeyID = errors.New("invalid_key_id")
	ErrInvalidKey   = errors.New("invalid_api_key")
	ErrNotFound     = errors.New("not_found")
)
