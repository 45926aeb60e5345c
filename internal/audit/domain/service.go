package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Operator actions recorded in the audit trail.
const (
	ActionEventsProcess    = "events.process"
	ActionEventRequeue     = "event.requeue"
	ActionAccountProvision = "account.provision"
	ActionAccountSync      = "account.sync"
	ActionAccountCancel    = "account.cancel"
	ActionAPIKeyCreate     = "apikey.create"
	ActionAPIKeyRevoke     = "apikey.revoke"
)

const (
	TargetEvent   = "webhook_event"
	TargetAccount = "partner_account"
	TargetAPIKey  = "operator_api_key"
	TargetBatch   = "batch"
)

const ActorTypeSystem = "system"

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id;type:text" json:"target_id,omitempty"`
	RequestID  *string           `gorm:"column:request_id;type:text" json:"request_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "operator_audit_logs" }

type ListRequest struct {
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

type Service interface {
	// Record writes one entry. Actor and request id come from ctx.
	Record(ctx context.Context, action string, targetType string, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidLimit  = errors.New("invalid_limit")
)
