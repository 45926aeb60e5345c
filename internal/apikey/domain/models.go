package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OperatorKey stores a hashed credential for the operator HTTP surface.
type OperatorKey struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	KeyID      string       `gorm:"column:key_id;type:text;not null;uniqueIndex:ux_operator_api_keys_key_id"`
	Name       string       `gorm:"type:text;not null"`
	Role       string       `gorm:"type:text;not null"`
	KeyHash    string       `gorm:"column:key_hash;type:text;not null;uniqueIndex:ux_operator_api_keys_key_hash"`
	IsActive   bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at"`
}

// TableName sets the database table name.
func (OperatorKey) TableName() string { return "operator_api_keys" }

// Subject is the casbin subject for the key.
func (k OperatorKey) Subject() string {
	return "operator_key:" + k.KeyID
}
