package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusError     Status = "ERROR"
)

// Event is one partner webhook delivery. ExternalEventID is unique and is the
// idempotency key for redeliveries.
type Event struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	ExternalEventID string         `gorm:"column:external_event_id;type:text;not null;uniqueIndex:ux_partner_webhook_events_external_id"`
	AccountID       snowflake.ID   `gorm:"column:account_id;not null;index"`
	EventType       string         `gorm:"column:event_type;type:text;not null"`
	Payload         datatypes.JSON `gorm:"column:payload;type:jsonb;not null"`
	ReceivedAt      time.Time      `gorm:"column:received_at;not null"`
	Status          Status         `gorm:"column:status;type:text;not null;default:PENDING"`
	RetryCount      int            `gorm:"column:retry_count;not null;default:0"`
	ProcessedAt     *time.Time     `gorm:"column:processed_at"`
	ProcessingError *string        `gorm:"column:processing_error;type:text"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;not null"`
}

func (Event) TableName() string { return "partner_webhook_events" }

// Terminal reports whether no further automatic transition applies.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}
