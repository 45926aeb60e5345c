package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the durable queue of partner webhook events.
type Repository interface {
	// Enqueue inserts a PENDING event. It returns ErrDuplicateEvent when the
	// external event id was already stored.
	Enqueue(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Event, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalEventID string) (*Event, error)
	// ListPending returns PENDING events below maxRetry, oldest first.
	ListPending(ctx context.Context, db *gorm.DB, limit int, maxRetry int) ([]Event, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Event, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	// MarkFailed increments retry_count and moves the event to ERROR once the
	// new count reaches maxRetry. It returns the resulting status and count.
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, maxRetry int, at time.Time) (Status, int, error)
	// MarkError moves the event straight to ERROR without touching retry_count.
	MarkError(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error
	Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}

type ListFilter struct {
	Status    Status
	AccountID snowflake.ID
	Limit     int
}

var (
	ErrDuplicateEvent = errors.New("duplicate_event")
	ErrNotFound       = errors.New("event_not_found")
	ErrNotRequeuable  = errors.New("event_not_requeuable")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidID      = errors.New("invalid_event_id")
)

// MaxErrorLength bounds processing_error.
const MaxErrorLength = 1000
