package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByDocument(ctx context.Context, db *gorm.DB, document string) (*Account, error)
	// FindBySecretToken returns at most two non-cancelled accounts so callers
	// can tell a unique match from an ambiguous one.
	FindBySecretToken(ctx context.Context, db *gorm.DB, token string) ([]Account, error)
	// ApplyPatch updates status fields and bookkeeping in one statement.
	ApplyPatch(ctx context.Context, db *gorm.DB, id snowflake.ID, patch Patch, book Bookkeeping) error
	UpdateAreaStatuses(ctx context.Context, db *gorm.DB, id snowflake.ID, patch Patch, at time.Time) error
	// MarkCancelled sets CANCELLED and replaces metadata. Accounts already
	// cancelled report ErrNotFound.
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, metadata datatypes.JSON, at time.Time) error
}
