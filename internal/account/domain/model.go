package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPendingSetup Status = "PENDING_SETUP"
	StatusActive       Status = "ACTIVE"
	StatusSuspended    Status = "SUSPENDED"
	StatusCancelled    Status = "CANCELLED"
)

// Per-area onboarding values reported by the partner.
const (
	AreaAwaitingApproval = "AWAITING_APPROVAL"
	AreaPending          = "PENDING"
	AreaApproved         = "APPROVED"
	AreaRejected         = "REJECTED"
)

// MaxReasonLength bounds status_reason.
const MaxReasonLength = 255

// Account is a merchant sub-account at the partner. SecretToken authenticates
// inbound webhooks and is never updated after insert.
type Account struct {
	ID                    snowflake.ID   `gorm:"primaryKey" json:"id"`
	ExternalAccountID     *string        `gorm:"column:external_account_id" json:"external_account_id,omitempty"`
	WalletID              *string        `gorm:"column:wallet_id" json:"wallet_id,omitempty"`
	Name                  string         `gorm:"column:name;not null" json:"name"`
	Email                 string         `gorm:"column:email;not null" json:"email"`
	Document              string         `gorm:"column:document;not null;uniqueIndex" json:"document"`
	SecretToken           string         `gorm:"column:secret_token;not null;uniqueIndex" json:"-"`
	AccountStatus         Status         `gorm:"column:account_status;not null" json:"account_status"`
	VerificationStatus    *string        `gorm:"column:verification_status" json:"verification_status,omitempty"`
	StatusBank            *string        `gorm:"column:status_bank" json:"status_bank,omitempty"`
	StatusCommercial      *string        `gorm:"column:status_commercial" json:"status_commercial,omitempty"`
	StatusDocument        *string        `gorm:"column:status_document" json:"status_document,omitempty"`
	StatusGeneral         *string        `gorm:"column:status_general" json:"status_general,omitempty"`
	StatusReason          *string        `gorm:"column:status_reason" json:"status_reason,omitempty"`
	EncryptedAPIKey       *string        `gorm:"column:encrypted_api_key" json:"-"`
	Metadata              datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	LastWebhookEvent      *string        `gorm:"column:last_webhook_event" json:"last_webhook_event,omitempty"`
	LastWebhookReceivedAt *time.Time     `gorm:"column:last_webhook_received_at" json:"last_webhook_received_at,omitempty"`
	CreatedAt             time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Account) TableName() string { return "partner_accounts" }

// Patch is a partial status update. Nil fields are left untouched.
// ClearReason writes NULL to status_reason and wins over StatusReason.
type Patch struct {
	AccountStatus      *Status
	VerificationStatus *string
	StatusBank         *string
	StatusCommercial   *string
	StatusDocument     *string
	StatusGeneral      *string
	StatusReason       *string
	ClearReason        bool
}

// Empty reports whether the patch carries no status change.
func (p Patch) Empty() bool {
	return p.AccountStatus == nil &&
		p.VerificationStatus == nil &&
		p.StatusBank == nil &&
		p.StatusCommercial == nil &&
		p.StatusDocument == nil &&
		p.StatusGeneral == nil &&
		p.StatusReason == nil &&
		!p.ClearReason
}

// Bookkeeping is written on every applied patch, including empty ones.
type Bookkeeping struct {
	EventType  string
	ReceivedAt time.Time
	UpdatedAt  time.Time
}
