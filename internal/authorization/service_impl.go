package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectEvents   = "events"
	ObjectAccounts = "accounts"
	ObjectAudit    = "audit"
)

const (
	ActionEventsProcess = "process"
	ActionEventsView    = "view"
	ActionEventsRequeue = "requeue"

	ActionAccountsProvision = "provision"
	ActionAccountsView      = "view"
	ActionAccountsSync      = "sync"
	ActionAccountsCancel    = "cancel"

	ActionAuditView = "view"
)

// Operator roles assignable to API keys.
const (
	RoleAdmin       = "admin"
	RoleOperator    = "operator"
	RoleProvisioner = "provisioner"
	RoleViewer      = "viewer"
)

var knownRoles = map[string]struct{}{
	RoleAdmin:       {},
	RoleOperator:    {},
	RoleProvisioner: {},
	RoleViewer:      {},
}

// IsKnownRole reports whether role has seeded policies.
func IsKnownRole(role string) bool {
	_, ok := knownRoles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads policies from the casbin_rule table and seeds the role
// permissions on every start.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, role string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !IsKnownRole(role) {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName := fmt.Sprintf("role:%s", role)
	if err := s.ensureGrouping(actor, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization.denied",
			zap.String("actor", actor),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link for the actor. A key whose role
// changed in operator_api_keys drops its old link here.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Read-only
		{"role:viewer", ObjectEvents, ActionEventsView},
		{"role:viewer", ObjectAccounts, ActionAccountsView},

		// Day-to-day pipeline operation
		{"role:operator", ObjectEvents, ActionEventsView},
		{"role:operator", ObjectEvents, ActionEventsProcess},
		{"role:operator", ObjectEvents, ActionEventsRequeue},
		{"role:operator", ObjectAccounts, ActionAccountsView},
		{"role:operator", ObjectAccounts, ActionAccountsSync},

		// Onboarding
		{"role:provisioner", ObjectAccounts, ActionAccountsView},
		{"role:provisioner", ObjectAccounts, ActionAccountsProvision},
		{"role:provisioner", ObjectAccounts, ActionAccountsSync},
	}

	adminPolicies := [][]string{
		{"role:admin", ObjectEvents, ActionEventsView},
		{"role:admin", ObjectEvents, ActionEventsProcess},
		{"role:admin", ObjectEvents, ActionEventsRequeue},
		{"role:admin", ObjectAccounts, ActionAccountsView},
		{"role:admin", ObjectAccounts, ActionAccountsProvision},
		{"role:admin", ObjectAccounts, ActionAccountsSync},
		{"role:admin", ObjectAccounts, ActionAccountsCancel},
		{"role:admin", ObjectAudit, ActionAuditView},
	}
	policies = append(policies, adminPolicies...)

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
