// Package entitlement resolves the subscription tier of an authenticated caller.
package entitlement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

// Tier is the entitlement level that controls quota ceiling and paid-tool access.
type Tier string

const (
	TierFree          Tier = "free"
	TierBasic         Tier = "basic"
	TierBusiness      Tier = "business"
	TierWhiteLabel    Tier = "white_label"
	TierSuperReseller Tier = "super_reseller"
	TierAdmin         Tier = "admin"
)

// Tiers lists every tier, lowest first.
var Tiers = []Tier{TierFree, TierBasic, TierBusiness, TierWhiteLabel, TierSuperReseller, TierAdmin}

// Role names stored in the role table.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleWhiteLabel = "white_label"
)

// IsPaid reports whether the tier may call paid-only tools.
func (t Tier) IsPaid() bool {
	return t != TierFree && t != ""
}

// IsAdmin reports whether the tier carries an administrative override.
func (t Tier) IsAdmin() bool {
	return t == TierAdmin
}

// ParseSubscriptionTier maps a stored subscription code to a paid tier.
// Unknown codes map to free.
func ParseSubscriptionTier(code string) Tier {
	switch Tier(code) {
	case TierSuperReseller, TierWhiteLabel, TierBusiness, TierBasic:
		return Tier(code)
	default:
		return TierFree
	}
}

// Store is the subset of the datastore the resolver reads.
type Store interface {
	ListRoles(ctx context.Context, userID string) ([]string, error)
	LatestActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error)
}

// Resolver derives a caller's tier from roles and subscriptions on every call.
type Resolver struct {
	store Store
	log   *logger.Logger
}

// NewResolver creates a resolver backed by store.
func NewResolver(store Store, log *logger.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the caller's tier. Lookup failures resolve to free.
func (r *Resolver) Resolve(ctx context.Context, userID string) Tier {
	tier, err := r.resolve(ctx, userID)
	if err != nil {
		r.log.Warn("tier lookup failed, using free tier",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return TierFree
	}
	return tier
}

func (r *Resolver) resolve(ctx context.Context, userID string) (Tier, error) {
	roles, err := r.store.ListRoles(ctx, userID)
	if err != nil {
		return TierFree, fmt.Errorf("list roles: %w", err)
	}

	whiteLabel := false
	for _, role := range roles {
		switch role {
		case RoleSuperAdmin, RoleAdmin:
			return TierAdmin, nil
		case RoleWhiteLabel:
			whiteLabel = true
		}
	}
	if whiteLabel {
		return TierWhiteLabel, nil
	}

	sub, err := r.store.LatestActiveSubscription(ctx, userID)
	if err != nil {
		return TierFree, fmt.Errorf("latest subscription: %w", err)
	}
	if sub == nil {
		return TierFree, nil
	}
	return ParseSubscriptionTier(sub.Tier), nil
}
