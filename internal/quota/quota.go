// Package quota tracks weekly usage minutes per caller against tier ceilings.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/entitlement"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

// ErrQuotaExceeded is returned by Check when the caller has used up the
// week's allotment.
var ErrQuotaExceeded = errors.New("weekly usage limit reached")

// Store persists per-week usage records.
type Store interface {
	GetUsageMinutes(ctx context.Context, userID, weekStart string) (int, error)
	AddUsageMinutes(ctx context.Context, userID, weekStart string, delta int) error
}

// Limits maps a tier to its weekly minute ceiling. Tiers without an entry
// have no ceiling.
type Limits map[entitlement.Tier]int

// DefaultLimits returns the standard ceilings. Admin has none.
func DefaultLimits() Limits {
	return Limits{
		entitlement.TierFree:          30,
		entitlement.TierBasic:         300,
		entitlement.TierBusiness:      600,
		entitlement.TierWhiteLabel:    1200,
		entitlement.TierSuperReseller: 2400,
	}
}

// WithOverrides returns a copy of l with ceilings replaced by overrides,
// keyed by tier name.
func (l Limits) WithOverrides(overrides map[string]int) Limits {
	out := make(Limits, len(l))
	for tier, limit := range l {
		out[tier] = limit
	}
	for name, limit := range overrides {
		tier := entitlement.Tier(name)
		if tier == entitlement.TierAdmin {
			continue
		}
		out[tier] = limit
	}
	return out
}

// Unlimited reports whether a tier bypasses the ceiling check. Super
// resellers keep a numeric ceiling for reporting but are never rejected.
func Unlimited(tier entitlement.Tier) bool {
	return tier == entitlement.TierAdmin || tier == entitlement.TierSuperReseller
}

// WeekStart returns the week key for t: the date of the most recent Monday
// in t's location, formatted YYYY-MM-DD.
func WeekStart(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format("2006-01-02")
}

// Ledger reads and debits usage minutes.
type Ledger struct {
	store  Store
	limits Limits
	now    func() time.Time
}

// NewLedger creates a ledger. Weeks are computed in server-local time.
func NewLedger(store Store, limits Limits) *Ledger {
	return &Ledger{store: store, limits: limits, now: time.Now}
}

// CurrentWeek returns the key of the running week.
func (l *Ledger) CurrentWeek() string {
	return WeekStart(l.now())
}

// Usage returns the minutes consumed by a caller this week.
func (l *Ledger) Usage(ctx context.Context, userID string) (int, error) {
	minutes, err := l.store.GetUsageMinutes(ctx, userID, l.CurrentWeek())
	if err != nil {
		return 0, fmt.Errorf("get usage: %w", err)
	}
	return minutes, nil
}

// Add debits minutes for the running week.
func (l *Ledger) Add(ctx context.Context, userID string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	if err := l.store.AddUsageMinutes(ctx, userID, l.CurrentWeek(), minutes); err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	return nil
}

// Status reports the caller's current quota position.
func (l *Ledger) Status(ctx context.Context, userID string, tier entitlement.Tier) (model.UsageStatus, error) {
	used, err := l.Usage(ctx, userID)
	if err != nil {
		return model.UsageStatus{}, err
	}
	return l.status(used, tier), nil
}

// Check returns the caller's status and ErrQuotaExceeded when a new request
// must be refused.
func (l *Ledger) Check(ctx context.Context, userID string, tier entitlement.Tier) (model.UsageStatus, error) {
	status, err := l.Status(ctx, userID, tier)
	if err != nil {
		return status, err
	}
	if !status.CanUse {
		return status, ErrQuotaExceeded
	}
	return status, nil
}

func (l *Ledger) status(used int, tier entitlement.Tier) model.UsageStatus {
	status := model.UsageStatus{
		MinutesUsed: used,
		Tier:        string(tier),
		IsUnlimited: Unlimited(tier),
		IsAdmin:     tier.IsAdmin(),
		CanUse:      true,
	}
	limit, ok := l.limits[tier]
	if !ok || tier.IsAdmin() {
		return status
	}
	status.MinutesLimit = &limit
	if !status.IsUnlimited && used >= limit {
		status.CanUse = false
	}
	return status
}
