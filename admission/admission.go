// Package admission maps a subscription plan to hard resource ceilings.
// The check itself is a pure function; plan tiers come from PlanSource.
package admission

import "context"

// Tier is the subscription plan attached to an event.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Resource is the kind of countable thing a plan limits.
type Resource string

const (
	ResourceParticipants Resource = "participants"
	ResourceMessages     Resource = "messages"
)

// Unlimited marks a resource with no ceiling.
const Unlimited = -1

var limits = map[Tier]map[Resource]int{
	TierFree: {
		ResourceParticipants: 10,
		ResourceMessages:     50,
	},
	TierBasic: {
		ResourceParticipants: 50,
		ResourceMessages:     200,
	},
	TierPremium: {
		ResourceParticipants: Unlimited,
		ResourceMessages:     Unlimited,
	},
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Count     int
	Remaining int
}

// Check decides whether one more unit of res fits under the tier's ceiling
// given the current count. Creating the (count+1)th unit at a ceiling of
// count is denied.
func Check(tier Tier, res Resource, count int) Decision {
	limit, ok := limits[Normalize(tier)][res]
	if !ok || limit == Unlimited {
		return Decision{Allowed: true, Limit: Unlimited, Count: count, Remaining: Unlimited}
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count < limit,
		Limit:     limit,
		Count:     count,
		Remaining: remaining,
	}
}

// Normalize maps unknown or empty tier strings to the free plan.
func Normalize(tier Tier) Tier {
	switch tier {
	case TierBasic, TierPremium:
		return tier
	}
	return TierFree
}

// PlanSource resolves the subscription tier for an event. The relational
// backing store owns the plan records; this server only reads them.
type PlanSource interface {
	Tier(ctx context.Context, eventID string) (Tier, error)
}

// StaticPlanSource serves a fixed tier. Used in tests and as the fallback
// when no database is configured.
type StaticPlanSource struct {
	Fixed Tier
}

func (s StaticPlanSource) Tier(context.Context, string) (Tier, error) {
	return Normalize(s.Fixed), nil
}
