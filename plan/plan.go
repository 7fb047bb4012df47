// Package plan resolves an event's subscription tier from the relational
// backing store, with a Redis cache in front since the tier is consulted
// on every join.
package plan

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/festivo/gamehub/admission"
	"github.com/festivo/gamehub/logger"
)

// GormSource looks the tier up in the event_plans table. An event without
// a plan row is on the free tier.
type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) Tier(ctx context.Context, eventID string) (admission.Tier, error) {
	var row struct {
		Tier string
	}
	err := s.db.WithContext(ctx).
		Table("event_plans").
		Select("tier").
		Where("event_id = ?", eventID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return admission.TierFree, nil
	}
	if err != nil {
		return admission.TierFree, err
	}
	return admission.Normalize(admission.Tier(row.Tier)), nil
}

// SQLSource is the database/sql counterpart of GormSource, for deployments
// on the raw driver.
type SQLSource struct {
	db *sql.DB
}

func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

func (s *SQLSource) Tier(ctx context.Context, eventID string) (admission.Tier, error) {
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT tier FROM event_plans WHERE event_id = $1`, eventID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return admission.TierFree, nil
	}
	if err != nil {
		return admission.TierFree, err
	}
	return admission.Normalize(admission.Tier(tier)), nil
}

// CachedSource decorates a PlanSource with a Redis lookaside cache.
// A cache miss or Redis outage falls through to the inner source; a
// source outage degrades to the free tier so joins keep working.
type CachedSource struct {
	inner  admission.PlanSource
	client *redis.Client
	ttl    time.Duration
}

func NewCachedSource(inner admission.PlanSource, client *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, client: client, ttl: ttl}
}

func (c *CachedSource) key(eventID string) string {
	return "event:" + eventID + ":tier"
}

func (c *CachedSource) Tier(ctx context.Context, eventID string) (admission.Tier, error) {
	if c.client != nil {
		cached, err := c.client.Get(ctx, c.key(eventID)).Result()
		if err == nil {
			return admission.Normalize(admission.Tier(cached)), nil
		}
		if err != redis.Nil {
			logger.Log.Warnf("plan cache read failed for event %s: %v", eventID, err)
		}
	}

	tier, err := c.inner.Tier(ctx, eventID)
	if err != nil {
		logger.Log.Warnf("plan lookup failed for event %s, defaulting to free: %v", eventID, err)
		return admission.TierFree, nil
	}

	if c.client != nil {
		if err := c.client.Set(ctx, c.key(eventID), string(tier), c.ttl).Err(); err != nil {
			logger.Log.Warnf("plan cache write failed for event %s: %v", eventID, err)
		}
	}
	return tier, nil
}
