package postgresadapter

import (
	"context"
	"strconv"
	"strings"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultCacheVersionKey = "catalog:cache_version"
	DefaultCacheVersionTTL = 24 * time.Hour
)

type cacheVersionModel struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (cacheVersionModel) TableName() string {
	return "cache_versions"
}

// CacheStamp stores the catalog cache version token in the read store, where
// the gateway's cache layer reads it on every lookup.
type CacheStamp struct {
	db    *gorm.DB
	key   string
	ttl   time.Duration
	clock ports.Clock
}

func NewCacheStamp(db *gorm.DB, key string, ttl time.Duration, clock ports.Clock) *CacheStamp {
	if strings.TrimSpace(key) == "" {
		key = DefaultCacheVersionKey
	}
	if ttl <= 0 {
		ttl = DefaultCacheVersionTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CacheStamp{db: db, key: key, ttl: ttl, clock: clock}
}

// EnsureSchema creates the token table when the read store lacks it.
func (s *CacheStamp) EnsureSchema(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&cacheVersionModel{})
}

func (s *CacheStamp) Bump(ctx context.Context) error {
	now := s.clock.Now()
	row := cacheVersionModel{
		Key:       s.key,
		Value:     strconv.FormatInt(now.UnixMilli(), 10),
		ExpiresAt: now.Add(s.ttl),
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

var _ ports.CacheStamp = (*CacheStamp)(nil)
