package turn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	domain "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cache depth: enough for any sane history window without unbounded
// growth per session
const maxCachedTurns = 16

// GormTurnRepo persists turns in MySQL and keeps a short per-session
// tail in Redis so context building doesn't hit the database on every
// turn. Redis is an accelerator only; every read falls back to the
// database when the cache misses or misbehaves.
type GormTurnRepo struct {
	db       *gorm.DB
	rc       *redis.Client
	cacheTTL time.Duration
	logger   *Logger.Logger
}

func NewGormTurnRepo(db *gorm.DB, rc *redis.Client, cacheTTL time.Duration, logger *Logger.Logger) domain.TurnRepository {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &GormTurnRepo{
		db:       db,
		rc:       rc,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// FetchRecentTurns implements domain.TurnRepository.
func (g *GormTurnRepo) FetchRecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	if limit <= 0 {
		return []types.Turn{}, nil
	}

	if turns, ok := g.fetchCached(sessionID, limit); ok {
		return turns, nil
	}

	var entities []TurnEntity
	err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("started_at DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	// reverse to oldest first
	turns := make([]types.Turn, len(entities))
	for i, e := range entities {
		turns[len(entities)-1-i] = e.ToDomain()
	}
	return turns, nil
}

// SaveTurn implements domain.TurnRepository.
func (g *GormTurnRepo) SaveTurn(ctx context.Context, t types.Turn) error {
	entity := &TurnEntity{}
	if err := entity.FromDomain(t); err != nil {
		return err
	}

	if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
		return err
	}

	g.cacheTurn(t)
	return nil
}

// UpsertSession implements domain.TurnRepository.
func (g *GormTurnRepo) UpsertSession(ctx context.Context, sessionID string, userID *uuid.UUID) (*types.Session, error) {
	now := time.Now()
	entity := SessionEntity{
		ID:           sessionID,
		UserID:       userID,
		LastActivity: now,
		IsActive:     true,
	}

	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_activity": now,
			"is_active":     true,
		}),
	}).Create(&entity).Error
	if err != nil {
		return nil, err
	}

	var stored SessionEntity
	if err := g.db.WithContext(ctx).First(&stored, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return stored.ToDomain(), nil
}

// fetchCached reads the session tail from Redis. ok is false on any
// miss or decode problem so the caller falls through to the database.
func (g *GormTurnRepo) fetchCached(sessionID string, limit int) ([]types.Turn, bool) {
	if g.rc == nil {
		return nil, false
	}

	// a tail shorter than the window may just be a cold cache; let the
	// database decide
	raw, err := g.rc.LRange(sessionTurnsKey(sessionID), int64(-limit), -1).Result()
	if err != nil || len(raw) < limit {
		return nil, false
	}

	turns := make([]types.Turn, 0, len(raw))
	for _, item := range raw {
		var t types.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			g.logger.Warnf("corrupt cache entry for session %s, bypassing cache: %v", sessionID, err)
			return nil, false
		}
		turns = append(turns, t)
	}
	return turns, true
}

// cacheTurn appends to the session tail, trimming to keep it short.
// Cache failures are logged and swallowed.
func (g *GormTurnRepo) cacheTurn(t types.Turn) {
	if g.rc == nil {
		return
	}

	data, err := json.Marshal(t)
	if err != nil {
		g.logger.Warnf("marshal turn %s for cache: %v", t.ID, err)
		return
	}

	key := sessionTurnsKey(t.SessionID)
	pipe := g.rc.TxPipeline()
	pipe.RPush(key, data)
	pipe.LTrim(key, -maxCachedTurns, -1)
	pipe.Expire(key, g.cacheTTL)
	if _, err := pipe.Exec(); err != nil {
		g.logger.Warnf("cache turn %s: %v", t.ID, err)
	}
}
