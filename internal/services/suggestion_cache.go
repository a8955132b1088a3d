package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// SuggestionCache stores computed suggestion lists per (project, prefix, limit).
// Implementations must treat every failure as a miss.
type SuggestionCache interface {
	Get(ctx context.Context, projectID uuid.UUID, prefix string, limit int) ([]string, bool)
	Set(ctx context.Context, projectID uuid.UUID, prefix string, limit int, words []string)
	InvalidateProject(ctx context.Context, projectID uuid.UUID)
}

type noopSuggestionCache struct{}

func NewNoopSuggestionCache() SuggestionCache { return noopSuggestionCache{} }

func (noopSuggestionCache) Get(context.Context, uuid.UUID, string, int) ([]string, bool) {
	return nil, false
}
func (noopSuggestionCache) Set(context.Context, uuid.UUID, string, int, []string) {}
func (noopSuggestionCache) InvalidateProject(context.Context, uuid.UUID)          {}

const suggestionKeyPrefix = "storykeep:suggest:"

type redisSuggestionCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisSuggestionCache(log *logger.Logger, rdb *goredis.Client, ttl time.Duration) SuggestionCache {
	if rdb == nil {
		return NewNoopSuggestionCache()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisSuggestionCache{
		log: log.With("cache", "SuggestionCache"),
		rdb: rdb,
		ttl: ttl,
	}
}

func suggestionKey(projectID uuid.UUID, prefix string, limit int) string {
	return fmt.Sprintf("%s%s:%d:%s", suggestionKeyPrefix, projectID, limit, prefix)
}

func (c *redisSuggestionCache) Get(ctx context.Context, projectID uuid.UUID, prefix string, limit int) ([]string, bool) {
	raw, err := c.rdb.Get(ctx, suggestionKey(projectID, prefix, limit)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Debug("suggestion cache get failed", "project_id", projectID, "error", err)
		}
		return nil, false
	}
	var words []string
	if err := json.Unmarshal(raw, &words); err != nil {
		return nil, false
	}
	return words, true
}

func (c *redisSuggestionCache) Set(ctx context.Context, projectID uuid.UUID, prefix string, limit int, words []string) {
	if words == nil {
		words = []string{}
	}
	b, err := json.Marshal(words)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, suggestionKey(projectID, prefix, limit), b, c.ttl).Err(); err != nil {
		c.log.Debug("suggestion cache set failed", "project_id", projectID, "error", err)
	}
}

func (c *redisSuggestionCache) InvalidateProject(ctx context.Context, projectID uuid.UUID) {
	pattern := fmt.Sprintf("%s%s:*", suggestionKeyPrefix, projectID)
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			c.log.Warn("suggestion cache invalidate failed", "project_id", projectID, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.log.Warn("suggestion cache delete failed", "project_id", projectID, "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
