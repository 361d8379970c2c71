package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEvalCache is a shared-state implementation of EvalCache backed by Redis, for
// deployments running more than one engine instance against the same catalog. It
// mirrors InMemoryEvalCache's key scheme and semantics but serializes records as JSON
// and applies a TTL so a crashed instance's entries eventually expire rather than going
// stale forever.
type RedisEvalCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ EvalCache = (*RedisEvalCache)(nil)

// NewRedisEvalCache wires a go-redis client as the evaluation cache backend. addr is a
// "host:port" address; db selects the logical Redis database index.
func NewRedisEvalCache(addr, password string, db int, ttl time.Duration) *RedisEvalCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisEvalCache{client: client, ttl: ttl}
}

func redisGoalKey(goalID, userID string) string {
	return fmt.Sprintf("gengine:goal_eval:%s:%s", goalID, userID)
}

func redisAchievementKey(userID, achievementID string) string {
	return fmt.Sprintf("gengine:achievement_eval:%s:%s", userID, achievementID)
}

func redisLevelKey(userID, achievementID string) string {
	return fmt.Sprintf("gengine:level:%s:%s", userID, achievementID)
}

func (c *RedisEvalCache) GetGoalEval(goalID, userID string) (GoalEvalRecord, bool) {
	ctx := context.Background()
	data, err := c.client.Get(ctx, redisGoalKey(goalID, userID)).Bytes()
	if err != nil {
		return GoalEvalRecord{}, false
	}
	var record GoalEvalRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return GoalEvalRecord{}, false
	}
	return record, true
}

func (c *RedisEvalCache) SetGoalEval(goalID, userID string, record GoalEvalRecord) {
	ctx := context.Background()
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisGoalKey(goalID, userID), data, c.ttl)
}

func (c *RedisEvalCache) InvalidateGoalEval(goalID, userID string) {
	c.client.Del(context.Background(), redisGoalKey(goalID, userID))
}

func (c *RedisEvalCache) GetAchievementEval(userID, achievementID string) (any, bool) {
	ctx := context.Background()
	data, err := c.client.Get(ctx, redisAchievementKey(userID, achievementID)).Bytes()
	if err != nil {
		return nil, false
	}
	var record any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false
	}
	return record, true
}

func (c *RedisEvalCache) SetAchievementEval(userID, achievementID string, record any) {
	ctx := context.Background()
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisAchievementKey(userID, achievementID), data, c.ttl)
}

func (c *RedisEvalCache) InvalidateAchievementEval(userID, achievementID string) {
	c.client.Del(context.Background(), redisAchievementKey(userID, achievementID))
}

func (c *RedisEvalCache) GetAwardedLevel(userID, achievementID string) (int, bool) {
	ctx := context.Background()
	val, err := c.client.Get(ctx, redisLevelKey(userID, achievementID)).Int()
	if err != nil {
		return 0, false
	}
	return val, true
}

func (c *RedisEvalCache) SetAwardedLevel(userID, achievementID string, level int) {
	c.client.Set(context.Background(), redisLevelKey(userID, achievementID), level, c.ttl)
}

func (c *RedisEvalCache) InvalidateAwardedLevel(userID, achievementID string) {
	c.client.Del(context.Background(), redisLevelKey(userID, achievementID))
}
