package cache

import "sync"

// InMemoryEvalCache is a process-local implementation of EvalCache, following the same
// RWMutex-guarded map pattern as InMemoryCatalogCache. It is the default cache backend;
// a Redis-backed implementation (RedisEvalCache) is available for sharing evaluation
// state across multiple engine instances.
type InMemoryEvalCache struct {
	mu              sync.RWMutex
	goalEval        map[string]GoalEvalRecord
	achievementEval map[string]any
	awardedLevel    map[string]int
}

var _ EvalCache = (*InMemoryEvalCache)(nil)

// NewInMemoryEvalCache creates an empty evaluation cache.
func NewInMemoryEvalCache() *InMemoryEvalCache {
	return &InMemoryEvalCache{
		goalEval:        make(map[string]GoalEvalRecord),
		achievementEval: make(map[string]any),
		awardedLevel:    make(map[string]int),
	}
}

func goalEvalKey(goalID, userID string) string { return goalID + "\x00" + userID }

func achievementEvalKey(userID, achievementID string) string { return userID + "\x00" + achievementID }

func (c *InMemoryEvalCache) GetGoalEval(goalID, userID string) (GoalEvalRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.goalEval[goalEvalKey(goalID, userID)]
	return record, ok
}

func (c *InMemoryEvalCache) SetGoalEval(goalID, userID string, record GoalEvalRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goalEval[goalEvalKey(goalID, userID)] = record
}

func (c *InMemoryEvalCache) InvalidateGoalEval(goalID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.goalEval, goalEvalKey(goalID, userID))
}

func (c *InMemoryEvalCache) GetAchievementEval(userID, achievementID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.achievementEval[achievementEvalKey(userID, achievementID)]
	return record, ok
}

func (c *InMemoryEvalCache) SetAchievementEval(userID, achievementID string, record any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.achievementEval[achievementEvalKey(userID, achievementID)] = record
}

func (c *InMemoryEvalCache) InvalidateAchievementEval(userID, achievementID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.achievementEval, achievementEvalKey(userID, achievementID))
}

func (c *InMemoryEvalCache) GetAwardedLevel(userID, achievementID string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, ok := c.awardedLevel[achievementEvalKey(userID, achievementID)]
	return level, ok
}

func (c *InMemoryEvalCache) SetAwardedLevel(userID, achievementID string, level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awardedLevel[achievementEvalKey(userID, achievementID)] = level
}

func (c *InMemoryEvalCache) InvalidateAwardedLevel(userID, achievementID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.awardedLevel, achievementEvalKey(userID, achievementID))
}
