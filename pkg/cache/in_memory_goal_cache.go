package cache

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gengine/core/pkg/config"
	"github.com/gengine/core/pkg/domain"
)

// InMemoryCatalogCache provides O(1) in-memory lookups for the achievement/goal/
// variable catalog. All maps are built at startup (and on Reload) and are safe for
// concurrent read access.
type InMemoryCatalogCache struct {
	achievementsByID map[string]*domain.Achievement
	goalsByID        map[string]*domain.Goal
	variablesByName  map[string]*domain.Variable
	variableRefs     map[string][]GoalAchievementPair
	achievements     []*domain.Achievement
	configPath       string
	mu               sync.RWMutex
	logger           *slog.Logger
}

var _ CatalogCache = (*InMemoryCatalogCache)(nil)

// NewInMemoryCatalogCache creates a new cache from the provided configuration.
// The cache is immediately built and ready for lookups.
func NewInMemoryCatalogCache(cfg *config.Config, configPath string, logger *slog.Logger) *InMemoryCatalogCache {
	cache := &InMemoryCatalogCache{
		configPath: configPath,
		logger:     logger,
	}
	cache.buildCache(cfg)
	return cache
}

// buildCache constructs all cache indexes from the configuration. It replaces all
// existing cache data; called during construction and on Reload.
func (c *InMemoryCatalogCache) buildCache(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.achievementsByID = make(map[string]*domain.Achievement)
	c.goalsByID = make(map[string]*domain.Goal)
	c.variablesByName = make(map[string]*domain.Variable)
	c.variableRefs = make(map[string][]GoalAchievementPair)
	c.achievements = make([]*domain.Achievement, 0, len(cfg.Achievements))

	for _, variable := range cfg.Variables {
		c.variablesByName[variable.Name] = variable
	}

	for _, achievement := range cfg.Achievements {
		c.achievementsByID[achievement.ID] = achievement
		c.achievements = append(c.achievements, achievement)

		for _, goal := range achievement.Goals {
			c.goalsByID[goal.ID] = goal

			for name := range c.variablesByName {
				if conditionReferencesVariable(goal.Condition, name) {
					c.variableRefs[name] = append(c.variableRefs[name], GoalAchievementPair{Goal: goal, Achievement: achievement})
				}
			}
		}
	}

	c.logger.Info("catalog cache built",
		"achievements", len(c.achievements),
		"goals", len(c.goalsByID),
		"variables", len(c.variablesByName),
		"variable_refs", len(c.variableRefs),
	)
}

// conditionReferencesVariable reports whether the quoted variable name appears
// anywhere in the condition source, in either quote flavor. A textual, not syntactic,
// match: the variable→rules index only decides which cached evaluations to invalidate,
// never evaluation correctness (see pkg/expr for the real parser), so over-matching a
// condition that merely mentions the name in an unrelated string literal just costs an
// extra invalidation.
func conditionReferencesVariable(condition, name string) bool {
	if condition == "" {
		return false
	}
	return strings.Contains(condition, `"`+name+`"`) || strings.Contains(condition, "'"+name+"'")
}

// GetAchievementByID retrieves an achievement by its unique ID.
func (c *InMemoryCatalogCache) GetAchievementByID(achievementID string) *domain.Achievement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.achievementsByID[achievementID]
}

// GetGoalByID retrieves a goal by its unique ID.
func (c *InMemoryCatalogCache) GetGoalByID(goalID string) *domain.Goal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.goalsByID[goalID]
}

// GetVariableByName retrieves a variable definition by its name.
func (c *InMemoryCatalogCache) GetVariableByName(name string) *domain.Variable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.variablesByName[name]
}

// GetGoalsReferencingVariable returns the reverse-index entries for a variable name.
func (c *InMemoryCatalogCache) GetGoalsReferencingVariable(variableName string) []GoalAchievementPair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	refs := c.variableRefs[variableName]
	if refs == nil {
		return []GoalAchievementPair{}
	}
	return refs
}

// GetAllAchievements retrieves all configured achievements, in config file order.
func (c *InMemoryCatalogCache) GetAllAchievements() []*domain.Achievement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.achievements
}

// GetAllGoals retrieves all configured goals across all achievements.
func (c *InMemoryCatalogCache) GetAllGoals() []*domain.Goal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	goals := make([]*domain.Goal, 0, len(c.goalsByID))
	for _, goal := range c.goalsByID {
		goals = append(goals, goal)
	}
	return goals
}

// Reload reloads the cache from the config file on disk.
func (c *InMemoryCatalogCache) Reload() error {
	loader := config.NewConfigLoader(c.configPath, c.logger)
	newConfig, err := loader.LoadConfig()
	if err != nil {
		return err
	}
	c.buildCache(newConfig)
	c.logger.Info("catalog cache reloaded")
	return nil
}
