package cache

import "github.com/gengine/core/pkg/domain"

// CatalogCache provides O(1) in-memory lookups over the achievement/goal/variable
// catalog. It is built at application startup from the achievements.json config file.
// All lookups are read-only and thread-safe.
type CatalogCache interface {
	// GetAchievementByID retrieves an achievement by its unique ID.
	// Returns nil if the achievement does not exist.
	GetAchievementByID(achievementID string) *domain.Achievement

	// GetGoalByID retrieves a goal by its unique ID, regardless of which achievement
	// it belongs to.
	// Returns nil if the goal does not exist.
	GetGoalByID(goalID string) *domain.Goal

	// GetVariableByName retrieves a variable definition by its name.
	// Returns nil if the variable does not exist.
	GetVariableByName(name string) *domain.Variable

	// GetGoalsReferencingVariable returns every (goal, achievement) pair whose goal
	// condition textually references the given variable name, per the variable→rules
	// reverse index. Used for cache invalidation fan-out only, never for evaluation
	// correctness.
	GetGoalsReferencingVariable(variableName string) []GoalAchievementPair

	// GetAllAchievements retrieves all configured achievements, in config file order.
	GetAllAchievements() []*domain.Achievement

	// GetAllGoals retrieves all configured goals across all achievements.
	GetAllGoals() []*domain.Goal

	// Reload reloads the cache from the config file on disk.
	// Returns an error if the config file cannot be read or is invalid; on error the
	// cache retains its previous contents.
	Reload() error
}

// GoalAchievementPair names a goal together with the achievement it belongs to, as
// produced by the variable→rules reverse index.
type GoalAchievementPair struct {
	Goal        *domain.Goal
	Achievement *domain.Achievement
}
