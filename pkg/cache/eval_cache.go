package cache

import "github.com/gengine/core/pkg/domain"

// GoalEvalRecord is the memoized result of evaluating a goal for a user (see
// pkg/achievement's Goal.evaluate).
type GoalEvalRecord struct {
	Value    float64
	Achieved bool
}

// EvalCache holds the three coherent caches described for cache invalidation:
// per-(goal,user) evaluation results, per-(user,achievement) evaluation results, and
// per-(user,achievement) awarded level. InvalidateForVariable clears the first two
// when a value change touches a variable a cached goal's condition references; the
// awarded level is cleared separately, when a new level is inserted.
type EvalCache interface {
	// GetGoalEval returns the memoized evaluation for (goalID, userID), if present.
	GetGoalEval(goalID, userID string) (GoalEvalRecord, bool)

	// SetGoalEval stores the evaluation for (goalID, userID).
	SetGoalEval(goalID, userID string, record GoalEvalRecord)

	// InvalidateGoalEval removes the memoized evaluation for (goalID, userID), if any.
	InvalidateGoalEval(goalID, userID string)

	// GetAchievementEval returns the memoized achievement-level evaluation state for
	// (userID, achievementID), if present.
	GetAchievementEval(userID, achievementID string) (any, bool)

	// SetAchievementEval stores the achievement-level evaluation state for
	// (userID, achievementID). The value is opaque to the cache; pkg/achievement owns
	// its shape.
	SetAchievementEval(userID, achievementID string, record any)

	// InvalidateAchievementEval removes the memoized achievement-level evaluation for
	// (userID, achievementID), if any.
	InvalidateAchievementEval(userID, achievementID string)

	// GetAwardedLevel returns the awarded level memoized for (userID, achievementID),
	// if present.
	GetAwardedLevel(userID, achievementID string) (int, bool)

	// SetAwardedLevel stores the awarded level for (userID, achievementID).
	SetAwardedLevel(userID, achievementID string, level int)

	// InvalidateAwardedLevel removes the memoized awarded level for
	// (userID, achievementID), if any.
	InvalidateAwardedLevel(userID, achievementID string)
}

// InvalidateForVariable runs the invalidation fan-out for a value change on
// variableName made by user: for every (goal, achievement) the variable→rules index
// says depends on it, the goal's own cache entry is cleared, the user's own
// achievement-level cache entry is cleared (their own value change affects their own
// achievement state directly), and every member of the
// achievement's reverse cohort (friends who list user as a friend) has their
// achievement-level cache entry cleared too (leaderboard ranks for peers who list
// user as a friend may have shifted).
func InvalidateForVariable(catalog CatalogCache, evalCache EvalCache, variableName, userID string, reverseCohort func(achievement *domain.Achievement, userID string) []string) {
	for _, ref := range catalog.GetGoalsReferencingVariable(variableName) {
		evalCache.InvalidateGoalEval(ref.Goal.ID, userID)
		evalCache.InvalidateAchievementEval(userID, ref.Achievement.ID)
		for _, peer := range reverseCohort(ref.Achievement, userID) {
			evalCache.InvalidateAchievementEval(peer, ref.Achievement.ID)
		}
	}
}
