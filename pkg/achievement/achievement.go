// Package achievement implements threshold evaluation for a single Goal and the
// iterative level-progression evaluator for a whole Achievement, plus the leaderboard
// it feeds.
package achievement

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gengine/core/pkg/cache"
	"github.com/gengine/core/pkg/client"
	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/errors"
	"github.com/gengine/core/pkg/expr"
	"github.com/gengine/core/pkg/progress"
	"github.com/gengine/core/pkg/repository"
)

// ValueIncreaser is the subset of the top-level engine the auto-materialization hook
// calls back into when an is_variable property is awarded. Declared locally to
// avoid an import cycle with pkg/engine, which both implements this and embeds
// *Evaluator.
type ValueIncreaser interface {
	IncreaseValue(ctx context.Context, variableName, userID string, amount int64, key string) error
}

// RenderedReward is a Reward materialized at a specific level.
type RenderedReward struct {
	ID       string
	Type     domain.RewardType
	RewardID string
	Quantity int64
}

// RenderedProperty is an AchievementProperty materialized at a specific level.
type RenderedProperty struct {
	Name  string
	Value string
}

// LevelOutput is the rendered content of one achievement level: its rewards and
// properties at that level.
type LevelOutput struct {
	Level      int
	Rewards    []RenderedReward
	Properties []RenderedProperty
}

// GoalEvalResult is the per-goal output embedded in an achievement evaluation. Name
// carries the goal's rendered name, translated with the threshold substituted:
// language -> text, nil when the goal has no name_translation or no resolver is wired.
type GoalEvalResult struct {
	GoalID   string
	Value    float64
	Achieved bool
	Name     map[string]string
	Priority int
}

// Result is the full structured output of Achievement.evaluate.
type Result struct {
	ID                  string
	Level               int
	MaxLevel            int
	LevelsAchieved      map[int]time.Time
	Levels              map[int]LevelOutput
	Goals               map[string]GoalEvalResult
	NewLevels           map[int]LevelOutput
	Priority            int
	Hidden              bool
	ViewPermission      domain.ViewPermission
	Category            string
	LeaderboardPosition *int
}

// Evaluator evaluates goals and achievements against the catalog cache, the
// persistent/in-memory evaluation caches, and the progress engine.
type Evaluator struct {
	catalog          cache.CatalogCache
	evalCache        cache.EvalCache
	progress         *progress.Engine
	achievementUsers repository.AchievementUserRepository
	goalEvalRepo     repository.GoalEvalCacheRepository
	friends          repository.FriendRepository
	translations     client.TranslationResolver
	rewards          client.RewardClient
	values           ValueIncreaser
	namespace        string
	logger           *slog.Logger
}

// NewEvaluator constructs an Evaluator from its collaborators. namespace is the AGS
// namespace passed through to RewardClient grant calls.
func NewEvaluator(
	catalog cache.CatalogCache,
	evalCache cache.EvalCache,
	progressEngine *progress.Engine,
	achievementUsers repository.AchievementUserRepository,
	goalEvalRepo repository.GoalEvalCacheRepository,
	friends repository.FriendRepository,
	translations client.TranslationResolver,
	rewards client.RewardClient,
	values ValueIncreaser,
	namespace string,
	logger *slog.Logger,
) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		catalog:          catalog,
		evalCache:        evalCache,
		progress:         progressEngine,
		achievementUsers: achievementUsers,
		goalEvalRepo:     goalEvalRepo,
		friends:          friends,
		translations:     translations,
		rewards:          rewards,
		values:           values,
		namespace:        namespace,
		logger:           logger,
	}
}

// EvaluateGoal computes goal's threshold evaluation for user at level. It computes
// progress, then consults the in-memory memo; on a cache miss (or a progress change)
// it evaluates the threshold, persists to both caches, and returns the fresh record. A cache hit with
// unchanged progress returns the prior record unchanged (idempotence).
func (e *Evaluator) EvaluateGoal(ctx context.Context, goal *domain.Goal, user *domain.User, level int, now time.Time) (cache.GoalEvalRecord, error) {
	rawProgress, err := e.progress.Compute(ctx, goal, user, now)
	if err != nil {
		var engineErr *errors.EngineError
		if errors.AsEngineError(err, &engineErr) {
			// Store failures come through Compute already classified; don't
			// relabel them as expression errors.
			return cache.GoalEvalRecord{}, err
		}
		return cache.GoalEvalRecord{}, errors.NewExpressionError(goal.Condition, err)
	}

	prior, hasPrior := e.evalCache.GetGoalEval(goal.ID, user.ID)
	if hasPrior && prior.Value == rawProgress {
		// Progress unchanged since last memoized evaluation; achieved-ness cannot
		// change without progress changing, so return the prior record verbatim.
		return prior, nil
	}

	threshold, err := expr.EvalValueExpression(goal.Goal, level)
	if err != nil {
		return cache.GoalEvalRecord{}, errors.NewExpressionError(goal.Goal, err)
	}

	value := rawProgress
	achieved := false
	switch goal.Operator {
	case domain.OperatorGeq:
		if value >= threshold.AsFloat() {
			achieved = true
			value = min(value, threshold.AsFloat())
		}
	case domain.OperatorLeq:
		if value <= threshold.AsFloat() {
			achieved = true
			value = max(value, threshold.AsFloat())
		}
	}

	record := cache.GoalEvalRecord{Value: value, Achieved: achieved}
	e.evalCache.SetGoalEval(goal.ID, user.ID, record)
	if err := e.goalEvalRepo.Upsert(ctx, domain.GoalEvaluationCache{
		GoalID: goal.ID, UserID: user.ID, Value: value, Achieved: achieved,
	}); err != nil {
		return cache.GoalEvalRecord{}, err
	}
	return record, nil
}

// goalName renders goal's translated name at level via the configured translation
// resolver, binding "level" and the evaluated "threshold" as substitution params.
// Returns nil when the goal carries no name_translation or no resolver is wired, or
// when rendering fails — a missing display name never fails the evaluation itself.
func (e *Evaluator) goalName(ctx context.Context, goal *domain.Goal, level int) map[string]string {
	if e.translations == nil || goal.NameTranslation == "" {
		return nil
	}
	threshold, err := expr.EvalValueExpression(goal.Goal, level)
	if err != nil {
		return nil
	}
	names, err := e.translations.Resolve(ctx, goal.NameTranslation, map[string]expr.Value{
		"level":     expr.Int(int64(level)),
		"threshold": threshold,
	})
	if err != nil {
		return nil
	}
	return names
}

// cohort returns the set of user IDs relevant to achievement for user.
// relevance=city resolves to the same cohort as own (see DESIGN.md's Open Question
// resolution): just the user. EvaluateAchievement still ranks a city achievement's
// one-member cohort, since it computes a leaderboard for every relevance except own.
func (e *Evaluator) cohort(ctx context.Context, achievement *domain.Achievement, user *domain.User) ([]string, error) {
	if achievement.Relevance != domain.RelevanceFriends {
		return []string{user.ID}, nil
	}
	friendIDs, err := e.friends.GetFriends(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return append([]string{user.ID}, friendIDs...), nil
}

// ReverseCohort returns every user for whom `userID` is part of achievement's cohort
// (the fan-out target set for achievement_eval invalidation). Exported so
// pkg/engine can drive cache.InvalidateForVariable without duplicating cohort logic.
func (e *Evaluator) ReverseCohort(ctx context.Context, achievement *domain.Achievement, userID string) []string {
	if achievement.Relevance != domain.RelevanceFriends {
		return nil
	}
	peers, err := e.friends.GetReverseFriends(ctx, userID)
	if err != nil {
		e.logger.Error("reverse cohort lookup failed", "achievement_id", achievement.ID, "user_id", userID, "error", err)
		return nil
	}
	return peers
}

// EvaluateAchievement runs the full evaluation procedure for (user, achievementID):
// cohort resolution, per-goal evaluation at the next level, iterative level-up while
// every goal is achieved, reward/property materialization, and idempotent level
// awarding.
func (e *Evaluator) EvaluateAchievement(ctx context.Context, user *domain.User, achievementID string, now time.Time) (*Result, error) {
	achievement := e.catalog.GetAchievementByID(achievementID)
	if achievement == nil {
		return nil, errors.NewAchievementNotFoundError(achievementID)
	}

	if cached, ok := e.evalCache.GetAchievementEval(user.ID, achievementID); ok {
		if result, ok := cached.(*Result); ok {
			// A memoized achievement-level evaluation exists and nothing has
			// invalidated it since: a repeat call between value changes returns the
			// memoized record verbatim, NewLevels included.
			return result, nil
		}
	}

	var maxLevel int
	if cachedLevel, ok := e.evalCache.GetAwardedLevel(user.ID, achievementID); ok {
		maxLevel = cachedLevel
	} else {
		var err error
		maxLevel, err = e.achievementUsers.GetMaxLevel(ctx, user.ID, achievementID)
		if err != nil {
			return nil, err
		}
		e.evalCache.SetAwardedLevel(user.ID, achievementID, maxLevel)
	}
	levelsAchieved, err := e.achievementUsers.GetLevelsAchieved(ctx, user.ID, achievementID)
	if err != nil {
		return nil, err
	}

	newLevels := make(map[int]LevelOutput)
	currentLevel := maxLevel

	for currentLevel < achievement.MaxLevel {
		target := currentLevel + 1

		goalResults := make(map[string]GoalEvalResult, len(achievement.Goals))
		allAchieved := true
		for _, goal := range achievement.Goals {
			record, err := e.evaluateGoalDegraded(ctx, goal, user, target, now)
			if err != nil {
				return nil, err
			}
			goalResults[goal.ID] = GoalEvalResult{GoalID: goal.ID, Value: record.Value, Achieved: record.Achieved, Name: e.goalName(ctx, goal, target), Priority: goal.Priority}
			if !record.Achieved {
				allAchieved = false
			}
		}

		if !allAchieved {
			break
		}

		// Insert the level row first: only once it is durably, uniquely ours do we
		// grant its rewards and materialize its is_variable properties. Granting
		// before this check risks a concurrent evaluator double-granting the same
		// level's rewards. correlationID ties this attempt's award/conflict log line
		// to the reward-grant attempts it gates, so they can be correlated in logs.
		correlationID := uuid.NewString()
		awardedAt := now
		e.logger.Info("attempting level award",
			"correlation_id", correlationID, "achievement_id", achievementID, "user_id", user.ID, "level", target)
		if err := e.achievementUsers.InsertLevel(ctx, user.ID, achievementID, target, awardedAt); err != nil {
			if errors.IsConflict(err) {
				// A concurrent evaluator already awarded this level; re-read state
				// and stop advancing from here rather than double-awarding.
				e.logger.Info("level award conflict, already awarded by concurrent evaluator",
					"correlation_id", correlationID, "achievement_id", achievementID, "user_id", user.ID, "level", target)
				maxLevel, err = e.achievementUsers.GetMaxLevel(ctx, user.ID, achievementID)
				if err != nil {
					return nil, err
				}
				currentLevel = maxLevel
				break
			}
			return nil, err
		}
		e.logger.Info("level awarded",
			"correlation_id", correlationID, "achievement_id", achievementID, "user_id", user.ID, "level", target)

		levelOutput, err := e.materializeLevel(ctx, achievement, user, target, true, correlationID)
		if err != nil {
			return nil, err
		}
		newLevels[target] = levelOutput

		levelsAchieved[target] = awardedAt
		currentLevel = target

		e.evalCache.InvalidateAwardedLevel(user.ID, achievementID)
		for _, goal := range achievement.Goals {
			e.evalCache.InvalidateGoalEval(goal.ID, user.ID)
		}
		e.evalCache.SetAwardedLevel(user.ID, achievementID, currentLevel)
	}

	// Basic output covers levels up to currentLevel+1 so clients can preview the next
	// level's rewards.
	levels := make(map[int]LevelOutput)
	previewUpTo := currentLevel + 1
	if previewUpTo > achievement.MaxLevel {
		previewUpTo = achievement.MaxLevel
	}
	for lvl := 1; lvl <= previewUpTo; lvl++ {
		if out, ok := newLevels[lvl]; ok {
			levels[lvl] = out
			continue
		}
		out, err := e.materializeLevel(ctx, achievement, user, lvl, false, "")
		if err != nil {
			return nil, err
		}
		levels[lvl] = out
	}

	goalOutputs := make(map[string]GoalEvalResult, len(achievement.Goals))
	target := currentLevel + 1
	if target > achievement.MaxLevel {
		target = achievement.MaxLevel
	}
	for _, goal := range achievement.Goals {
		record, err := e.evaluateGoalDegraded(ctx, goal, user, target, now)
		if err != nil {
			return nil, err
		}
		goalOutputs[goal.ID] = GoalEvalResult{GoalID: goal.ID, Value: record.Value, Achieved: record.Achieved, Name: e.goalName(ctx, goal, target), Priority: goal.Priority}
	}

	result := &Result{
		ID:             achievement.ID,
		Level:          currentLevel,
		MaxLevel:       achievement.MaxLevel,
		LevelsAchieved: levelsAchieved,
		Levels:         levels,
		Goals:          goalOutputs,
		NewLevels:      newLevels,
		Priority:       achievement.Priority,
		Hidden:         achievement.Hidden,
		ViewPermission: achievement.ViewPermission,
		Category:       achievement.Category,
	}

	if achievement.Relevance != domain.RelevanceOwn {
		cohortIDs, err := e.cohort(ctx, achievement, user)
		if err != nil {
			return nil, err
		}
		if len(achievement.Goals) > 0 {
			entries, err := e.Leaderboard(ctx, achievement.Goals[0], cohortIDs, target, now)
			if err != nil {
				return nil, err
			}
			for i, entry := range entries {
				if entry.UserID == user.ID {
					pos := i
					result.LeaderboardPosition = &pos
					break
				}
			}
		}
	}

	e.evalCache.SetAchievementEval(user.ID, achievementID, result)
	return result, nil
}

// evaluateGoalDegraded wraps EvaluateGoal with the expression-error degradation: a
// goal whose condition or threshold cannot be evaluated counts as unachieved with
// value 0, logged at Warn, instead of failing the whole achievement evaluation. Store
// failures still propagate.
func (e *Evaluator) evaluateGoalDegraded(ctx context.Context, goal *domain.Goal, user *domain.User, level int, now time.Time) (cache.GoalEvalRecord, error) {
	record, err := e.EvaluateGoal(ctx, goal, user, level, now)
	if err != nil {
		if !errors.IsExpression(err) {
			return cache.GoalEvalRecord{}, err
		}
		e.logger.Warn("goal expression failed to evaluate, treating as unachieved",
			"goal_id", goal.ID, "user_id", user.ID, "level", level, "error", err)
		return cache.GoalEvalRecord{}, nil
	}
	return record, nil
}

// materializeLevel renders every Reward and AchievementProperty that first becomes
// available at exactly `level`, decided by content-hash diffing: a reward or
// property is only included when its rendered value at `level` differs from its
// rendered value at `level-1` (or it has no prior level to compare against). grant must
// be true only when level has just been durably, uniquely awarded to user — it gates
// the RewardClient.GrantReward and ValueIncreaser.IncreaseValue calls, which are real
// external side effects, not pure rendering; preview output (for levels not yet
// reached) always passes grant=false. correlationID ties a reward-grant attempt's log
// line back to the level-award attempt that triggered it; it is only meaningful when
// grant is true and is empty for preview calls.
func (e *Evaluator) materializeLevel(ctx context.Context, achievement *domain.Achievement, user *domain.User, level int, grant bool, correlationID string) (LevelOutput, error) {
	out := LevelOutput{Level: level}

	for _, reward := range achievement.Rewards {
		if reward.FromLevel > level {
			continue
		}
		cur, err := renderContentHash(reward.ID, reward.Quantity, level)
		if err != nil {
			return LevelOutput{}, err
		}
		if level > 1 {
			prev, err := renderContentHash(reward.ID, reward.Quantity, level-1)
			if err == nil && prev == cur {
				continue
			}
		}
		quantity, err := expr.EvalValueExpression(reward.Quantity, level)
		if err != nil {
			return LevelOutput{}, errors.NewExpressionError(reward.Quantity, err)
		}
		quantityInt := int64(quantity.AsFloat())
		out.Rewards = append(out.Rewards, RenderedReward{
			ID: reward.ID, Type: reward.Type, RewardID: reward.RewardID, Quantity: quantityInt,
		})

		if grant && e.rewards != nil {
			e.logger.Info("attempting reward grant",
				"correlation_id", correlationID, "achievement_id", achievement.ID, "user_id", user.ID, "level", level, "reward_id", reward.ID)
			if err := e.rewards.GrantReward(ctx, e.namespace, user.ID, *reward, int(quantityInt)); err != nil {
				e.logger.Warn("reward grant failed",
					"correlation_id", correlationID, "achievement_id", achievement.ID, "user_id", user.ID, "level", level, "reward_id", reward.ID, "error", err)
				return LevelOutput{}, errors.NewRewardGrantFailedError(string(reward.Type), reward.RewardID, err)
			}
		}
	}

	for _, prop := range achievement.Properties {
		if prop.FromLevel > level {
			continue
		}
		cur, err := renderContentHash(prop.ID, prop.Value, level)
		if err != nil {
			return LevelOutput{}, err
		}
		if level > 1 {
			prev, err := renderContentHash(prop.ID, prop.Value, level-1)
			if err == nil && prev == cur {
				continue
			}
		}
		rendered := renderValueSource(prop.Value, level)
		out.Properties = append(out.Properties, RenderedProperty{Name: prop.Name, Value: rendered})

		if grant && prop.IsVariable && e.values != nil {
			amount, err := expr.EvalValueExpression(prop.Value, level)
			if err == nil {
				if err := e.values.IncreaseValue(ctx, prop.Name, user.ID, int64(amount.AsFloat()), achievement.ID); err != nil {
					e.logger.Error("auto-materialization increase_value failed",
						"correlation_id", correlationID, "property", prop.Name, "user_id", user.ID, "error", err)
				}
			}
		}
	}

	sort.Slice(out.Rewards, func(i, j int) bool { return out.Rewards[i].ID < out.Rewards[j].ID })
	sort.Slice(out.Properties, func(i, j int) bool { return out.Properties[i].Name < out.Properties[j].Name })
	return out, nil
}

// renderValueSource renders a reward/property value source at level: a source that
// evaluates as a plain value expression (e.g. "10*level") yields its evaluated result,
// anything else — literal strings, `{expr}` templates — goes through template
// substitution.
func renderValueSource(source string, level int) string {
	if v, err := expr.EvalValueExpression(source, level); err == nil {
		return v.Render()
	}
	return expr.RenderTemplate(source, level)
}

// renderContentHash hashes id+rendered-value; materializeLevel compares it across
// adjacent levels to decide whether a reward/property is newly introduced at a level.
// Translation rendering is intentionally left out of the hash here (no translation_id
// is modeled on Reward/AchievementProperty beyond the value source itself); the
// rendered numeric/string value is what actually varies level-to-level for this
// catalog shape.
func renderContentHash(id, valueExpr string, level int) (string, error) {
	rendered := renderValueSource(valueExpr, level)
	sum := md5.Sum([]byte(id + rendered))
	return hex.EncodeToString(sum[:]), nil
}

// LeaderboardEntry is one ranked row of a Goal.get_leaderboard result.
type LeaderboardEntry struct {
	UserID   string
	Value    float64
	Position int
}

// Leaderboard reads cached GoalEvaluationCache rows for the cohort, lazily evaluates
// any missing member at targetLevel, then sorts desc by value with ties broken by
// user_id desc.
func (e *Evaluator) Leaderboard(ctx context.Context, goal *domain.Goal, cohortUserIDs []string, targetLevel int, now time.Time) ([]LeaderboardEntry, error) {
	rows, err := e.goalEvalRepo.GetForUsers(ctx, goal.ID, cohortUserIDs)
	if err != nil {
		return nil, err
	}
	have := make(map[string]domain.GoalEvaluationCache, len(rows))
	for _, row := range rows {
		have[row.UserID] = row
	}

	for _, userID := range cohortUserIDs {
		if _, ok := have[userID]; ok {
			continue
		}
		record, err := e.evaluateGoalDegraded(ctx, goal, &domain.User{ID: userID}, targetLevel, now)
		if err != nil {
			return nil, err
		}
		have[userID] = domain.GoalEvaluationCache{GoalID: goal.ID, UserID: userID, Value: record.Value, Achieved: record.Achieved}
	}

	entries := make([]LeaderboardEntry, 0, len(have))
	for _, row := range have {
		entries = append(entries, LeaderboardEntry{UserID: row.UserID, Value: row.Value})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].UserID > entries[j].UserID
	})
	for i := range entries {
		entries[i].Position = i
	}
	return entries, nil
}
