// Package engine wires the catalog cache, evaluation caches, progress engine, and
// achievement evaluator into the top-level operations exposed to the HTTP/RPC layer:
// increase_value, evaluate_achievement, get_achievements_for_user_today,
// set_user_infos, and delete_user.
package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/gengine/core/pkg/achievement"
	"github.com/gengine/core/pkg/cache"
	"github.com/gengine/core/pkg/client"
	"github.com/gengine/core/pkg/common"
	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/errors"
	"github.com/gengine/core/pkg/progress"
	"github.com/gengine/core/pkg/repository"
)

// Engine is the top-level orchestrator for the gamification core. It is the single
// entry point an HTTP/RPC layer holds a reference to; every exposed operation
// is a method on Engine.
type Engine struct {
	catalog          cache.CatalogCache
	evalCache        cache.EvalCache
	evaluator        *achievement.Evaluator
	values           repository.ValuesRepository
	users            repository.UserRepository
	friends          repository.FriendRepository
	groups           repository.GroupRepository
	achievementUsers repository.AchievementUserRepository
	goalEvalRepo     repository.GoalEvalCacheRepository
	txRunner         repository.TxRunner
	permissions      client.PermissionResolver
	settings         client.SettingsProvider
	logger           *slog.Logger

	todayMu    sync.Mutex
	todayCache map[string]todayCacheEntry
}

type todayCacheEntry struct {
	computedFor time.Time // the user's local "today" bucket this entry was computed for
	result      []*domain.Achievement
}

// Deps bundles Engine's collaborators. Grouping them avoids an unwieldy
// fifteen-argument constructor while keeping every dependency explicit at the call site.
type Deps struct {
	Catalog          cache.CatalogCache
	EvalCache        cache.EvalCache
	Values           repository.ValuesRepository
	Users            repository.UserRepository
	Friends          repository.FriendRepository
	Groups           repository.GroupRepository
	AchievementUsers repository.AchievementUserRepository
	GoalEvalCache    repository.GoalEvalCacheRepository
	TxRunner         repository.TxRunner
	Translations     client.TranslationResolver
	Rewards          client.RewardClient
	Permissions      client.PermissionResolver
	Settings         client.SettingsProvider
	Namespace        string
	Logger           *slog.Logger
}

// New constructs an Engine from deps. The achievement.Evaluator is wired with the
// Engine itself as its ValueIncreaser, closing the reward-variable loop: an
// is_variable property awarded during level-up calls back into IncreaseValue.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		catalog:          deps.Catalog,
		evalCache:        deps.EvalCache,
		values:           deps.Values,
		users:            deps.Users,
		friends:          deps.Friends,
		groups:           deps.Groups,
		achievementUsers: deps.AchievementUsers,
		goalEvalRepo:     deps.GoalEvalCache,
		txRunner:         deps.TxRunner,
		permissions:      deps.Permissions,
		settings:         deps.Settings,
		logger:           logger,
		todayCache:       make(map[string]todayCacheEntry),
	}

	progressEngine := progress.NewEngine(deps.Values)
	e.evaluator = achievement.NewEvaluator(
		deps.Catalog,
		deps.EvalCache,
		progressEngine,
		deps.AchievementUsers,
		deps.GoalEvalCache,
		deps.Friends,
		deps.Translations,
		deps.Rewards,
		valueIncreaserFunc(e.increaseValueUnchecked),
		deps.Namespace,
		logger,
	)
	return e
}

// valueIncreaserFunc adapts a plain function to achievement.ValueIncreaser, so the
// auto-materialization callback can reach Engine's internal, permission-ungated
// increase path without Engine itself needing to satisfy that exact signature
// alongside its permission-checked public one.
type valueIncreaserFunc func(ctx context.Context, variableName, userID string, amount int64, key string) error

func (f valueIncreaserFunc) IncreaseValue(ctx context.Context, variableName, userID string, amount int64, key string) error {
	return f(ctx, variableName, userID, amount, key)
}

// IncreaseValue implements increase_value: resolve the variable, gate on
// may_increase, compute the timezone-aware bucket, upsert the value, and invalidate
// every cache the variable's reverse index names. requestingUserID is the caller's own
// identity (from the inbound request); it may differ from userID only when the
// variable's increase_permission is "admin" and requestingUserID holds that permission.
func (e *Engine) IncreaseValue(ctx context.Context, requestingUserID, variableName, userID string, amount int64, key string) error {
	variable := e.catalog.GetVariableByName(variableName)
	if variable == nil {
		return errors.NewUnknownVariableError(variableName)
	}
	if !e.mayIncrease(ctx, variable, requestingUserID, userID) {
		return errors.NewPermissionDeniedError(variableName, requestingUserID)
	}
	return e.increaseValueUnchecked(ctx, variableName, userID, amount, key)
}

// mayIncrease implements the may_increase gate: when authentication is disabled
// entirely (settings.enable_user_authentication is falsy), every increase is allowed.
// Otherwise an "own" variable may only be increased by the user it targets, and an
// "admin" variable requires the requester hold the "admin" permission, whichever user
// it targets.
func (e *Engine) mayIncrease(ctx context.Context, variable *domain.Variable, requestingUserID, targetUserID string) bool {
	if e.settings == nil || !e.settings.Bool("enable_user_authentication") {
		return true
	}
	if variable.IncreasePermission == domain.IncreasePermissionAdmin {
		return e.permissions != nil && e.permissions.HasPermission(ctx, requestingUserID, "admin")
	}
	return requestingUserID == targetUserID
}

// increaseValueUnchecked performs the increase without the may_increase gate; used both
// by the public, permission-checked IncreaseValue and by the auto-materialization
// callback from pkg/achievement, which is a system-internal write, not a user request.
func (e *Engine) increaseValueUnchecked(ctx context.Context, variableName, userID string, amount int64, key string) error {
	variable := e.catalog.GetVariableByName(variableName)
	if variable == nil {
		return errors.NewUnknownVariableError(variableName)
	}

	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	timezone := ""
	if user != nil {
		timezone = user.Timezone
	}

	bucketTime := common.BucketTime(string(variable.Group), timezone, time.Now())
	if err := e.values.IncreaseValue(ctx, userID, variable.ID, bucketTime, key, amount); err != nil {
		return err
	}

	reverseCohort := func(a *domain.Achievement, userID string) []string {
		return e.evaluator.ReverseCohort(ctx, a, userID)
	}
	cache.InvalidateForVariable(e.catalog, e.evalCache, variableName, userID, reverseCohort)
	return nil
}

// EvaluateAchievement implements evaluate_achievement, delegating to
// achievement.Evaluator after resolving the user.
func (e *Engine) EvaluateAchievement(ctx context.Context, userID, achievementID string) (*achievement.Result, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewUserNotFoundError(userID)
	}
	return e.evaluator.EvaluateAchievement(ctx, user, achievementID, time.Now())
}

// GetAchievementsForUserToday implements get_achievements_for_user_today: every
// catalog achievement valid for the current instant and, for achievements carrying a
// location, within max_distance of the user's current position. Achievements without a
// location are included unconditionally. The result is cached until the end of the
// user's local day.
func (e *Engine) GetAchievementsForUserToday(ctx context.Context, userID string) ([]*domain.Achievement, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewUserNotFoundError(userID)
	}

	now := time.Now()
	today := common.BucketTime("day", user.Timezone, now)

	e.todayMu.Lock()
	if entry, ok := e.todayCache[userID]; ok && entry.computedFor.Equal(today) {
		e.todayMu.Unlock()
		return entry.result, nil
	}
	e.todayMu.Unlock()

	result := make([]*domain.Achievement, 0)
	for _, a := range e.catalog.GetAllAchievements() {
		if a.ValidStart != nil && now.Before(*a.ValidStart) {
			continue
		}
		if a.ValidEnd != nil && now.After(*a.ValidEnd) {
			continue
		}
		if a.Lat != nil && a.Lng != nil && a.MaxDistanceKm != nil {
			if user.Lat == nil || user.Lng == nil {
				continue
			}
			distance := common.HaversineKm(*user.Lat, *user.Lng, *a.Lat, *a.Lng)
			if distance > *a.MaxDistanceKm {
				continue
			}
		}
		result = append(result, a)
	}

	e.todayMu.Lock()
	e.todayCache[userID] = todayCacheEntry{computedFor: today, result: result}
	e.todayMu.Unlock()

	return result, nil
}

// SetUserInfos implements set_user_infos: upsert the user's profile fields and
// reconcile friend edges and group memberships to exactly the given sets via a
// diff-based insert/delete. All three steps run inside one transaction so a partial
// reconciliation is never visible.
func (e *Engine) SetUserInfos(ctx context.Context, userID string, lat, lng *float64, timezone, country, region, city string, friendIDs, groupIDs []string) error {
	user := &domain.User{
		ID:       userID,
		Timezone: timezone,
		Lat:      lat,
		Lng:      lng,
		Country:  country,
		Region:   region,
		City:     city,
	}
	err := e.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		if err := e.users.UpsertInTx(ctx, tx, user); err != nil {
			return err
		}
		if e.friends != nil {
			if err := e.friends.SetFriendsInTx(ctx, tx, userID, friendIDs); err != nil {
				return err
			}
		}
		if e.groups != nil {
			if err := e.groups.SetGroupsInTx(ctx, tx, userID, groupIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.todayMu.Lock()
	delete(e.todayCache, userID)
	e.todayMu.Unlock()

	return nil
}

// DeleteUser implements delete_user: cascading removal across durable state, inside
// one transaction, in dependency order — AchievementUser rows, then the
// GoalEvaluationCache mirror, then friend edges, then group memberships, then Value
// rows, and finally the User row itself — followed by evicting the user from every
// in-memory cache keyed by user id.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	err := e.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		if err := e.achievementUsers.DeleteForUserInTx(ctx, tx, userID); err != nil {
			return err
		}
		if err := e.goalEvalRepo.DeleteForUserInTx(ctx, tx, userID); err != nil {
			return err
		}
		if e.friends != nil {
			if err := e.friends.DeleteForUserInTx(ctx, tx, userID); err != nil {
				return err
			}
		}
		if e.groups != nil {
			if err := e.groups.DeleteForUserInTx(ctx, tx, userID); err != nil {
				return err
			}
		}
		if err := e.values.DeleteForUserInTx(ctx, tx, userID); err != nil {
			return err
		}
		return e.users.DeleteInTx(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	// Evict the user from the in-memory evaluation caches too. Best effort: the
	// durable rows are already gone, so a missed eviction can only serve until the
	// next invalidation.
	for _, a := range e.catalog.GetAllAchievements() {
		e.evalCache.InvalidateAchievementEval(userID, a.ID)
		e.evalCache.InvalidateAwardedLevel(userID, a.ID)
		for _, g := range a.Goals {
			e.evalCache.InvalidateGoalEval(g.ID, userID)
		}
	}

	e.todayMu.Lock()
	delete(e.todayCache, userID)
	e.todayMu.Unlock()

	return nil
}
