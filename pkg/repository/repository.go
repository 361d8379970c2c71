// Package repository defines the persistence interfaces the evaluation core reads and
// writes through: Values, AchievementUser level rows, the GoalEvaluationCache durable
// mirror, and the User/Friend/Group/Translation collaborators consumed by cohort
// resolution and translation rendering. PostgresXxxRepository implementations back each
// interface with the lib/pq driver using upsert-on-conflict and COPY bulk-load
// techniques.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/gengine/core/pkg/domain"
)

// TxRunner runs fn inside one database transaction: the transaction commits when fn
// returns nil and rolls back otherwise. Engine operations that must never leave
// partially-applied state visible (set_user_infos, delete_user) thread the *sql.Tx it
// hands them through the repositories' ...InTx variants. PostgresTxRunner backs it
// with *sql.DB.BeginTx; in-memory test doubles run fn with a nil transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// sqlExecutor is the statement-execution subset shared by *sql.DB and *sql.Tx,
// letting one statement helper serve both a pool-backed method and its ...InTx
// variant.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ValueRow is one Values store row joined with its variable's name, as returned by
// ValuesRepository.GetUserValues for the progress engine's in-memory fold.
type ValueRow struct {
	VariableName string
	BucketTime   time.Time
	Key          string
	Value        int64
}

// ValueIncrement is one row of a bulk value backfill (see
// ValuesRepository.BatchIncreaseValues): the same upsert-add unit as a single
// IncreaseValue call, batched for bulk loading.
type ValueIncrement struct {
	UserID     string
	VariableID string
	BucketTime time.Time
	Key        string
	Amount     int64
}

// ValuesRepository backs the values store: append/update numeric
// observations keyed by (user, variable, bucket_time, key).
type ValuesRepository interface {
	// IncreaseValue upserts (userID, variableID, bucketTime, key): if a row exists its
	// value is incremented by amount (upsert-add), otherwise a new row is inserted.
	IncreaseValue(ctx context.Context, userID, variableID string, bucketTime time.Time, key string, amount int64) error

	// BatchIncreaseValues upserts many increments in one round trip, for bulk backfills
	// (e.g. replaying an event export into the values store) where one IncreaseValue
	// call per row would be prohibitively slow. Increments targeting the same (user,
	// variable, bucket_time, key) within the same batch are summed before being added
	// to any existing row, preserving the same commutative upsert-add semantics as
	// IncreaseValue.
	BatchIncreaseValues(ctx context.Context, increments []ValueIncrement) error

	// GetUserValues returns every Value row for userID, joined with its variable's
	// name, optionally restricted server-side to rows with datetime >= since (the
	// goal timespan window) when since is non-nil. Pushing the timespan filter into
	// the query bounds how much the in-memory fold has to walk.
	GetUserValues(ctx context.Context, userID string, since *time.Time) ([]ValueRow, error)

	// DeleteForUser removes every Value row for userID (cascading part of delete_user).
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteForUserInTx is DeleteForUser scoped to an enclosing transaction.
	DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// AchievementUserRepository backs the AchievementUser level-award trail: one row
// per level, never mutated in place.
type AchievementUserRepository interface {
	// GetMaxLevel returns the highest level row for (userID, achievementID), or 0 if
	// none exists.
	GetMaxLevel(ctx context.Context, userID, achievementID string) (int, error)

	// GetLevelsAchieved returns level -> awarded-at timestamp for every level row of
	// (userID, achievementID).
	GetLevelsAchieved(ctx context.Context, userID, achievementID string) (map[int]time.Time, error)

	// InsertLevel inserts a new (userID, achievementID, level) row. A duplicate-key
	// violation of the uniqueness constraint on (user, achievement, level) is
	// reported as *errors.EngineError with ErrCodeConflict — callers must treat
	// that as "already awarded by a concurrent evaluator" and re-read state.
	InsertLevel(ctx context.Context, userID, achievementID string, level int, awardedAt time.Time) error

	// DeleteForUser removes every level row for userID (cascading part of
	// delete_user).
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteForUserInTx is DeleteForUser scoped to an enclosing transaction.
	DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// GoalEvalCacheRepository backs the durable mirror of the in-memory goal_eval memo:
// GoalEvaluationCache rows keyed by (goal, user).
type GoalEvalCacheRepository interface {
	// Get returns the persisted evaluation for (goalID, userID), or nil if absent.
	Get(ctx context.Context, goalID, userID string) (*domain.GoalEvaluationCache, error)

	// GetForUsers returns the persisted evaluation rows for goalID across every member
	// of userIDs that has one — used by the leaderboard to read cached
	// values for a cohort without per-user round trips.
	GetForUsers(ctx context.Context, goalID string, userIDs []string) ([]domain.GoalEvaluationCache, error)

	// Upsert persists record, replacing any existing row for (record.GoalID,
	// record.UserID).
	Upsert(ctx context.Context, record domain.GoalEvaluationCache) error

	// Delete removes the persisted evaluation for (goalID, userID), if any.
	Delete(ctx context.Context, goalID, userID string) error

	// DeleteForUser removes every evaluation row for userID (cascading part of
	// delete_user).
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteForUserInTx is DeleteForUser scoped to an enclosing transaction.
	DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// UserRepository backs the User entity: identity, timezone, optional geo.
type UserRepository interface {
	// Get returns the user, or nil if no such user exists.
	Get(ctx context.Context, userID string) (*domain.User, error)

	// Upsert creates or updates a user's profile fields.
	Upsert(ctx context.Context, user *domain.User) error

	// UpsertInTx is Upsert scoped to an enclosing transaction (set_user_infos runs
	// the profile update and both edge reconciliations in one transaction).
	UpsertInTx(ctx context.Context, tx *sql.Tx, user *domain.User) error

	// Delete removes the user row. Callers are responsible for cascading removal of
	// the user's values, friendships, group memberships, achievement level rows, and
	// goal caches first (see engine.DeleteUser).
	Delete(ctx context.Context, userID string) error

	// DeleteInTx is Delete scoped to an enclosing transaction.
	DeleteInTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// FriendRepository backs the directed friend-edge relation: `from_user ->
// to_user`. Exposed as adjacency queries, not a navigable object graph.
type FriendRepository interface {
	// GetFriends returns the user IDs userID has a from->to edge to (userID's own
	// friends list, used to build the "friends" cohort).
	GetFriends(ctx context.Context, userID string) ([]string, error)

	// GetReverseFriends returns the user IDs that list userID as a friend (the
	// "reverse cohort" used for achievement_eval invalidation fan-out).
	GetReverseFriends(ctx context.Context, userID string) ([]string, error)

	// SetFriends reconciles userID's friend edges to exactly friendIDs via a
	// diff-based insert/delete (set_user_infos).
	SetFriends(ctx context.Context, userID string, friendIDs []string) error

	// SetFriendsInTx is SetFriends scoped to an enclosing transaction.
	SetFriendsInTx(ctx context.Context, tx *sql.Tx, userID string, friendIDs []string) error

	// DeleteForUser removes every edge naming userID as either endpoint (cascading
	// part of delete_user).
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteForUserInTx is DeleteForUser scoped to an enclosing transaction.
	DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// GroupRepository backs the group-membership set relation.
type GroupRepository interface {
	// GetGroups returns the group IDs userID belongs to.
	GetGroups(ctx context.Context, userID string) ([]string, error)

	// SetGroups reconciles userID's group memberships to exactly groupIDs via a
	// diff-based insert/delete (set_user_infos).
	SetGroups(ctx context.Context, userID string, groupIDs []string) error

	// SetGroupsInTx is SetGroups scoped to an enclosing transaction.
	SetGroupsInTx(ctx context.Context, tx *sql.Tx, userID string, groupIDs []string) error

	// DeleteForUser removes every membership row for userID (cascading part of
	// delete_user).
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteForUserInTx is DeleteForUser scoped to an enclosing transaction.
	DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// TranslationRepository backs the translation system: Language, TranslationVariable,
// Translation.
type TranslationRepository interface {
	// GetLanguages returns every defined language, including which one is the
	// fallback.
	GetLanguages(ctx context.Context) ([]domain.Language, error)

	// GetTranslationTexts returns language -> raw template text for every Translation
	// row defined for translationID. A language with no row is absent from the
	// result; pkg/client's TranslationResolver fills it from the fallback.
	GetTranslationTexts(ctx context.Context, translationID string) (map[string]string, error)
}
