package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/errors"
)

// PostgresGoalEvalCacheRepository implements GoalEvalCacheRepository using PostgreSQL,
// the durable mirror the in-memory goal_eval memo is kept in sync with on every write
// and invalidation.
type PostgresGoalEvalCacheRepository struct {
	db *sql.DB
}

// NewPostgresGoalEvalCacheRepository creates a new PostgreSQL-backed repository.
func NewPostgresGoalEvalCacheRepository(db *sql.DB) *PostgresGoalEvalCacheRepository {
	return &PostgresGoalEvalCacheRepository{db: db}
}

// Get returns the persisted evaluation for (goalID, userID), or nil if absent.
func (r *PostgresGoalEvalCacheRepository) Get(ctx context.Context, goalID, userID string) (*domain.GoalEvaluationCache, error) {
	var record domain.GoalEvaluationCache
	err := r.db.QueryRowContext(ctx, `
		SELECT goal_id, user_id, value, achieved FROM goal_evaluation_cache
		WHERE goal_id = $1 AND user_id = $2
	`, goalID, userID).Scan(&record.GoalID, &record.UserID, &record.Value, &record.Achieved)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("get goal evaluation cache", err)
	}
	return &record, nil
}

// GetForUsers returns the persisted evaluation rows for goalID across userIDs.
func (r *PostgresGoalEvalCacheRepository) GetForUsers(ctx context.Context, goalID string, userIDs []string) ([]domain.GoalEvaluationCache, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT goal_id, user_id, value, achieved FROM goal_evaluation_cache
		WHERE goal_id = $1 AND user_id = ANY($2)
	`, goalID, pq.Array(userIDs))
	if err != nil {
		return nil, errors.NewStoreError("get goal evaluation cache for users", err)
	}
	defer func() { _ = rows.Close() }()

	var results []domain.GoalEvaluationCache
	for rows.Next() {
		var record domain.GoalEvaluationCache
		if err := rows.Scan(&record.GoalID, &record.UserID, &record.Value, &record.Achieved); err != nil {
			return nil, errors.NewStoreError("scan goal evaluation cache row", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate goal evaluation cache rows", err)
	}
	return results, nil
}

// Upsert persists record, replacing any existing row for (GoalID, UserID).
func (r *PostgresGoalEvalCacheRepository) Upsert(ctx context.Context, record domain.GoalEvaluationCache) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goal_evaluation_cache (goal_id, user_id, value, achieved)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (goal_id, user_id) DO UPDATE SET
			value = EXCLUDED.value,
			achieved = EXCLUDED.achieved
	`, record.GoalID, record.UserID, record.Value, record.Achieved)
	if err != nil {
		return errors.NewStoreError("upsert goal evaluation cache", err)
	}
	return nil
}

// Delete removes the persisted evaluation for (goalID, userID), if any.
func (r *PostgresGoalEvalCacheRepository) Delete(ctx context.Context, goalID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM goal_evaluation_cache WHERE goal_id = $1 AND user_id = $2
	`, goalID, userID)
	if err != nil {
		return errors.NewStoreError("delete goal evaluation cache", err)
	}
	return nil
}

// DeleteForUser removes every evaluation row for userID.
func (r *PostgresGoalEvalCacheRepository) DeleteForUser(ctx context.Context, userID string) error {
	return deleteGoalEvalCacheForUser(ctx, r.db, userID)
}

// DeleteForUserInTx is DeleteForUser running on an enclosing transaction.
func (r *PostgresGoalEvalCacheRepository) DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return deleteGoalEvalCacheForUser(ctx, tx, userID)
}

func deleteGoalEvalCacheForUser(ctx context.Context, ex sqlExecutor, userID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM goal_evaluation_cache WHERE user_id = $1`, userID)
	if err != nil {
		return errors.NewStoreError("delete goal evaluation cache for user", err)
	}
	return nil
}
