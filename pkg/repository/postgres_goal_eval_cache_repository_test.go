package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gengine/core/pkg/domain"
)

// TestPostgresGoalEvalCacheRepository_UpsertAndGet exercises the durable mirror the
// in-memory goal_eval memo is kept in sync with.
func TestPostgresGoalEvalCacheRepository_UpsertAndGet(t *testing.T) {
	conn := connectForTest(t)
	defer func() { _ = conn.Close() }()

	repo := NewPostgresGoalEvalCacheRepository(conn)
	ctx := context.Background()
	goalID := "test-goal-" + uuid.NewString()
	userID := "test-user-" + uuid.NewString()
	defer func() { _, _ = conn.ExecContext(ctx, `DELETE FROM goal_evaluation_cache WHERE goal_id = $1`, goalID) }()

	got, err := repo.Get(ctx, goalID, userID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Upsert(ctx, domain.GoalEvaluationCache{
		GoalID: goalID, UserID: userID, Value: 5, Achieved: false,
	}))
	got, err = repo.Get(ctx, goalID, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(5), got.Value)
	assert.False(t, got.Achieved)

	require.NoError(t, repo.Upsert(ctx, domain.GoalEvaluationCache{
		GoalID: goalID, UserID: userID, Value: 9, Achieved: true,
	}))
	got, err = repo.Get(ctx, goalID, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(9), got.Value)
	assert.True(t, got.Achieved)

	require.NoError(t, repo.Delete(ctx, goalID, userID))
	got, err = repo.Get(ctx, goalID, userID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestPostgresGoalEvalCacheRepository_GetForUsers exercises the leaderboard read
// path: reading cached values for a whole cohort in one query.
func TestPostgresGoalEvalCacheRepository_GetForUsers(t *testing.T) {
	conn := connectForTest(t)
	defer func() { _ = conn.Close() }()

	repo := NewPostgresGoalEvalCacheRepository(conn)
	ctx := context.Background()
	goalID := "test-goal-forusers-" + uuid.NewString()
	userA, userB := "user-a-"+uuid.NewString(), "user-b-"+uuid.NewString()
	defer func() { _, _ = conn.ExecContext(ctx, `DELETE FROM goal_evaluation_cache WHERE goal_id = $1`, goalID) }()

	require.NoError(t, repo.Upsert(ctx, domain.GoalEvaluationCache{GoalID: goalID, UserID: userA, Value: 1}))
	require.NoError(t, repo.Upsert(ctx, domain.GoalEvaluationCache{GoalID: goalID, UserID: userB, Value: 2}))

	rows, err := repo.GetForUsers(ctx, goalID, []string{userA, userB, "user-without-a-row"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	empty, err := repo.GetForUsers(ctx, goalID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
