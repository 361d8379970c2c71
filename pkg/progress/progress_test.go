package progress

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/repository"
)

type fakeValuesRepository struct {
	rows []repository.ValueRow
}

func (f *fakeValuesRepository) IncreaseValue(ctx context.Context, userID, variableID string, bucketTime time.Time, key string, amount int64) error {
	return nil
}

func (f *fakeValuesRepository) BatchIncreaseValues(ctx context.Context, increments []repository.ValueIncrement) error {
	return nil
}

func (f *fakeValuesRepository) GetUserValues(ctx context.Context, userID string, since *time.Time) ([]repository.ValueRow, error) {
	if since == nil {
		return f.rows, nil
	}
	var out []repository.ValueRow
	for _, r := range f.rows {
		if !r.BucketTime.Before(*since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeValuesRepository) DeleteForUser(ctx context.Context, userID string) error { return nil }

func (f *fakeValuesRepository) DeleteForUserInTx(ctx context.Context, tx *sql.Tx, userID string) error {
	return nil
}

var _ repository.ValuesRepository = (*fakeValuesRepository)(nil)

func TestCompute_SumAcrossAllVariablesWithNoCondition(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", BucketTime: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Value: 3},
		{VariableName: "points", BucketTime: time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC), Value: 4},
		{VariableName: "other", BucketTime: time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC), Value: 100},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, float64(107), got)
}

func TestCompute_ConditionNarrowsToOneVariable(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", BucketTime: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Value: 3},
		{VariableName: "points", BucketTime: time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC), Value: 4},
		{VariableName: "other", BucketTime: time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC), Value: 100},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately, Condition: `variable_name == "points"`}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, float64(7), got)
}

func TestCompute_NoMatchingRowsReturnsZero(t *testing.T) {
	repo := &fakeValuesRepository{}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(0), got)
}

func TestCompute_TimespanExcludesOldRows(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", BucketTime: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 50},
		{VariableName: "points", BucketTime: time.Date(2026, 7, 28, 0, 0, 0, 0, time.UTC), Value: 5},
	}}
	engine := NewEngine(repo)
	timespan := 7
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately, TimespanDays: &timespan}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, float64(5), got)
}

func TestCompute_CadenceWindowDaily(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", BucketTime: time.Date(2026, 7, 28, 23, 0, 0, 0, time.UTC), Value: 9},
		{VariableName: "points", BucketTime: time.Date(2026, 7, 29, 1, 0, 0, 0, time.UTC), Value: 2},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationDaily}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)
}

func TestCompute_GroupByKeyMax(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", Key: "a", BucketTime: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), Value: 3},
		{VariableName: "points", Key: "a", BucketTime: time.Date(2026, 7, 29, 1, 0, 0, 0, time.UTC), Value: 4},
		{VariableName: "points", Key: "b", BucketTime: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), Value: 20},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately, GroupByKey: true, MaxMin: domain.MaxMinMax}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(20), got)
}

func TestCompute_GroupByKeyMin(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", Key: "a", BucketTime: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), Value: 3},
		{VariableName: "points", Key: "b", BucketTime: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), Value: 20},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately, GroupByKey: true, MaxMin: domain.MaxMinMin}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)
}

func TestCompute_ConditionFiltersByKey(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", Key: "gold", BucketTime: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), Value: 3},
		{VariableName: "points", Key: "silver", BucketTime: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), Value: 9},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately, Condition: `key == "gold"`}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)
}

func TestCompute_GroupByDateFormat(t *testing.T) {
	repo := &fakeValuesRepository{rows: []repository.ValueRow{
		{VariableName: "points", BucketTime: time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC), Value: 3},
		{VariableName: "points", BucketTime: time.Date(2026, 7, 27, 12, 0, 0, 0, time.UTC), Value: 4},
		{VariableName: "points", BucketTime: time.Date(2026, 7, 28, 0, 0, 0, 0, time.UTC), Value: 1},
	}}
	engine := NewEngine(repo)
	goal := &domain.Goal{Evaluation: domain.GoalEvaluationImmediately, GroupByDateFormat: "YYYY-MM-DD", MaxMin: domain.MaxMinMax}
	user := &domain.User{ID: "u1", Timezone: "UTC"}

	got, err := engine.Compute(context.Background(), goal, user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, float64(7), got)
}
