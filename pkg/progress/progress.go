// Package progress computes a user's aggregate progress toward a goal by folding the
// user's stored Value rows in memory: predicate filtering, a timespan
// window, a cadence window, grouping, and cross-group aggregation.
package progress

import (
	"context"
	"time"

	"github.com/gengine/core/pkg/common"
	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/expr"
	"github.com/gengine/core/pkg/repository"
)

// Engine computes Goal progress against a ValuesRepository.
type Engine struct {
	values repository.ValuesRepository
}

// NewEngine creates a progress Engine backed by values.
func NewEngine(values repository.ValuesRepository) *Engine {
	return &Engine{values: values}
}

type groupKey struct {
	dateBucket string
	key        string
}

// Compute returns the user's current aggregate progress for goal, evaluated as of
// now. A goal is not tied to a single Variable by foreign key: its condition (if any)
// is the only thing that narrows which rows count, typically by testing
// `variable_name == "..."` — so every stored Value row for the user is a
// candidate. The timespan and cadence filters are pushed into the GetUserValues query
// boundary where possible (the timespan `since`); the condition predicate, grouping,
// and cross-group aggregation are folded over the returned rows in memory.
func (e *Engine) Compute(ctx context.Context, goal *domain.Goal, user *domain.User, now time.Time) (float64, error) {
	since := timespanSince(goal, now)
	rows, err := e.values.GetUserValues(ctx, user.ID, since)
	if err != nil {
		return 0, err
	}

	cadenceStart, hasCadence := cadenceWindowStart(goal.Evaluation, user.Timezone, now)
	loc := tzOrUTC(user.Timezone)

	grouping := goal.GroupByDateFormat != "" || goal.GroupByKey
	sums := make(map[groupKey]int64)
	var total int64
	var anyRow bool

	for _, row := range rows {
		if hasCadence && row.BucketTime.In(loc).Before(cadenceStart) {
			continue
		}
		if goal.Condition != "" {
			ok, err := expr.EvalCondition(goal.Condition, expr.Env{
				"variable_name": expr.Str(row.VariableName),
				"key":           expr.Str(row.Key),
			})
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
		}

		anyRow = true
		if grouping {
			var key groupKey
			if goal.GroupByDateFormat != "" {
				key.dateBucket = formatDate(row.BucketTime, user.Timezone, goal.GroupByDateFormat)
			}
			if goal.GroupByKey {
				key.key = row.Key
			}
			sums[key] += row.Value
		} else {
			total += row.Value
		}
	}

	if !grouping {
		return float64(total), nil
	}
	if !anyRow {
		return 0, nil
	}

	var agg int64
	first := true
	for _, v := range sums {
		if first {
			agg = v
			first = false
			continue
		}
		if goal.MaxMin == domain.MaxMinMin {
			if v < agg {
				agg = v
			}
		} else if v > agg {
			agg = v
		}
	}
	return float64(agg), nil
}

// timespanSince returns the timespan window's lower bound, or nil if
// the goal carries no timespan.
func timespanSince(goal *domain.Goal, now time.Time) *time.Time {
	if goal.TimespanDays == nil {
		return nil
	}
	since := now.UTC().AddDate(0, 0, -*goal.TimespanDays)
	return &since
}

// cadenceWindowStart returns the lower bound of the current cadence period in the
// user's timezone, or ok=false when evaluation is "immediately" or
// "end" (no additional window applies at evaluation time).
func cadenceWindowStart(evaluation domain.GoalEvaluation, timezone string, now time.Time) (time.Time, bool) {
	switch evaluation {
	case domain.GoalEvaluationDaily:
		return common.BucketTime("day", timezone, now), true
	case domain.GoalEvaluationWeekly:
		return common.BucketTime("week", timezone, now), true
	case domain.GoalEvaluationMonthly:
		return common.BucketTime("month", timezone, now), true
	case domain.GoalEvaluationYearly:
		return common.BucketTime("year", timezone, now), true
	default:
		return time.Time{}, false
	}
}

func tzOrUTC(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
