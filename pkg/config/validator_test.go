package config

import (
	"strings"
	"testing"

	"github.com/gengine/core/pkg/domain"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestValidator_Validate(t *testing.T) {
	baseGoal := func() *domain.Goal {
		return &domain.Goal{
			ID:         "goal-1",
			Evaluation: domain.GoalEvaluationImmediately,
			Goal:       "level*100",
			Operator:   domain.OperatorGeq,
			MaxMin:     domain.MaxMinMax,
		}
	}
	baseAchievement := func() *domain.Achievement {
		return &domain.Achievement{
			ID:             "achievement-1",
			MaxLevel:       3,
			Relevance:      domain.RelevanceOwn,
			ViewPermission: domain.ViewPermissionEveryone,
			Goals:          []*domain.Goal{baseGoal()},
		}
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  &Config{Achievements: []*domain.Achievement{baseAchievement()}},
			wantErr: false,
		},
		{
			name:    "empty achievements",
			config:  &Config{Achievements: []*domain.Achievement{}},
			wantErr: true,
			errMsg:  "config must have at least one achievement",
		},
		{
			name: "empty achievement ID",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.ID = ""
				return a
			}()}},
			wantErr: true,
			errMsg:  "achievement ID cannot be empty",
		},
		{
			name: "maxlevel zero",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.MaxLevel = 0
				return a
			}()}},
			wantErr: true,
			errMsg:  "maxlevel must be >= 1",
		},
		{
			name: "invalid relevance",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Relevance = "enemies"
				return a
			}()}},
			wantErr: true,
			errMsg:  "invalid relevance 'enemies'",
		},
		{
			name: "invalid view_permission",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.ViewPermission = "nobody"
				return a
			}()}},
			wantErr: true,
			errMsg:  "invalid view_permission 'nobody'",
		},
		{
			name: "max_distance without lat/lng",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.MaxDistanceKm = floatPtr(5)
				return a
			}()}},
			wantErr: true,
			errMsg:  "max_distance requires both lat and lng to be set",
		},
		{
			name: "max_distance with lat and lng is valid",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.MaxDistanceKm = floatPtr(5)
				a.Lat = floatPtr(1.0)
				a.Lng = floatPtr(2.0)
				return a
			}()}},
			wantErr: false,
		},
		{
			name: "duplicate achievement IDs",
			config: &Config{Achievements: []*domain.Achievement{
				baseAchievement(),
				func() *domain.Achievement {
					a := baseAchievement()
					a.Goals = []*domain.Goal{{
						ID:         "goal-2",
						Evaluation: domain.GoalEvaluationImmediately,
						Goal:       "level",
						Operator:   domain.OperatorGeq,
						MaxMin:     domain.MaxMinMax,
					}}
					return a
				}(),
			}},
			wantErr: true,
			errMsg:  "duplicate achievement ID: achievement-1",
		},
		{
			name: "empty goal ID",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].ID = ""
				return a
			}()}},
			wantErr: true,
			errMsg:  "goal ID cannot be empty",
		},
		{
			name: "invalid evaluation cadence",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].Evaluation = "hourly"
				return a
			}()}},
			wantErr: true,
			errMsg:  "invalid evaluation cadence 'hourly'",
		},
		{
			name: "invalid operator",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].Operator = "eq"
				return a
			}()}},
			wantErr: true,
			errMsg:  "invalid operator 'eq'",
		},
		{
			name: "invalid maxmin",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].MaxMin = "mean"
				return a
			}()}},
			wantErr: true,
			errMsg:  "invalid maxmin 'mean'",
		},
		{
			name: "negative timespan",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].TimespanDays = intPtr(-1)
				return a
			}()}},
			wantErr: true,
			errMsg:  "timespan must be positive when set",
		},
		{
			name: "positive timespan is valid",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].TimespanDays = intPtr(7)
				return a
			}()}},
			wantErr: false,
		},
		{
			name: "malformed condition expression",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].Condition = "variable_name =="
				return a
			}()}},
			wantErr: true,
			errMsg:  "condition does not parse",
		},
		{
			name: "valid condition expression",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].Condition = `variable_name=="points"`
				return a
			}()}},
			wantErr: false,
		},
		{
			name: "empty goal expression",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].Goal = ""
				return a
			}()}},
			wantErr: true,
			errMsg:  "goal expression cannot be empty",
		},
		{
			name: "malformed goal expression",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Goals[0].Goal = "level *"
				return a
			}()}},
			wantErr: true,
			errMsg:  "goal expression does not parse",
		},
		{
			name: "duplicate goal IDs",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				second := baseGoal()
				a.Goals = append(a.Goals, second)
				return a
			}()}},
			wantErr: true,
			errMsg:  "duplicate goal ID: goal-1",
		},
		{
			name: "reward from_level zero",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Rewards = []*domain.Reward{{ID: "reward-1", FromLevel: 0, Type: domain.RewardTypeItem, RewardID: "item_1", Quantity: "1"}}
				return a
			}()}},
			wantErr: true,
			errMsg:  "from_level must be >= 1",
		},
		{
			name: "invalid reward type",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Rewards = []*domain.Reward{{ID: "reward-1", FromLevel: 1, Type: "UNKNOWN", RewardID: "item_1", Quantity: "1"}}
				return a
			}()}},
			wantErr: true,
			errMsg:  "unsupported reward type 'UNKNOWN'",
		},
		{
			name: "empty reward_id",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Rewards = []*domain.Reward{{ID: "reward-1", FromLevel: 1, Type: domain.RewardTypeItem, RewardID: "", Quantity: "1"}}
				return a
			}()}},
			wantErr: true,
			errMsg:  "reward_id cannot be empty",
		},
		{
			name: "malformed quantity expression",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Rewards = []*domain.Reward{{ID: "reward-1", FromLevel: 1, Type: domain.RewardTypeItem, RewardID: "item_1", Quantity: "level *"}}
				return a
			}()}},
			wantErr: true,
			errMsg:  "quantity expression does not parse",
		},
		{
			name: "valid WALLET reward with expression quantity",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Rewards = []*domain.Reward{{ID: "reward-1", FromLevel: 1, Type: domain.RewardTypeWallet, RewardID: "GOLD", Quantity: "level*10"}}
				return a
			}()}},
			wantErr: false,
		},
		{
			name: "achievement property from_level zero",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Properties = []*domain.AchievementProperty{{ID: "prop-1", FromLevel: 0, Name: "badge_color"}}
				return a
			}()}},
			wantErr: true,
			errMsg:  "from_level must be >= 1",
		},
		{
			name: "achievement property empty name",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Properties = []*domain.AchievementProperty{{ID: "prop-1", FromLevel: 1, Name: ""}}
				return a
			}()}},
			wantErr: true,
			errMsg:  "property name cannot be empty",
		},
		{
			name: "valid achievement property",
			config: &Config{Achievements: []*domain.Achievement{func() *domain.Achievement {
				a := baseAchievement()
				a.Properties = []*domain.AchievementProperty{{ID: "prop-1", FromLevel: 1, Name: "badge_color", Value: "gold"}}
				return a
			}()}},
			wantErr: false,
		},
		{
			name: "empty variable name",
			config: &Config{
				Achievements: []*domain.Achievement{baseAchievement()},
				Variables:    []*domain.Variable{{Name: "", Group: domain.VariableGroupDay, IncreasePermission: domain.IncreasePermissionOwn}},
			},
			wantErr: true,
			errMsg:  "variable name cannot be empty",
		},
		{
			name: "invalid variable group",
			config: &Config{
				Achievements: []*domain.Achievement{baseAchievement()},
				Variables:    []*domain.Variable{{Name: "points", Group: "hourly", IncreasePermission: domain.IncreasePermissionOwn}},
			},
			wantErr: true,
			errMsg:  "invalid group 'hourly'",
		},
		{
			name: "invalid variable increase_permission",
			config: &Config{
				Achievements: []*domain.Achievement{baseAchievement()},
				Variables:    []*domain.Variable{{Name: "points", Group: domain.VariableGroupDay, IncreasePermission: "everyone"}},
			},
			wantErr: true,
			errMsg:  "invalid increase_permission 'everyone'",
		},
		{
			name: "duplicate variable names",
			config: &Config{
				Achievements: []*domain.Achievement{baseAchievement()},
				Variables: []*domain.Variable{
					{Name: "points", Group: domain.VariableGroupDay, IncreasePermission: domain.IncreasePermissionOwn},
					{Name: "points", Group: domain.VariableGroupMonth, IncreasePermission: domain.IncreasePermissionOwn},
				},
			},
			wantErr: true,
			errMsg:  "duplicate variable name: points",
		},
		{
			name: "valid variables",
			config: &Config{
				Achievements: []*domain.Achievement{baseAchievement()},
				Variables: []*domain.Variable{
					{Name: "points", Group: domain.VariableGroupDay, IncreasePermission: domain.IncreasePermissionOwn},
					{Name: "logins", Group: domain.VariableGroupNone, IncreasePermission: domain.IncreasePermissionAdmin},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			err := v.Validate(tt.config)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Validate() expected error, got nil")
					return
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
			}
		})
	}
}
