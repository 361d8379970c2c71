package config

import (
	"errors"
	"fmt"

	"github.com/gengine/core/pkg/domain"
	"github.com/gengine/core/pkg/expr"
)

// Validator validates the achievement/goal rule catalog.
// It ensures all business rules are met before the application starts.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate performs comprehensive validation of the configuration. It checks for:
//   - at least one achievement exists
//   - all achievement IDs are unique, all goal IDs are globally unique
//   - every declared variable has a valid group/permission and a unique name
//   - each goal's condition and goal expression and each reward's quantity parse under
//     pkg/expr (property values are not parsed)
//
// Returns an error describing the first validation failure encountered.
func (v *Validator) Validate(config *Config) error {
	if len(config.Achievements) == 0 {
		return errors.New("config must have at least one achievement")
	}

	achievementIDs := make(map[string]bool)
	goalIDs := make(map[string]bool)
	variableNames := make(map[string]bool)

	for _, variable := range config.Variables {
		if err := v.validateVariable(variable); err != nil {
			return fmt.Errorf("invalid variable '%s': %w", variable.Name, err)
		}
		if variableNames[variable.Name] {
			return fmt.Errorf("duplicate variable name: %s", variable.Name)
		}
		variableNames[variable.Name] = true
	}

	for _, achievement := range config.Achievements {
		if err := v.validateAchievement(achievement); err != nil {
			return fmt.Errorf("invalid achievement '%s': %w", achievement.ID, err)
		}

		if achievementIDs[achievement.ID] {
			return fmt.Errorf("duplicate achievement ID: %s", achievement.ID)
		}
		achievementIDs[achievement.ID] = true

		for _, goal := range achievement.Goals {
			if err := v.validateGoal(goal); err != nil {
				return fmt.Errorf("invalid goal '%s' in achievement '%s': %w", goal.ID, achievement.ID, err)
			}
			if goalIDs[goal.ID] {
				return fmt.Errorf("duplicate goal ID: %s", goal.ID)
			}
			goalIDs[goal.ID] = true
		}

		for _, reward := range achievement.Rewards {
			if err := v.validateReward(reward); err != nil {
				return fmt.Errorf("invalid reward '%s' in achievement '%s': %w", reward.ID, achievement.ID, err)
			}
		}

		for _, prop := range achievement.Properties {
			if err := v.validateAchievementProperty(prop); err != nil {
				return fmt.Errorf("invalid property '%s' in achievement '%s': %w", prop.ID, achievement.ID, err)
			}
		}
	}

	return nil
}

// validateAchievement validates a single achievement.
func (v *Validator) validateAchievement(a *domain.Achievement) error {
	if a.ID == "" {
		return errors.New("achievement ID cannot be empty")
	}
	if a.MaxLevel < 1 {
		return errors.New("maxlevel must be >= 1")
	}
	if a.Relevance == "" {
		return errors.New("relevance cannot be empty")
	}
	if !a.Relevance.IsValid() {
		return fmt.Errorf("invalid relevance '%s' (must be 'friends', 'city', or 'own')", a.Relevance)
	}
	if a.ViewPermission == "" {
		return errors.New("view_permission cannot be empty")
	}
	if !a.ViewPermission.IsValid() {
		return fmt.Errorf("invalid view_permission '%s' (must be 'everyone' or 'own')", a.ViewPermission)
	}
	if a.MaxDistanceKm != nil && (a.Lat == nil || a.Lng == nil) {
		return errors.New("max_distance requires both lat and lng to be set")
	}
	return nil
}

// validateGoal validates a single goal, including parsing its embedded expressions.
func (v *Validator) validateGoal(g *domain.Goal) error {
	if g.ID == "" {
		return errors.New("goal ID cannot be empty")
	}

	if !g.Evaluation.IsValid() {
		return fmt.Errorf("invalid evaluation cadence '%s'", g.Evaluation)
	}
	if !g.Operator.IsValid() {
		return fmt.Errorf("invalid operator '%s' (must be 'geq' or 'leq')", g.Operator)
	}
	if !g.MaxMin.IsValid() {
		return fmt.Errorf("invalid maxmin '%s' (must be 'max' or 'min')", g.MaxMin)
	}
	if g.TimespanDays != nil && *g.TimespanDays <= 0 {
		return errors.New("timespan must be positive when set")
	}

	if g.Condition != "" {
		if _, err := expr.Parse(g.Condition); err != nil {
			return fmt.Errorf("condition does not parse: %w", err)
		}
	}
	if g.Goal == "" {
		return errors.New("goal expression cannot be empty")
	}
	if _, err := expr.Parse(g.Goal); err != nil {
		return fmt.Errorf("goal expression does not parse: %w", err)
	}

	return nil
}

// validateReward validates a single reward definition.
func (v *Validator) validateReward(r *domain.Reward) error {
	if r.ID == "" {
		return errors.New("reward ID cannot be empty")
	}
	if r.FromLevel < 1 {
		return errors.New("from_level must be >= 1")
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("unsupported reward type '%s' (only 'ITEM' or 'WALLET' allowed)", r.Type)
	}
	if r.RewardID == "" {
		return errors.New("reward_id cannot be empty")
	}
	if r.Quantity == "" {
		return errors.New("quantity expression cannot be empty")
	}
	if _, err := expr.Parse(r.Quantity); err != nil {
		return fmt.Errorf("quantity expression does not parse: %w", err)
	}
	return nil
}

// validateAchievementProperty validates a single achievement property definition.
func (v *Validator) validateAchievementProperty(p *domain.AchievementProperty) error {
	if p.ID == "" {
		return errors.New("property ID cannot be empty")
	}
	if p.FromLevel < 1 {
		return errors.New("from_level must be >= 1")
	}
	if p.Name == "" {
		return errors.New("property name cannot be empty")
	}
	return nil
}

// validateVariable validates a single variable definition.
func (v *Validator) validateVariable(variable *domain.Variable) error {
	if variable.Name == "" {
		return errors.New("variable name cannot be empty")
	}
	if !variable.Group.IsValid() {
		return fmt.Errorf("invalid group '%s' (must be year, month, week, day, or none)", variable.Group)
	}
	if !variable.IncreasePermission.IsValid() {
		return fmt.Errorf("invalid increase_permission '%s' (must be 'own' or 'admin')", variable.IncreasePermission)
	}
	return nil
}
