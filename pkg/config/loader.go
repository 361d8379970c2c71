package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/gengine/core/pkg/domain"
)

// ConfigLoader loads and validates the achievement/goal rule catalog from a JSON file.
// It performs file reading, JSON parsing, and comprehensive validation.
type ConfigLoader struct {
	configPath string
	validator  *Validator
	logger     *slog.Logger
}

// NewConfigLoader creates a new ConfigLoader instance.
//
// Parameters:
//   - configPath: Path to the achievements.json file
//   - logger: Structured logger for operational logging
func NewConfigLoader(configPath string, logger *slog.Logger) *ConfigLoader {
	return &ConfigLoader{
		configPath: configPath,
		validator:  NewValidator(),
		logger:     logger,
	}
}

// LoadConfig loads the configuration file and returns a validated Config.
// This method performs three steps:
// 1. Read the config file from disk
// 2. Parse JSON into Config struct
// 3. Validate all business rules
//
// If any step fails, returns an error and the application should exit.
// This is a "fail fast" operation - invalid config prevents startup.
func (l *ConfigLoader) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Link each goal/reward/property back to its parent achievement id for easier
	// lookups during validation.
	for _, achievement := range config.Achievements {
		for _, goal := range achievement.Goals {
			goal.AchievementID = achievement.ID
		}
		for _, reward := range achievement.Rewards {
			reward.AchievementID = achievement.ID
		}
		for _, prop := range achievement.Properties {
			prop.AchievementID = achievement.ID
		}
	}

	l.autoMaterializeVariables(&config)

	if err := l.validator.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	totalGoals := l.countGoals(&config)
	l.logger.Info("catalog loaded",
		"achievements", len(config.Achievements),
		"total_goals", totalGoals,
		"variables", len(config.Variables),
		"config_path", l.configPath,
	)

	return &config, nil
}

// autoMaterializeVariables ensures every AchievementProperty marked
// is_variable has a backing Variable, auto-created with group "day" if the
// catalog doesn't already define one of the same name. This closes the loop between a
// level's rewards and the values store they feed back into.
func (l *ConfigLoader) autoMaterializeVariables(config *Config) {
	existing := make(map[string]bool, len(config.Variables))
	for _, v := range config.Variables {
		existing[v.Name] = true
	}

	for _, achievement := range config.Achievements {
		for _, prop := range achievement.Properties {
			if !prop.IsVariable || existing[prop.Name] {
				continue
			}
			config.Variables = append(config.Variables, &domain.Variable{
				ID:                 prop.Name,
				Name:               prop.Name,
				Group:              domain.VariableGroupDay,
				IncreasePermission: domain.IncreasePermissionOwn,
			})
			existing[prop.Name] = true
			l.logger.Info("auto-materialized variable from achievement property",
				"variable", prop.Name, "achievement_id", achievement.ID, "property_id", prop.ID)
		}
	}
}

// countGoals counts the total number of goals across all achievements.
func (l *ConfigLoader) countGoals(config *Config) int {
	count := 0
	for _, achievement := range config.Achievements {
		count += len(achievement.Goals)
	}
	return count
}
