package config

import "github.com/gengine/core/pkg/domain"

// Config represents the top-level rule catalog loaded from achievements.json.
// This structure is parsed from JSON and validated during application startup.
type Config struct {
	Achievements []*domain.Achievement `json:"achievements"`
	Variables    []*domain.Variable    `json:"variables"`
}
