package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gengine/core/pkg/config"
	"github.com/gengine/core/pkg/domain"
)

func createTestConfig() *config.Config {
	return &config.Config{
		Variables: []*domain.Variable{
			{ID: "var-1", Name: "points", Group: domain.VariableGroupDay, IncreasePermission: domain.IncreasePermissionOwn},
		},
		Achievements: []*domain.Achievement{
			{
				ID:             "achievement-1",
				MaxLevel:       3,
				Relevance:      domain.RelevanceOwn,
				ViewPermission: domain.ViewPermissionEveryone,
				Goals: []*domain.Goal{
					{ID: "goal-1", AchievementID: "achievement-1", Condition: `variable_name=="points"`, Evaluation: domain.GoalEvaluationImmediately, Goal: "level*100", Operator: domain.OperatorGeq, MaxMin: domain.MaxMinMax},
					{ID: "goal-2", AchievementID: "achievement-1", Condition: `variable_name=='points'`, Evaluation: domain.GoalEvaluationImmediately, Goal: "level*200", Operator: domain.OperatorGeq, MaxMin: domain.MaxMinMax},
				},
			},
			{
				ID:             "achievement-2",
				MaxLevel:       1,
				Relevance:      domain.RelevanceFriends,
				ViewPermission: domain.ViewPermissionEveryone,
				Goals: []*domain.Goal{
					{ID: "goal-3", AchievementID: "achievement-2", Evaluation: domain.GoalEvaluationImmediately, Goal: "level", Operator: domain.OperatorGeq, MaxMin: domain.MaxMinMax},
				},
			},
		},
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "achievements.json")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return tmpFile
}

func TestNewInMemoryCatalogCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	if len(cache.goalsByID) != 3 {
		t.Errorf("expected 3 goals in cache, got %d", len(cache.goalsByID))
	}
	if len(cache.achievementsByID) != 2 {
		t.Errorf("expected 2 achievements in cache, got %d", len(cache.achievementsByID))
	}
	if len(cache.achievements) != 2 {
		t.Errorf("expected 2 achievements in slice, got %d", len(cache.achievements))
	}
}

func TestInMemoryCatalogCache_GetGoalByID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	t.Run("existing goal", func(t *testing.T) {
		goal := cache.GetGoalByID("goal-1")
		if goal == nil {
			t.Fatal("GetGoalByID() returned nil for existing goal")
		}
		if goal.AchievementID != "achievement-1" {
			t.Errorf("expected achievement-1, got %q", goal.AchievementID)
		}
	})

	t.Run("non-existing goal", func(t *testing.T) {
		if cache.GetGoalByID("nonexistent") != nil {
			t.Error("expected nil for non-existing goal")
		}
	})
}

func TestInMemoryCatalogCache_GetVariableByName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	variable := cache.GetVariableByName("points")
	if variable == nil {
		t.Fatal("expected variable 'points' to be found")
	}
	if variable.Group != domain.VariableGroupDay {
		t.Errorf("expected group 'day', got %q", variable.Group)
	}

	if cache.GetVariableByName("nonexistent") != nil {
		t.Error("expected nil for non-existing variable")
	}
}

func TestInMemoryCatalogCache_GetGoalsReferencingVariable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	t.Run("variable referenced by two goals", func(t *testing.T) {
		refs := cache.GetGoalsReferencingVariable("points")
		if len(refs) != 2 {
			t.Fatalf("expected 2 references, got %d", len(refs))
		}
		ids := map[string]bool{}
		for _, ref := range refs {
			ids[ref.Goal.ID] = true
			if ref.Achievement.ID != "achievement-1" {
				t.Errorf("expected achievement-1, got %q", ref.Achievement.ID)
			}
		}
		if !ids["goal-1"] || !ids["goal-2"] {
			t.Errorf("expected goal-1 and goal-2 in refs, got %v", ids)
		}
	})

	t.Run("variable with no references", func(t *testing.T) {
		refs := cache.GetGoalsReferencingVariable("nonexistent")
		if len(refs) != 0 {
			t.Errorf("expected empty slice, got %d", len(refs))
		}
	})
}

// TestInMemoryCatalogCache_GetGoalsReferencingVariable_SubstringAnywhere checks that
// the reverse index matches the quoted variable name anywhere in the condition text,
// not only when compared against variable_name — while still requiring the full quoted
// token, so a variable whose name is a prefix of the quoted string does not match.
func TestInMemoryCatalogCache_GetGoalsReferencingVariable_SubstringAnywhere(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := &config.Config{
		Variables: []*domain.Variable{
			{ID: "var-1", Name: "points", Group: domain.VariableGroupDay, IncreasePermission: domain.IncreasePermissionOwn},
			{ID: "var-2", Name: "point", Group: domain.VariableGroupDay, IncreasePermission: domain.IncreasePermissionOwn},
		},
		Achievements: []*domain.Achievement{
			{
				ID:             "achievement-k",
				MaxLevel:       1,
				Relevance:      domain.RelevanceOwn,
				ViewPermission: domain.ViewPermissionEveryone,
				Goals: []*domain.Goal{
					{ID: "goal-k", AchievementID: "achievement-k", Condition: `key=="points" && variable_name=="other"`, Evaluation: domain.GoalEvaluationImmediately, Goal: "level", Operator: domain.OperatorGeq, MaxMin: domain.MaxMinMax},
				},
			},
		},
	}
	cache := NewInMemoryCatalogCache(cfg, "/path/to/config.json", logger)

	refs := cache.GetGoalsReferencingVariable("points")
	if len(refs) != 1 || refs[0].Goal.ID != "goal-k" {
		t.Fatalf("expected goal-k to be indexed for 'points', got %v", refs)
	}

	if refs := cache.GetGoalsReferencingVariable("point"); len(refs) != 0 {
		t.Errorf("expected no refs for 'point' (quoted-token match only), got %d", len(refs))
	}
}

func TestInMemoryCatalogCache_GetAllAchievements(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	achievements := cache.GetAllAchievements()
	if len(achievements) != 2 {
		t.Fatalf("expected 2 achievements, got %d", len(achievements))
	}
	if achievements[0].ID != "achievement-1" {
		t.Errorf("expected first achievement 'achievement-1', got %q", achievements[0].ID)
	}
	if achievements[1].ID != "achievement-2" {
		t.Errorf("expected second achievement 'achievement-2', got %q", achievements[1].ID)
	}
}

func TestInMemoryCatalogCache_GetAllGoals(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	goals := cache.GetAllGoals()
	if len(goals) != 3 {
		t.Fatalf("expected 3 goals, got %d", len(goals))
	}
	ids := map[string]bool{}
	for _, g := range goals {
		ids[g.ID] = true
	}
	for _, want := range []string{"goal-1", "goal-2", "goal-3"} {
		if !ids[want] {
			t.Errorf("expected goal %q to be present", want)
		}
	}
}

func TestInMemoryCatalogCache_Reload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("successful reload", func(t *testing.T) {
		tmpFile := createTempConfigFile(t, `{
			"achievements": [
				{
					"id": "achievement-new",
					"maxlevel": 1,
					"relevance": "own",
					"view_permission": "everyone",
					"goals": [
						{"id": "goal-new", "evaluation": "immediately", "goal": "level", "operator": "geq", "maxmin": "max"}
					]
				}
			]
		}`)
		defer func() { _ = os.Remove(tmpFile) }()

		cache := NewInMemoryCatalogCache(createTestConfig(), tmpFile, logger)
		if cache.GetGoalByID("goal-new") != nil {
			t.Error("goal-new should not exist before reload")
		}

		if err := cache.Reload(); err != nil {
			t.Fatalf("Reload() unexpected error = %v", err)
		}

		if cache.GetGoalByID("goal-new") == nil {
			t.Fatal("goal-new should exist after reload")
		}
		if cache.GetGoalByID("goal-1") != nil {
			t.Error("goal-1 should not exist after reload")
		}
	})

	t.Run("failed reload - file not found", func(t *testing.T) {
		cache := NewInMemoryCatalogCache(createTestConfig(), "/nonexistent/file.json", logger)
		if err := cache.Reload(); err == nil {
			t.Error("Reload() expected error for non-existent file, got nil")
		}
		if cache.GetGoalByID("goal-1") == nil {
			t.Error("goal-1 should still exist after failed reload")
		}
	})

	t.Run("failed reload - invalid JSON", func(t *testing.T) {
		tmpFile := createTempConfigFile(t, `{invalid json}`)
		defer func() { _ = os.Remove(tmpFile) }()

		cache := NewInMemoryCatalogCache(createTestConfig(), tmpFile, logger)
		if err := cache.Reload(); err == nil {
			t.Error("Reload() expected error for invalid JSON, got nil")
		}
		if cache.GetGoalByID("goal-1") == nil {
			t.Error("goal-1 should still exist after failed reload")
		}
	})
}

func TestInMemoryCatalogCache_ThreadSafety(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cache := NewInMemoryCatalogCache(createTestConfig(), "/path/to/config.json", logger)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(4)
		go func() { defer wg.Done(); _ = cache.GetGoalByID("goal-1") }()
		go func() { defer wg.Done(); _ = cache.GetGoalsReferencingVariable("points") }()
		go func() { defer wg.Done(); _ = cache.GetAchievementByID("achievement-1") }()
		go func() { defer wg.Done(); _ = cache.GetAllAchievements() }()
	}
	wg.Wait()
}

func TestConditionReferencesVariable(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		variable  string
		want      bool
	}{
		{"empty condition", "", "points", false},
		{"double quotes", `variable_name=="points"`, "points", true},
		{"single quotes", `variable_name=='points'`, "points", true},
		{"reversed operand order", `"points"==variable_name`, "points", true},
		{"no reference", `level>0`, "points", false},
		{"quoted anywhere in the source", `key=="points" && variable_name=="other"`, "points", true},
		{"name is a prefix of another quoted token", `variable_name=="points_total"`, "points", false},
		{"conjunction", `variable_name=="points" || variable_name=="logins"`, "logins", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conditionReferencesVariable(tt.condition, tt.variable); got != tt.want {
				t.Errorf("conditionReferencesVariable(%q, %q) = %v, want %v", tt.condition, tt.variable, got, tt.want)
			}
		})
	}
}
