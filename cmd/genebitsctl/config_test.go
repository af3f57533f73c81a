package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_config.json")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromConfigMapsFields(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"run_id":                "cfg-run",
		"scape":                 "onemax",
		"population":            12,
		"generations":           9,
		"word":                  8,
		"count":                 4,
		"mutation_probability":  0,
		"divisor":               64,
		"elite_count":           2,
		"fitness_goal":          0.9,
		"shuffle":               "fisher_yates",
		"fitness_postprocessor": "rank",
		"seed":                  77,
		"top":                   3,
		"unknown":               true,
	})

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.RunID != "cfg-run" || req.Scape != "onemax" || req.Seed != 77 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.Population != 12 || req.Generations != 9 || req.Word != 8 || req.Count != 4 {
		t.Fatalf("unexpected shape fields: %+v", req)
	}
	if req.MutationProbability == nil || *req.MutationProbability != 0 {
		t.Fatalf("expected explicit zero mutation probability, got %v", req.MutationProbability)
	}
	if req.Divisor != 64 || req.EliteCount != 2 || req.FitnessGoal != 0.9 || req.TopN != 3 {
		t.Fatalf("unexpected monitor fields: %+v", req)
	}
	if req.Shuffle != "fisher_yates" || req.FitnessPostprocessor != "rank" {
		t.Fatalf("unexpected selection fields: %+v", req)
	}
}

func TestLoadRunRequestFromConfigIgnoresWrongTypes(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"scape":      7,
		"population": "many",
	})
	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Scape != "" || req.Population != 0 || req.MutationProbability != nil {
		t.Fatalf("expected wrong-typed keys to be ignored, got %+v", req)
	}
}

func TestLoadOrDefaultRunRequestErrors(t *testing.T) {
	if _, err := loadOrDefaultRunRequest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected missing config error")
	}
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadOrDefaultRunRequest(path); err == nil {
		t.Fatal("expected malformed config error")
	}
	req, err := loadOrDefaultRunRequest("")
	if err != nil || req.Scape != "" {
		t.Fatalf("expected empty request without config, got %+v err=%v", req, err)
	}
}

func TestOverrideFromFlagsAppliesOnlySetFlags(t *testing.T) {
	path := writeConfig(t, map[string]any{"scape": "onemax", "population": 12, "seed": 5})
	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}

	values := map[string]any{
		"scape":                "biquad",
		"pop":                  30,
		"seed":                 int64(9),
		"mutation-probability": 0.25,
	}
	set := map[string]bool{"pop": true, "mutation-probability": true}
	if err := overrideFromFlags(&req, set, values); err != nil {
		t.Fatalf("override: %v", err)
	}
	if req.Scape != "onemax" || req.Seed != 5 {
		t.Fatalf("unset flags must not override config: %+v", req)
	}
	if req.Population != 30 || req.MutationProbability == nil || *req.MutationProbability != 0.25 {
		t.Fatalf("set flags must override config: %+v", req)
	}
}

func TestOverrideFromFlagsValidates(t *testing.T) {
	values := map[string]any{"mutation-probability": 1.5, "word": 65}
	req, _ := loadOrDefaultRunRequest("")
	if err := overrideFromFlags(&req, map[string]bool{"mutation-probability": true}, values); err == nil {
		t.Fatal("expected mutation probability error")
	}
	req, _ = loadOrDefaultRunRequest("")
	if err := overrideFromFlags(&req, map[string]bool{"word": true}, values); err == nil {
		t.Fatal("expected word width error")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		if err != nil {
			t.Fatalf("%s: %v", level, err)
		}
		if !logger.Core().Enabled(mustLevel(t, level)) {
			t.Fatalf("%s: expected level enabled", level)
		}
	}
	if _, err := newLogger("chatty"); err == nil {
		t.Fatal("expected invalid level error")
	}
}
