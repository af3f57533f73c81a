package main

import (
	"encoding/json"
	"fmt"
	"os"

	"genebits/pkg/genebits"
)

// loadRunRequestFromConfig maps a JSON run config onto a run request. Unknown
// keys are ignored; keys of the wrong JSON type are ignored as well.
func loadRunRequestFromConfig(path string) (genebits.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return genebits.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return genebits.RunRequest{}, err
	}

	var req genebits.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["scape"]); ok {
		req.Scape = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["word"]); ok {
		req.Word = v
	}
	if v, ok := asInt(raw["count"]); ok {
		req.Count = v
	}
	if v, ok := asFloat64(raw["mutation_probability"]); ok {
		req.MutationProbability = &v
	}
	if v, ok := asFloat64(raw["divisor"]); ok {
		req.Divisor = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asFloat64(raw["fitness_goal"]); ok {
		req.FitnessGoal = v
	}
	if v, ok := asString(raw["shuffle"]); ok {
		req.Shuffle = v
	}
	if v, ok := asString(raw["fitness_postprocessor"]); ok {
		req.FitnessPostprocessor = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["top"]); ok {
		req.TopN = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies the explicitly set flags on top of req.
func overrideFromFlags(req *genebits.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "scape":
			req.Scape = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "word":
			req.Word = v.(int)
		case "count":
			req.Count = v.(int)
		case "mutation-probability":
			p := v.(float64)
			req.MutationProbability = &p
		case "divisor":
			req.Divisor = v.(float64)
		case "elite":
			req.EliteCount = v.(int)
		case "fitness-goal":
			req.FitnessGoal = v.(float64)
		case "shuffle":
			req.Shuffle = v.(string)
		case "fitness-postprocessor":
			req.FitnessPostprocessor = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "top":
			req.TopN = v.(int)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	if req.MutationProbability != nil && (*req.MutationProbability < 0 || *req.MutationProbability > 1) {
		return fmt.Errorf("mutation probability must be in [0, 1], got %g", *req.MutationProbability)
	}
	if req.Word > 64 {
		return fmt.Errorf("word must be <= 64, got %d", req.Word)
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (genebits.RunRequest, error) {
	if configPath == "" {
		return genebits.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return genebits.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
