package evo

import (
	"fmt"
	"sort"
)

// FitnessPostprocessor derives selection weights from raw fitness after scape
// evaluation and before the roulette wheel is built. Raw chromosome fitness is
// never modified.
type FitnessPostprocessor interface {
	Name() string
	Process(scored []ScoredChromosome) []ScoredChromosome
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(scored []ScoredChromosome) []ScoredChromosome {
	out := cloneScored(scored)
	for i := range out {
		out[i].Weight = out[i].Chromosome.Fitness()
	}
	return out
}

// RankPostprocessor weights each chromosome by its rank, 1 for the worst and
// len(scored) for the best. Ties share the lower rank. Populations whose raw
// fitness is all zero stay selectable.
type RankPostprocessor struct{}

func (RankPostprocessor) Name() string {
	return "rank"
}

func (RankPostprocessor) Process(scored []ScoredChromosome) []ScoredChromosome {
	out := cloneScored(scored)
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return out[order[i]].Chromosome.Fitness() < out[order[j]].Chromosome.Fitness()
	})
	rank := 0
	for pos, idx := range order {
		if pos == 0 || out[idx].Chromosome.Fitness() != out[order[pos-1]].Chromosome.Fitness() {
			rank = pos + 1
		}
		out[idx].Weight = float64(rank)
	}
	return out
}

func ParseFitnessPostprocessor(name string) (FitnessPostprocessor, error) {
	switch name {
	case "", "none":
		return NoopFitnessPostprocessor{}, nil
	case "rank":
		return RankPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported fitness postprocessor: %s", name)
	}
}

func cloneScored(scored []ScoredChromosome) []ScoredChromosome {
	out := make([]ScoredChromosome, len(scored))
	copy(out, scored)
	return out
}
