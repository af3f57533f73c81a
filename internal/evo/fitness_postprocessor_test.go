package evo

import (
	"testing"

	"genebits/internal/genotype"
)

func scoredWithFitness(t *testing.T, values ...float64) []ScoredChromosome {
	t.Helper()
	out := make([]ScoredChromosome, len(values))
	for i, v := range values {
		c, err := genotype.New(genotype.Config{Word: 4, Count: 1}, nil)
		if err != nil {
			t.Fatalf("new chromosome: %v", err)
		}
		c.SetFitness(v)
		out[i] = ScoredChromosome{ID: chromosomeID(0, i), Chromosome: c}
	}
	return out
}

func TestNoopPostprocessorCopiesRawFitness(t *testing.T) {
	scored := scoredWithFitness(t, 0.7, 0.4)
	out := NoopFitnessPostprocessor{}.Process(scored)
	if out[0].Weight != 0.7 || out[1].Weight != 0.4 {
		t.Fatalf("unexpected weights: %v %v", out[0].Weight, out[1].Weight)
	}
	if scored[0].Weight != 0 {
		t.Fatal("expected postprocessor output to be cloned from input")
	}
}

func TestRankPostprocessorAssignsSharedRanks(t *testing.T) {
	scored := scoredWithFitness(t, 0.5, 0.1, 0.5, 0.9)
	out := RankPostprocessor{}.Process(scored)
	want := []float64{2, 1, 2, 4}
	for i := range want {
		if out[i].Weight != want[i] {
			t.Fatalf("index %d: got weight %v want %v", i, out[i].Weight, want[i])
		}
		if out[i].Chromosome.Fitness() != scored[i].Chromosome.Fitness() {
			t.Fatalf("index %d: raw fitness changed", i)
		}
	}
}

func TestRankPostprocessorKeepsZeroFitnessSelectable(t *testing.T) {
	out := RankPostprocessor{}.Process(scoredWithFitness(t, 0, 0, 0))
	for i := range out {
		if out[i].Weight != 1 {
			t.Fatalf("index %d: expected rank 1, got %v", i, out[i].Weight)
		}
	}
}

func TestParseFitnessPostprocessor(t *testing.T) {
	for name, want := range map[string]string{"": "none", "none": "none", "rank": "rank"} {
		p, err := ParseFitnessPostprocessor(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if p.Name() != want {
			t.Fatalf("parse %q: got %s want %s", name, p.Name(), want)
		}
	}
	if _, err := ParseFitnessPostprocessor("novelty"); err == nil {
		t.Fatal("expected unsupported postprocessor error")
	}
}
