package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"genebits/internal/genotype"
	"genebits/internal/model"
	"genebits/internal/scape"
	"genebits/internal/stats"
)

const (
	OperationSeed      = "seed"
	OperationElite     = "elite"
	OperationCrossover = "crossover"
)

// ScoredChromosome pairs an evaluated chromosome with its selection weight.
// Fitness reports the weight so the roulette wheel can consume it directly.
type ScoredChromosome struct {
	ID         string
	Chromosome *genotype.Chromosome
	Weight     float64
	Trace      scape.Trace
}

func (s ScoredChromosome) Fitness() float64 {
	return s.Weight
}

type RunResult struct {
	BestByGeneration     []float64
	Diagnostics          []model.GenerationDiagnostics
	FinalPopulation      []ScoredChromosome
	Lineage              []model.LineageRecord
	Evaluations          int
	CompletedGenerations int
	GoalReached          bool
}

type MonitorConfig struct {
	Scape               scape.Scape
	PopulationSize      int
	Generations         int
	Word                int
	Count               int
	MutationProbability float64
	// Divisor overrides the default signed scaling divisor when > 0.
	Divisor       float64
	EliteCount    int
	FitnessGoal   float64
	Shuffle       ShuffleMode
	Postprocessor FitnessPostprocessor
	Seed          int64
	Logger        *zap.Logger
	OnGeneration  func(model.GenerationDiagnostics)
}

type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
	log *zap.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("population size must be >= 2")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount >= cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size)")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.Word <= 0 {
		cfg.Word = genotype.DefaultWord
	}
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("count must be > 0")
	}
	if cfg.MutationProbability < 0 || cfg.MutationProbability > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1]")
	}
	if cfg.Divisor < 0 {
		return nil, fmt.Errorf("divisor must be >= 0")
	}
	if _, err := ParseShuffleMode(string(cfg.Shuffle)); err != nil {
		return nil, err
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		log: logger.With(zap.String("scape", cfg.Scape.Name())),
	}, nil
}

// Run evolves a freshly randomized population for the configured number of
// generations, stopping early once the best fitness reaches FitnessGoal.
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	population, err := m.seedPopulation()
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		BestByGeneration: make([]float64, 0, m.cfg.Generations),
		Diagnostics:      make([]model.GenerationDiagnostics, 0, m.cfg.Generations),
		Lineage:          make([]model.LineageRecord, 0, m.cfg.PopulationSize*(m.cfg.Generations+1)),
	}
	for _, item := range population {
		result.Lineage = append(result.Lineage, model.LineageRecord{
			ChromosomeID: item.ID,
			Generation:   0,
			Operation:    OperationSeed,
			MutatedBit:   -1,
		})
	}

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		scored, err := m.evaluatePopulation(ctx, population)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		result.Evaluations += len(scored)
		scored = m.cfg.Postprocessor.Process(scored)
		ranked := rankByFitness(scored)
		best := ranked[0].Chromosome.Fitness()
		result.BestByGeneration = append(result.BestByGeneration, best)
		result.FinalPopulation = ranked
		result.CompletedGenerations = gen + 1

		diagnostics := summarizeGeneration(scored, gen+1)
		done := gen == m.cfg.Generations-1
		if m.cfg.FitnessGoal > 0 && best >= m.cfg.FitnessGoal {
			result.GoalReached = true
			done = true
		}

		var wheel *RouletteWheel
		if !done {
			wheel, err = NewRouletteWheel(m.rng, scored, m.cfg.Shuffle)
			if err != nil {
				return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
			}
			diagnostics.WheelSize = wheel.Len()
			diagnostics.Selectable = wheel.Selectable()
		}
		result.Diagnostics = append(result.Diagnostics, diagnostics)
		m.log.Debug("generation evaluated",
			zap.Int("generation", diagnostics.Generation),
			zap.Float64("best_fitness", diagnostics.BestFitness),
			zap.Float64("mean_fitness", diagnostics.MeanFitness),
			zap.Int("wheel_size", diagnostics.WheelSize),
		)
		if m.cfg.OnGeneration != nil {
			m.cfg.OnGeneration(diagnostics)
		}
		if done {
			break
		}

		var generationLineage []model.LineageRecord
		population, generationLineage, err = m.nextGeneration(ctx, scored, ranked, wheel, gen+1)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		result.Lineage = append(result.Lineage, generationLineage...)
	}

	if result.GoalReached {
		m.log.Info("fitness goal reached",
			zap.Int("generation", result.CompletedGenerations),
			zap.Float64("best_fitness", result.BestByGeneration[len(result.BestByGeneration)-1]),
		)
	}
	return result, nil
}

func (m *PopulationMonitor) seedPopulation() ([]ScoredChromosome, error) {
	population := make([]ScoredChromosome, 0, m.cfg.PopulationSize)
	for i := 0; i < m.cfg.PopulationSize; i++ {
		c, err := genotype.New(genotype.Config{
			Word:                m.cfg.Word,
			Count:               m.cfg.Count,
			Randomize:           true,
			MutationProbability: m.cfg.MutationProbability,
		}, m.rng)
		if err != nil {
			return nil, err
		}
		if m.cfg.Divisor > 0 {
			if err := c.SetDivisor(m.cfg.Divisor); err != nil {
				return nil, err
			}
		}
		population = append(population, ScoredChromosome{ID: chromosomeID(0, i), Chromosome: c})
	}
	return population, nil
}

func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []ScoredChromosome) ([]ScoredChromosome, error) {
	scored := make([]ScoredChromosome, len(population))
	for i, item := range population {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fitness, trace, err := m.cfg.Scape.Evaluate(ctx, item.Chromosome)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", item.ID, err)
		}
		item.Chromosome.SetFitness(float64(fitness))
		item.Trace = trace
		scored[i] = item
	}
	return scored, nil
}

func (m *PopulationMonitor) nextGeneration(ctx context.Context, scored, ranked []ScoredChromosome, wheel *RouletteWheel, generation int) ([]ScoredChromosome, []model.LineageRecord, error) {
	next := make([]ScoredChromosome, 0, m.cfg.PopulationSize)
	lineage := make([]model.LineageRecord, 0, m.cfg.PopulationSize)

	for i := 0; i < m.cfg.EliteCount; i++ {
		id := chromosomeID(generation, len(next))
		next = append(next, ScoredChromosome{ID: id, Chromosome: ranked[i].Chromosome.Clone()})
		lineage = append(lineage, model.LineageRecord{
			ChromosomeID: id,
			ParentIDs:    []string{ranked[i].ID},
			Generation:   generation,
			Operation:    OperationElite,
			MutatedBit:   -1,
		})
	}

	for len(next) < m.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		a, b, err := wheel.DrawPair(m.rng)
		if err != nil {
			return nil, nil, err
		}
		first, second := scored[a], scored[b]
		offspring, err := first.Chromosome.ReproduceWith(m.rng, second.Chromosome)
		if err != nil {
			return nil, nil, err
		}
		m.log.Debug("reproduced",
			zap.String("first_parent", first.ID),
			zap.String("second_parent", second.ID),
			zap.Int("crossover_point", offspring.Point),
			zap.Int("first_mutation", offspring.FirstMutation),
			zap.Int("second_mutation", offspring.SecondMutation),
		)

		children := []struct {
			chromosome *genotype.Chromosome
			mutated    int
		}{
			{offspring.First, offspring.FirstMutation},
			{offspring.Second, offspring.SecondMutation},
		}
		for _, child := range children {
			if len(next) >= m.cfg.PopulationSize {
				break
			}
			id := chromosomeID(generation, len(next))
			next = append(next, ScoredChromosome{ID: id, Chromosome: child.chromosome})
			lineage = append(lineage, model.LineageRecord{
				ChromosomeID:   id,
				ParentIDs:      []string{first.ID, second.ID},
				Generation:     generation,
				Operation:      OperationCrossover,
				CrossoverPoint: offspring.Point,
				MutatedBit:     child.mutated,
			})
		}
	}
	return next, lineage, nil
}

func summarizeGeneration(scored []ScoredChromosome, generation int) model.GenerationDiagnostics {
	fitness := make([]float64, len(scored))
	genes := make(map[string]struct{}, len(scored))
	for i, item := range scored {
		fitness[i] = item.Chromosome.Fitness()
		genes[item.Chromosome.Genes().String()] = struct{}{}
	}
	summary := stats.Summarize(fitness)
	return model.GenerationDiagnostics{
		Generation:    generation,
		BestFitness:   summary.Best,
		MeanFitness:   summary.Mean,
		MinFitness:    summary.Min,
		StdDevFitness: summary.StdDev,
		Diversity:     len(genes),
	}
}

// rankByFitness returns a copy ordered by raw fitness, best first. Equal
// fitness keeps population order.
func rankByFitness(scored []ScoredChromosome) []ScoredChromosome {
	ranked := cloneScored(scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Chromosome.Fitness() > ranked[j].Chromosome.Fitness()
	})
	return ranked
}

func chromosomeID(generation, index int) string {
	return fmt.Sprintf("g%d-%d", generation, index)
}
