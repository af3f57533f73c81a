// Package genebits is the public entry point for running and inspecting
// bit-string genetic algorithm experiments.
package genebits

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"genebits/internal/bitvec"
	"genebits/internal/evo"
	"genebits/internal/genotype"
	"genebits/internal/model"
	"genebits/internal/scape"
	"genebits/internal/stats"
	"genebits/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "genebits.db"

	defaultScape       = "biquad"
	defaultPopulation  = 20
	defaultGenerations = 10
	defaultCount       = 10
	defaultTopN        = 5
	defaultRunsLimit   = 20
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *zap.Logger
}

type Client struct {
	store storage.Store
	log   *zap.Logger

	initMu      sync.Mutex
	initialized bool

	benchmarksDir string
	exportsDir    string
}

type RunRequest struct {
	RunID       string
	Scape       string
	Population  int
	Generations int
	Word        int
	Count       int
	// MutationProbability defaults to genotype.DefaultMutationProbability when nil.
	MutationProbability  *float64
	Divisor              float64
	EliteCount           int
	FitnessGoal          float64
	Shuffle              string
	FitnessPostprocessor string
	Seed                 int64
	TopN                 int
	OnGeneration         func(model.GenerationDiagnostics)
}

type RunSummary struct {
	RunID                string
	ArtifactsDir         string
	BestByGeneration     []float64
	FinalBestFitness     float64
	CompletedGenerations int
	Evaluations          int
	GoalReached          bool
	Champion             model.ChromosomeRecord
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID                string
	CreatedAtUTC         string
	Scape                string
	Seed                 int64
	Population           int
	Generations          int
	CompletedGenerations int
	Word                 int
	Count                int
	FinalBestFitness     float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// RunQuery addresses one stored run either by id or as the most recent one.
// A positive Limit truncates list results.
type RunQuery struct {
	RunID  string
	Latest bool
	Limit  int
}

type InspectRequest struct {
	RunID  string
	Latest bool
	// Rank selects a top chromosome, starting at 1.
	Rank int
}

type ChromosomeView struct {
	RunID          string
	Record         model.ChromosomeRecord
	Signed         []int64
	ScaledSigned   []float64
	ScaledUnsigned []float64
	Dump           string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		log:           logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Scape == "" {
		req.Scape = defaultScape
	}
	if req.Population <= 0 {
		req.Population = defaultPopulation
	}
	if req.Generations <= 0 {
		req.Generations = defaultGenerations
	}
	if req.Word <= 0 {
		req.Word = genotype.DefaultWord
	}
	if req.Count <= 0 {
		req.Count = defaultCount
	}
	mutationProbability := genotype.DefaultMutationProbability
	if req.MutationProbability != nil {
		mutationProbability = *req.MutationProbability
	}
	if req.TopN <= 0 {
		req.TopN = defaultTopN
	}
	shuffle, err := evo.ParseShuffleMode(req.Shuffle)
	if err != nil {
		return RunSummary{}, err
	}
	postprocessor, err := evo.ParseFitnessPostprocessor(req.FitnessPostprocessor)
	if err != nil {
		return RunSummary{}, err
	}
	target, err := scape.Resolve(req.Scape)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = fmt.Sprintf("%s-%d-%s", req.Scape, req.Seed, uuid.NewString()[:8])
	}
	log := c.log.With(zap.String("run_id", runID))

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Scape:               target,
		PopulationSize:      req.Population,
		Generations:         req.Generations,
		Word:                req.Word,
		Count:               req.Count,
		MutationProbability: mutationProbability,
		Divisor:             req.Divisor,
		EliteCount:          req.EliteCount,
		FitnessGoal:         req.FitnessGoal,
		Shuffle:             shuffle,
		Postprocessor:       postprocessor,
		Seed:                req.Seed,
		Logger:              log,
		OnGeneration:        req.OnGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}

	log.Info("run started",
		zap.Int("population", req.Population),
		zap.Int("generations", req.Generations),
		zap.Int("word", req.Word),
		zap.Int("count", req.Count),
	)
	result, err := monitor.Run(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	finalBest := result.BestByGeneration[len(result.BestByGeneration)-1]

	version := storage.CurrentVersion()
	top := topChromosomes(result.FinalPopulation, req.TopN, result.CompletedGenerations-1)
	lineage := make([]model.LineageRecord, len(result.Lineage))
	for i, record := range result.Lineage {
		record.VersionedRecord = version
		lineage[i] = record
	}

	run := model.RunRecord{
		VersionedRecord:      version,
		ID:                   runID,
		CreatedAtUTC:         now.Format(time.RFC3339Nano),
		Scape:                req.Scape,
		Seed:                 req.Seed,
		PopulationSize:       req.Population,
		Generations:          req.Generations,
		Word:                 req.Word,
		Count:                req.Count,
		MutationProbability:  mutationProbability,
		Divisor:              req.Divisor,
		EliteCount:           req.EliteCount,
		Shuffle:              string(shuffle),
		FitnessPostprocessor: postprocessor.Name(),
		FitnessGoal:          req.FitnessGoal,
		CompletedGenerations: result.CompletedGenerations,
		Evaluations:          result.Evaluations,
		FinalBestFitness:     finalBest,
	}
	if err := c.persist(ctx, run, result, top, lineage); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:                runID,
			Scape:                req.Scape,
			PopulationSize:       req.Population,
			Generations:          req.Generations,
			Word:                 req.Word,
			Count:                req.Count,
			MutationProbability:  mutationProbability,
			Divisor:              req.Divisor,
			EliteCount:           req.EliteCount,
			FitnessGoal:          req.FitnessGoal,
			Shuffle:              string(shuffle),
			FitnessPostprocessor: postprocessor.Name(),
			Seed:                 req.Seed,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		FinalBestFitness:      finalBest,
		TopChromosomes:        top,
		Lineage:               lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:                runID,
		Scape:                req.Scape,
		PopulationSize:       req.Population,
		Generations:          req.Generations,
		CompletedGenerations: result.CompletedGenerations,
		Word:                 req.Word,
		Count:                req.Count,
		Seed:                 req.Seed,
		EliteCount:           req.EliteCount,
		FinalBestFitness:     finalBest,
		CreatedAtUTC:         run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	log.Info("run finished",
		zap.Int("completed_generations", result.CompletedGenerations),
		zap.Int("evaluations", result.Evaluations),
		zap.Float64("best_fitness", finalBest),
		zap.Bool("goal_reached", result.GoalReached),
	)

	summary := RunSummary{
		RunID:                runID,
		ArtifactsDir:         filepath.Clean(runDir),
		BestByGeneration:     append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness:     finalBest,
		CompletedGenerations: result.CompletedGenerations,
		Evaluations:          result.Evaluations,
		GoalReached:          result.GoalReached,
	}
	if len(top) > 0 {
		summary.Champion = top[0].Chromosome
	}
	return summary, nil
}

func (c *Client) persist(ctx context.Context, run model.RunRecord, result evo.RunResult, top []model.TopChromosomeRecord, lineage []model.LineageRecord) error {
	if err := c.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveFitnessHistory(ctx, run.ID, result.BestByGeneration); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, run.ID, result.Diagnostics); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	if err := c.store.SaveTopChromosomes(ctx, run.ID, top); err != nil {
		return fmt.Errorf("save top chromosomes: %w", err)
	}
	if err := c.store.SaveLineage(ctx, run.ID, lineage); err != nil {
		return fmt.Errorf("save lineage: %w", err)
	}
	return nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:                e.RunID,
			CreatedAtUTC:         e.CreatedAtUTC,
			Scape:                e.Scape,
			Seed:                 e.Seed,
			Population:           e.PopulationSize,
			Generations:          e.Generations,
			CompletedGenerations: e.CompletedGenerations,
			Word:                 e.Word,
			Count:                e.Count,
			FinalBestFitness:     e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) GetRun(ctx context.Context, req RunQuery) (model.RunRecord, error) {
	runID, err := c.queryRunID(ctx, req, "run")
	if err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req RunQuery) ([]float64, error) {
	runID, err := c.queryRunID(ctx, req, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := loadRunData(ctx, runID, c.store.GetFitnessHistory, artifactReader(c.benchmarksDir, stats.ReadFitnessSeries))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunQuery) ([]model.GenerationDiagnostics, error) {
	runID, err := c.queryRunID(ctx, req, "diagnostics")
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := loadRunData(ctx, runID, c.store.GetGenerationDiagnostics, artifactReader(c.benchmarksDir, stats.ReadGenerationDiagnostics))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopChromosomes(ctx context.Context, req RunQuery) ([]model.TopChromosomeRecord, error) {
	runID, err := c.queryRunID(ctx, req, "top chromosomes")
	if err != nil {
		return nil, err
	}
	top, ok, err := loadRunData(ctx, runID, c.store.GetTopChromosomes, artifactReader(c.benchmarksDir, stats.ReadTopChromosomes))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top chromosomes not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopChromosomeRecord, len(top))
	copy(out, top)
	return out, nil
}

func (c *Client) Lineage(ctx context.Context, req RunQuery) ([]model.LineageRecord, error) {
	runID, err := c.queryRunID(ctx, req, "lineage")
	if err != nil {
		return nil, err
	}
	lineage, ok, err := loadRunData(ctx, runID, c.store.GetLineage, artifactReader(c.benchmarksDir, stats.ReadLineage))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}
	return lineage, nil
}

// Inspect rebuilds a stored top chromosome and decodes it.
func (c *Client) Inspect(ctx context.Context, req InspectRequest) (ChromosomeView, error) {
	if req.Rank <= 0 {
		req.Rank = 1
	}
	top, err := c.TopChromosomes(ctx, RunQuery{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return ChromosomeView{}, err
	}
	if req.Rank > len(top) {
		return ChromosomeView{}, fmt.Errorf("rank %d out of range: run stored %d chromosomes", req.Rank, len(top))
	}
	record := top[req.Rank-1].Chromosome

	chromosome, err := chromosomeFromRecord(record)
	if err != nil {
		return ChromosomeView{}, fmt.Errorf("rebuild %s: %w", record.ID, err)
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ChromosomeView{}, err
	}
	return ChromosomeView{
		RunID:          runID,
		Record:         record,
		Signed:         chromosome.Signed(),
		ScaledSigned:   chromosome.ScaledSigned(),
		ScaledUnsigned: chromosome.ScaledUnsigned(),
		Dump:           genotype.Format(chromosome),
	}, nil
}

func (c *Client) queryRunID(ctx context.Context, req RunQuery, what string) (string, error) {
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if req.RunID == "" && !req.Latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return "", err
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	return runID, nil
}

// loadRunData reads from the store first and falls back to the run's on-disk
// artifacts, which outlive a memory store.
func loadRunData[T any](ctx context.Context, runID string, fromStore func(context.Context, string) (T, bool, error), fromArtifacts func(string) (T, bool, error)) (T, bool, error) {
	value, ok, err := fromStore(ctx, runID)
	if err != nil || ok {
		return value, ok, err
	}
	return fromArtifacts(runID)
}

func artifactReader[T any](baseDir string, read func(baseDir, runID string) (T, bool, error)) func(string) (T, bool, error) {
	return func(runID string) (T, bool, error) {
		return read(baseDir, runID)
	}
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoRuns
	}
	return entries[0].RunID, nil
}

func topChromosomes(ranked []evo.ScoredChromosome, limit, generation int) []model.TopChromosomeRecord {
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]model.TopChromosomeRecord, 0, limit)
	for i := 0; i < limit; i++ {
		c := ranked[i].Chromosome
		out = append(out, model.TopChromosomeRecord{
			Rank: i + 1,
			Chromosome: model.ChromosomeRecord{
				VersionedRecord:     storage.CurrentVersion(),
				ID:                  ranked[i].ID,
				Generation:          generation,
				Word:                c.Word(),
				Count:               c.Count(),
				Genes:               c.Genes().String(),
				Divisor:             c.Divisor(),
				MutationProbability: c.MutationProbability(),
				Fitness:             c.Fitness(),
			},
		})
	}
	return out
}

func chromosomeFromRecord(record model.ChromosomeRecord) (*genotype.Chromosome, error) {
	genes, err := bitvec.Parse(record.Genes)
	if err != nil {
		return nil, err
	}
	if genes.Len() != record.Word*record.Count {
		return nil, fmt.Errorf("stored genes have %d bits, want %d", genes.Len(), record.Word*record.Count)
	}
	c, err := genotype.FromVector(record.Word, record.MutationProbability, genes)
	if err != nil {
		return nil, err
	}
	if record.Divisor != 0 {
		if err := c.SetDivisor(record.Divisor); err != nil {
			return nil, err
		}
	}
	c.SetFitness(record.Fitness)
	return c, nil
}
