package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"genebits/internal/model"
	"genebits/internal/scape"
	"genebits/internal/stats"
	"genebits/internal/storage"
	"genebits/pkg/genebits"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
	defaultDBPath = "genebits.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "scapes":
		return runScapes(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that opens a store.
type clientFlags struct {
	storeKind *string
	dbPath    *string
	logLevel  *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDBPath, "sqlite database path"),
		logLevel:  fs.String("log-level", "warn", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) open() (*genebits.Client, *zap.Logger, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, nil, err
	}
	client, err := genebits.New(genebits.Options{
		StoreKind:     *f.storeKind,
		DBPath:        *f.dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return client, logger, nil
}

func closeClient(client *genebits.Client, logger *zap.Logger) {
	_ = client.Close()
	_ = logger.Sync()
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	scapeName := fs.String("scape", "biquad", "scape name: "+strings.Join(scape.List(), "|"))
	population := fs.Int("pop", 20, "population size")
	generations := fs.Int("gens", 10, "generation count")
	word := fs.Int("word", 16, "bits per gene (1..64)")
	count := fs.Int("count", 10, "genes per chromosome")
	mutationProbability := fs.Float64("mutation-probability", 0.1, "per-child probability of one bit flip")
	divisor := fs.Float64("divisor", 0, "signed scaling divisor override (0 keeps 2^(word-1))")
	eliteCount := fs.Int("elite", 1, "best chromosomes copied unchanged into the next generation")
	fitnessGoal := fs.Float64("fitness-goal", 0, "early-stop best fitness goal (0 disables)")
	shuffle := fs.String("shuffle", "transpose", "roulette wheel shuffle: transpose|fisher_yates")
	postprocessorName := fs.String("fitness-postprocessor", "none", "selection weighting: none|rank")
	seed := fs.Int64("seed", 1, "rng seed")
	topN := fs.Int("top", 5, "top chromosomes to keep")
	progress := fs.Bool("progress", false, "show a generation progress bar")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	flagValues := map[string]any{
		"run-id":                *runID,
		"scape":                 *scapeName,
		"pop":                   *population,
		"gens":                  *generations,
		"word":                  *word,
		"count":                 *count,
		"mutation-probability":  *mutationProbability,
		"divisor":               *divisor,
		"elite":                 *eliteCount,
		"fitness-goal":          *fitnessGoal,
		"shuffle":               *shuffle,
		"fitness-postprocessor": *postprocessorName,
		"seed":                  *seed,
		"top":                   *topN,
	}
	if *configPath == "" {
		// Without a config file every flag applies, defaults included.
		for name := range flagValues {
			setFlags[name] = true
		}
	}
	if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	var bar *progressbar.ProgressBar
	if *progress && !*jsonOut {
		bar = progressbar.Default(int64(req.Generations), "evolving")
		req.OnGeneration = func(model.GenerationDiagnostics) {
			_ = bar.Add(1)
		}
	}

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Printf("run completed run_id=%s scape=%s pop=%d gens=%d word=%d count=%d seed=%d\n",
		summary.RunID, req.Scape, req.Population, summary.CompletedGenerations, req.Word, req.Count, req.Seed)
	for i, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	fmt.Printf("final_best_fitness=%.6f improvement=%.6f goal_reached=%t evaluations=%s elapsed=%s\n",
		summary.FinalBestFitness,
		stats.Improvement(summary.BestByGeneration),
		summary.GoalReached,
		humanize.Comma(int64(summary.Evaluations)),
		time.Since(started).Round(time.Millisecond),
	)
	fmt.Printf("champion id=%s genes=%s\n", summary.Champion.ID, summary.Champion.Genes)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	runs, err := client.Runs(ctx, genebits.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range runs {
		fmt.Printf("run_id=%s created=%s scape=%s seed=%d pop=%d gens=%d/%d word=%d count=%d final_best_fitness=%.6f\n",
			item.RunID,
			createdAgo(item.CreatedAtUTC),
			item.Scape,
			item.Seed,
			item.Population,
			item.CompletedGenerations,
			item.Generations,
			item.Word,
			item.Count,
			item.FinalBestFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	query, jsonOut, cf := addQueryFlags(fs, "fitness history", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	history, err := client.FitnessHistory(ctx, query.request())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	query, jsonOut, cf := addQueryFlags(fs, "generation diagnostics", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	diagnostics, err := client.Diagnostics(ctx, query.request())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f std=%.6f wheel=%d selectable=%d diversity=%d\n",
			d.Generation,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.StdDevFitness,
			d.WheelSize,
			d.Selectable,
			d.Diversity,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	query, jsonOut, cf := addQueryFlags(fs, "top chromosomes", 0)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	top, err := client.TopChromosomes(ctx, query.request())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(top)
	}
	for _, item := range top {
		fmt.Printf("rank=%d id=%s fitness=%.6f genes=%s\n",
			item.Rank,
			item.Chromosome.ID,
			item.Chromosome.Fitness,
			item.Chromosome.Genes,
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	query, jsonOut, cf := addQueryFlags(fs, "lineage", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	lineage, err := client.Lineage(ctx, query.request())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	for _, rec := range lineage {
		fmt.Printf("gen=%d id=%s parents=%s op=%s point=%d mutated_bit=%d\n",
			rec.Generation,
			rec.ChromosomeID,
			strings.Join(rec.ParentIDs, ","),
			rec.Operation,
			rec.CrossoverPoint,
			rec.MutatedBit,
		)
	}
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "inspect the most recent run from run index")
	rank := fs.Int("rank", 1, "top chromosome rank to decode")
	jsonOut := fs.Bool("json", false, "emit decoded chromosome as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "inspect"); err != nil {
		return err
	}

	client, logger, err := cf.open()
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	view, err := client.Inspect(ctx, genebits.InspectRequest{RunID: *runID, Latest: *latest, Rank: *rank})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(view)
	}
	fmt.Printf("run_id=%s rank=%d id=%s generation=%d\n", view.RunID, *rank, view.Record.ID, view.Record.Generation)
	fmt.Print(view.Dump)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := genebits.New(genebits.Options{
		StoreKind:     "memory",
		BenchmarksDir: benchmarksDir,
		ExportsDir:    *outDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, genebits.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runScapes(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("scapes", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range scape.List() {
		fmt.Println(name)
	}
	return nil
}

type queryFlags struct {
	runID  *string
	latest *bool
	limit  *int
}

func addQueryFlags(fs *flag.FlagSet, what string, defaultLimit int) (queryFlags, *bool, clientFlags) {
	q := queryFlags{
		runID:  fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, "show "+what+" for the most recent run from run index"),
		limit:  fs.Int("limit", defaultLimit, "max rows to print (<=0 for all)"),
	}
	jsonOut := fs.Bool("json", false, "emit "+what+" as JSON")
	return q, jsonOut, addClientFlags(fs)
}

func (q queryFlags) request() genebits.RunQuery {
	limit := *q.limit
	if limit < 0 {
		limit = 0
	}
	return genebits.RunQuery{RunID: *q.runID, Latest: *q.latest, Limit: limit}
}

func checkRunSelector(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func createdAgo(createdAtUTC string) string {
	created, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return strings.ReplaceAll(humanize.Time(created), " ", "_")
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: genebitsctl <run|runs|fitness|diagnostics|top|lineage|inspect|export|scapes> [flags]", msg)
}
