package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hypermlp/internal/storage"
	"hypermlp/pkg/hypermlp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "baseline":
		return runBaseline(ctx, args[1:])
	case "mlp":
		return runMLP(ctx, args[1:])
	case "search":
		return runSearch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "evaluations":
		return runEvaluations(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that needs a client.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	resultsDir   *string
	logLevel     *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", "hypermlp.db", "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", "runs", "run artifact directory"),
		resultsDir:   fs.String("results-dir", ".", "directory for result-<run id>.txt files"),
		logLevel:     fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) open() (*hypermlp.Client, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return hypermlp.New(hypermlp.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ResultsDir:   *f.resultsDir,
		Logger:       logger,
	})
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func runBaseline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("baseline", flag.ContinueOnError)
	dataA := fs.String("data-a", hypermlp.DefaultDataA, "first fold CSV path")
	dataB := fs.String("data-b", hypermlp.DefaultDataB, "second fold CSV path")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Baseline(ctx, hypermlp.DataRequest{DataA: *dataA, DataB: *dataB})
	if err != nil {
		return err
	}
	fmt.Printf("baseline fold_a=%s fold_b=%s a_on_b=%.4f b_on_a=%.4f mean=%.4f\n",
		summary.FoldA,
		summary.FoldB,
		summary.AccuracyAOnB,
		summary.AccuracyBOnA,
		summary.Mean(),
	)
	return nil
}

func runMLP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mlp", flag.ContinueOnError)
	dataA := fs.String("data-a", hypermlp.DefaultDataA, "first fold CSV path")
	dataB := fs.String("data-b", hypermlp.DefaultDataB, "second fold CSV path")
	manual := hypermlp.ManualConfig()
	layers := fs.String("layers", formatLayers(manual.HiddenLayers), "comma-separated hidden layer widths")
	gain := fs.Float64("gain", manual.Gain, "sigmoid gain")
	target := fs.Float64("target", manual.TargetAccuracy, "training accuracy threshold")
	window := fs.Int("window", manual.StagnationWindow, "stagnation window in passes")
	intensity := fs.Int("intensity", manual.MutationIntensity, "weights reassigned per layer group on stagnation")
	seed := fs.Int64("seed", 1, "rng seed")
	training := registerTrainingFlags(fs)
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	hidden, err := parseLayers(*layers)
	if err != nil {
		return err
	}
	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.TwoFold(ctx, hypermlp.TwoFoldRequest{
		Data:     hypermlp.DataRequest{DataA: *dataA, DataB: *dataB},
		Training: training.request(),
		Config:   manualConfig(hidden, *gain, *target, *window, *intensity),
		Seed:     *seed,
	})
	if err != nil {
		return err
	}
	for _, r := range summary.Runs {
		fmt.Printf("fold=%d train_accuracy=%.4f test_accuracy=%.4f iterations=%s mutations=%s train_time=%s\n",
			r.Fold,
			r.TrainAccuracy,
			r.TestAccuracy,
			humanize.Comma(int64(r.Iterations)),
			humanize.Comma(int64(r.Mutations)),
			r.TrainTime.Round(time.Millisecond),
		)
	}
	fmt.Printf("fitness=%.4f results=%s\n", summary.Fitness, summary.ResultsPath)
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional search config JSON path")
	dataA := fs.String("data-a", hypermlp.DefaultDataA, "first fold CSV path")
	dataB := fs.String("data-b", hypermlp.DefaultDataB, "second fold CSV path")
	population := fs.Int("pop", 50, "population size (even, >= 4)")
	generations := fs.Int("gens", 1000, "generation count")
	mutations := fs.Int("mutations", 10, "re-rolls per generation (negative disables)")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "concurrent fitness evaluations")
	specieIdentifier := fs.String("specie-identifier", "topology", "diagnostics species identifier: topology|tot_n")
	postprocessor := fs.String("fitness-postprocessor", "none", "parent selection score adjustment: none|size_proportional")
	retrain := fs.Bool("retrain-best", false, "re-run the two-fold evaluation of the best configuration")
	training := registerTrainingFlags(fs)
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req := hypermlp.SearchRequest{
		Data:                   hypermlp.DataRequest{DataA: *dataA, DataB: *dataB},
		Training:               training.request(),
		Population:             *population,
		Generations:            *generations,
		MutationsPerGeneration: *mutations,
		Seed:                   *seed,
		Workers:                *workers,
		SpecieIdentifier:       *specieIdentifier,
		FitnessPostprocessor:   *postprocessor,
		RetrainBest:            *retrain,
	}
	if *configPath != "" {
		loaded, err := loadSearchRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		if err := overrideFromFlags(&loaded, setFlags, map[string]any{
			"data-a":                *dataA,
			"data-b":                *dataB,
			"pop":                   *population,
			"gens":                  *generations,
			"mutations":             *mutations,
			"seed":                  *seed,
			"workers":               *workers,
			"specie-identifier":     *specieIdentifier,
			"fitness-postprocessor": *postprocessor,
			"retrain-best":          *retrain,
			"learning-rate":         *training.learningRate,
			"momentum":              *training.momentum,
			"max-iterations":        *training.maxIterations,
			"max-duration":          *training.maxDuration,
		}); err != nil {
			return err
		}
		req = loaded
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Search(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(summary.Summary)
	fmt.Printf("artifacts=%s results=%s\n", summary.ArtifactsDir, summary.ResultsPath)
	if summary.Retrained != nil {
		fmt.Printf("retrained fitness=%.4f\n", summary.Retrained.Fitness)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, hypermlp.RunsRequest{Limit: *limit})
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
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s seed=%d pop=%d gens=%s workers=%d final_best_fitness=%.6f\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Seed,
			r.Population,
			humanize.Comma(int64(r.Generations)),
			r.Workers,
			r.FinalBestFitness,
		)
	}
	return nil
}

func runEvaluations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluations", flag.ContinueOnError)
	ref := registerRunRefFlags(fs)
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	records, err := client.Evaluations(ctx, ref.value())
	if err != nil {
		return err
	}
	if *ref.jsonOut {
		return writeJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no evaluations found")
		return nil
	}
	for _, r := range records {
		fmt.Printf("candidate=%s fold=%d layers=%s gain=%.4f target=%.4f window=%d intensity=%d train_accuracy=%.4f test_accuracy=%.4f\n",
			r.CandidateID,
			r.Fold,
			formatLayers(r.Config.HiddenLayers),
			r.Config.Gain,
			r.Config.TargetAccuracy,
			r.Config.StagnationWindow,
			r.Config.MutationIntensity,
			r.TrainAccuracy,
			r.TestAccuracy,
		)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	ref := registerRunRefFlags(fs)
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, ref.value())
	if err != nil {
		return err
	}
	if *ref.jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d elite_fitness=%.6f best_ever_fitness=%.6f mean_fitness=%.6f evaluated=%d species=%d\n",
			d.Generation,
			d.EliteFitness,
			d.BestEverFitness,
			d.MeanFitness,
			d.EvaluatedCount,
			d.TopologyVariants,
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	ref := registerRunRefFlags(fs)
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, ref.value())
	if err != nil {
		return err
	}
	if *ref.jsonOut {
		return writeJSON(lineage)
	}
	for _, l := range lineage {
		fmt.Printf("candidate=%s generation=%d operation=%s parents=%s\n",
			l.CandidateID,
			l.Generation,
			l.Operation,
			strings.Join(l.ParentIDs, ","),
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "export directory")
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, hypermlp.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

type trainingFlags struct {
	learningRate  *float64
	momentum      *float64
	maxIterations *int
	maxDuration   *time.Duration
}

func registerTrainingFlags(fs *flag.FlagSet) trainingFlags {
	return trainingFlags{
		learningRate:  fs.Float64("learning-rate", 0, "backpropagation learning rate (0 uses default)"),
		momentum:      fs.Float64("momentum", hypermlp.DefaultMomentum, "momentum coefficient (0 disables the carried update)"),
		maxIterations: fs.Int("max-iterations", 0, "training pass cap per fold run (0 uses default)"),
		maxDuration:   fs.Duration("max-duration", 0, "wall-clock budget per fold run (0 uses default)"),
	}
}

func (f trainingFlags) request() hypermlp.TrainingRequest {
	return hypermlp.TrainingRequest{
		LearningRate:  *f.learningRate,
		Momentum:      f.momentum,
		MaxIterations: *f.maxIterations,
		MaxDuration:   *f.maxDuration,
	}
}

type runRefFlags struct {
	runID   *string
	latest  *bool
	limit   *int
	jsonOut *bool
}

func registerRunRefFlags(fs *flag.FlagSet) runRefFlags {
	return runRefFlags{
		runID:   fs.String("run-id", "", "run id"),
		latest:  fs.Bool("latest", false, "use the most recent run"),
		limit:   fs.Int("limit", 0, "max rows to print (0 prints all)"),
		jsonOut: fs.Bool("json", false, "emit JSON"),
	}
}

func (f runRefFlags) value() hypermlp.RunRef {
	return hypermlp.RunRef{RunID: *f.runID, Latest: *f.latest, Limit: *f.limit}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: hypermlpctl <baseline|mlp|search|runs|evaluations|diagnostics|lineage|export> [flags]", msg)
}
