package hypermlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hypermlp/internal/baseline"
	"hypermlp/internal/crossval"
	"hypermlp/internal/dataset"
	"hypermlp/internal/evo"
	"hypermlp/internal/model"
	"hypermlp/internal/stats"
	"hypermlp/internal/storage"
	"hypermlp/internal/training"
)

const (
	DefaultDataA    = "cw2DataSet1.csv"
	DefaultDataB    = "cw2DataSet2.csv"
	DefaultMomentum = training.DefaultMomentum

	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultResultsDir   = "."
	defaultDBPath       = "hypermlp.db"
	defaultGenerations  = 1000
)

// ManualConfig is the hand-tuned configuration evaluated by TwoFold when the
// request leaves Config empty.
func ManualConfig() model.HyperConfig {
	return model.HyperConfig{
		HiddenLayers:      []int{46, 42},
		Gain:              1.2,
		TargetAccuracy:    0.998,
		StagnationWindow:  389,
		MutationIntensity: 170,
	}
}

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// ResultsDir receives one result-<run id>.txt per search or two-fold run.
	ResultsDir string
	Logger     *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	artifactsDir string
	exportsDir   string
	resultsDir   string

	now   func() time.Time
	newID func() string
}

// DataRequest names the two folds. Preloaded Folds take precedence over the
// paths.
type DataRequest struct {
	DataA string
	DataB string
	Folds *[2]model.Fold
}

// TrainingRequest overrides the training controls that are not genetically
// encoded. Zero values keep training.DefaultParams.
// TrainingRequest overrides training parameters. Zero values and a nil
// Momentum keep the defaults; Momentum may point at 0 to drop the carried
// update.
type TrainingRequest struct {
	LearningRate  float64
	Momentum      *float64
	MaxIterations int
	MaxDuration   time.Duration
}

type BaselineSummary struct {
	FoldA        string
	FoldB        string
	AccuracyAOnB float64
	AccuracyBOnA float64
}

func (s BaselineSummary) Mean() float64 {
	return (s.AccuracyAOnB + s.AccuracyBOnA) / 2
}

type TwoFoldRequest struct {
	Data     DataRequest
	Training TrainingRequest
	Config   model.HyperConfig
	Seed     int64
}

type TwoFoldSummary struct {
	RunID       string
	ResultsPath string
	Fitness     float64
	Runs        []model.EvaluationRecord
}

type SearchRequest struct {
	Data        DataRequest
	Training    TrainingRequest
	Population  int
	Generations int
	// MutationsPerGeneration defaults to evo.DefaultMutationsPerGeneration;
	// negative disables mutation.
	MutationsPerGeneration int
	Seed                   int64
	Workers                int
	SpecieIdentifier       string
	// FitnessPostprocessor adjusts parent selection scores: none or
	// size_proportional.
	FitnessPostprocessor string
	// Bounds defaults to evo.DefaultBounds.
	Bounds evo.Bounds
	// RetrainBest re-runs the two-fold evaluation of the winning
	// configuration after the search.
	RetrainBest bool
	Observer    func(model.GenerationDiagnostics)
}

type SearchSummary struct {
	RunID            string
	ArtifactsDir     string
	ResultsPath      string
	BestByGeneration []float64
	BestFitness      float64
	BestConfig       model.HyperConfig
	Evaluations      int
	Retrained        *TwoFoldSummary
	Summary          string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	Workers          int
	FinalBestFitness float64
}

type RunRef struct {
	RunID  string
	Latest bool
	Limit  int
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

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		resultsDir:   resultsDir,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Baseline scores the nearest-neighbour classifier on both fold orders.
func (c *Client) Baseline(_ context.Context, req DataRequest) (BaselineSummary, error) {
	folds, err := loadFolds(req)
	if err != nil {
		return BaselineSummary{}, err
	}
	aOnB, bOnA := baseline.TwoFold(folds[0], folds[1])
	c.logger.Info("baseline complete", "fold_a", folds[0].Name, "fold_b", folds[1].Name, "a_on_b", aOnB, "b_on_a", bOnA)
	return BaselineSummary{
		FoldA:        folds[0].Name,
		FoldB:        folds[1].Name,
		AccuracyAOnB: aOnB,
		AccuracyBOnA: bOnA,
	}, nil
}

// TwoFold evaluates one fixed configuration and appends both fold runs to a
// fresh result file.
func (c *Client) TwoFold(ctx context.Context, req TwoFoldRequest) (TwoFoldSummary, error) {
	cfg := req.Config
	if len(cfg.HiddenLayers) == 0 {
		cfg = ManualConfig()
	}
	if err := evo.ValidateConfig(cfg); err != nil {
		return TwoFoldSummary{}, err
	}
	base, err := trainingParams(req.Training)
	if err != nil {
		return TwoFoldSummary{}, err
	}
	folds, err := loadFolds(req.Data)
	if err != nil {
		return TwoFoldSummary{}, err
	}

	runID := c.newID()
	resultsPath := c.resultsPath(runID)
	resultLog, err := stats.OpenResultLog(resultsPath)
	if err != nil {
		return TwoFoldSummary{}, err
	}
	defer resultLog.Close()

	summary, err := c.twoFold(ctx, "manual", folds, base, cfg, rand.New(rand.NewSource(req.Seed)), resultLog)
	if err != nil {
		return TwoFoldSummary{}, err
	}
	summary.RunID = runID
	summary.ResultsPath = resultsPath
	if err := resultLog.Close(); err != nil {
		return TwoFoldSummary{}, err
	}
	return summary, nil
}

func (c *Client) twoFold(ctx context.Context, candidateID string, folds [2]model.Fold, base training.Params, cfg model.HyperConfig, rng *rand.Rand, sink crossval.Sink) (TwoFoldSummary, error) {
	evaluator := &crossval.Evaluator{Folds: folds, Base: base, Sink: sink, Now: c.now}
	report, err := evaluator.EvaluateReport(ctx, candidateID, cfg, rng)
	if err != nil {
		return TwoFoldSummary{}, err
	}
	for _, run := range report.Runs {
		c.logger.Info("fold complete",
			"fold", run.Fold,
			"hidden_layers", run.Config.HiddenLayers,
			"train_accuracy", run.TrainAccuracy,
			"test_accuracy", run.TestAccuracy,
			"iterations", run.Iterations,
			"mutations", run.Mutations,
		)
	}
	return TwoFoldSummary{Fitness: report.Fitness, Runs: report.Runs}, nil
}

// Search runs the genetic hyper-parameter search. Every fold run is appended
// to the run's result file and to the store; run metadata, diagnostics and
// lineage are persisted once the generation budget completes.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchSummary, error) {
	if req.Population < 0 || req.Generations < 0 || req.Workers < 0 {
		return SearchSummary{}, errors.New("population, generations and workers must be >= 0")
	}
	if req.Population == 0 {
		req.Population = evo.DefaultPopulationSize
	}
	if req.Generations == 0 {
		req.Generations = defaultGenerations
	}
	if req.Workers == 0 {
		req.Workers = 1
	}
	if req.Bounds == (evo.Bounds{}) {
		req.Bounds = evo.DefaultBounds()
	}
	identifier, err := evo.SpecieIdentifierFromName(req.SpecieIdentifier)
	if err != nil {
		return SearchSummary{}, err
	}
	postprocessor, err := evo.PostprocessorFromName(req.FitnessPostprocessor)
	if err != nil {
		return SearchSummary{}, err
	}
	base, err := trainingParams(req.Training)
	if err != nil {
		return SearchSummary{}, err
	}
	folds, err := loadFolds(req.Data)
	if err != nil {
		return SearchSummary{}, err
	}
	if err := c.store.Init(ctx); err != nil {
		return SearchSummary{}, err
	}

	started := c.now()
	runID := c.newID()
	logger := c.logger.With("run_id", runID)
	resultsPath := c.resultsPath(runID)
	resultLog, err := stats.OpenResultLog(resultsPath)
	if err != nil {
		return SearchSummary{}, err
	}
	defer resultLog.Close()

	rng := rand.New(rand.NewSource(req.Seed))
	evaluator := &crossval.Evaluator{
		Folds: folds,
		Base:  base,
		Sink:  crossval.MultiSink{resultLog, storage.EvaluationSink{Store: c.store, RunID: runID}},
		Now:   c.now,
	}
	population, err := evo.NewPopulation(evo.PopulationConfig{
		Size:          req.Population,
		Bounds:        req.Bounds,
		Workers:       req.Workers,
		Evaluator:     evaluator,
		Postprocessor: postprocessor,
		Rand:          rng,
	})
	if err != nil {
		return SearchSummary{}, err
	}
	monitor := &evo.PopulationMonitor{
		Population:             population,
		MutationsPerGeneration: req.MutationsPerGeneration,
		Identifier:             identifier,
		Logger:                 logger,
		Observer:               req.Observer,
	}
	logger.Info("search started", "population", req.Population, "generations", req.Generations, "workers", req.Workers, "seed", req.Seed)
	result, err := monitor.Run(ctx, req.Generations)
	if err != nil {
		return SearchSummary{}, fmt.Errorf("search %s: %w", runID, err)
	}

	bestFitness, _ := result.Best.Fitness().Score()
	bestConfig := result.Best.Config()
	createdAt := started.UTC().Format(time.RFC3339Nano)
	run := model.RunRecord{
		VersionedRecord:  storage.CurrentVersion(),
		ID:               runID,
		CreatedAtUTC:     createdAt,
		Seed:             req.Seed,
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		BestFitness:      bestFitness,
		BestConfig:       bestConfig,
		BestByGeneration: result.BestByGeneration,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return SearchSummary{}, err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return SearchSummary{}, err
	}
	if err := c.store.SaveLineage(ctx, runID, result.Lineage); err != nil {
		return SearchSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:                  runID,
			DataA:                  folds[0].Name,
			DataB:                  folds[1].Name,
			PopulationSize:         req.Population,
			Generations:            req.Generations,
			MutationsPerGeneration: req.MutationsPerGeneration,
			Seed:                   req.Seed,
			Workers:                req.Workers,
			SpecieIdentifier:       identifier.Name(),
			FitnessPostprocessor:   postprocessor.Name(),
			LearningRate:           base.LearningRate,
			Momentum:               base.Momentum,
			MaxIterations:          base.MaxIterations,
			MaxDurationMS:          base.MaxDuration.Milliseconds(),
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		Best:                  stats.BestCandidate{ID: result.Best.ID, Fitness: bestFitness, Config: bestConfig},
		Lineage:               result.Lineage,
	})
	if err != nil {
		return SearchSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		Seed:             req.Seed,
		Workers:          req.Workers,
		FinalBestFitness: bestFitness,
		CreatedAtUTC:     createdAt,
	}); err != nil {
		return SearchSummary{}, err
	}

	evaluations, err := c.store.ListEvaluations(ctx, runID)
	if err != nil {
		return SearchSummary{}, err
	}
	summary := SearchSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		ResultsPath:      resultsPath,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		BestFitness:      bestFitness,
		BestConfig:       bestConfig,
		Evaluations:      len(evaluations),
	}

	if req.RetrainBest {
		retrained, err := c.twoFold(ctx, result.Best.ID, folds, base, bestConfig, rng, resultLog)
		if err != nil {
			return SearchSummary{}, fmt.Errorf("retrain best of %s: %w", runID, err)
		}
		retrained.RunID = runID
		retrained.ResultsPath = resultsPath
		summary.Retrained = &retrained
	}
	if err := resultLog.Close(); err != nil {
		return SearchSummary{}, err
	}

	summary.Summary = stats.FormatSummary(stats.RunSummary{
		RunID:          runID,
		PopulationSize: req.Population,
		Generations:    req.Generations,
		Evaluations:    int64(len(evaluations)),
		BestFitness:    bestFitness,
		BestConfig:     bestConfig,
		Elapsed:        c.now().Sub(started),
		CreatedAt:      started,
	}, c.now())
	logger.Info("search complete", "best_fitness", bestFitness, "best_config", bestConfig, "evaluations", len(evaluations))
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			Workers:          e.Workers,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

// Evaluations lists a run's fold records in the order they were appended.
func (c *Client) Evaluations(ctx context.Context, req RunRef) ([]model.EvaluationRecord, error) {
	runID, err := c.resolveRunID(req, "evaluations")
	if err != nil {
		return nil, err
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListEvaluations(ctx, runID)
	if err != nil {
		return nil, err
	}
	return limit(records, req.Limit), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunRef) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(req, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return limit(diagnostics, req.Limit), nil
}

func (c *Client) Lineage(ctx context.Context, req RunRef) ([]model.LineageRecord, error) {
	runID, err := c.resolveRunID(req, "lineage")
	if err != nil {
		return nil, err
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	return limit(lineage, req.Limit), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(RunRef{RunID: req.RunID, Latest: req.Latest}, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(req RunRef, operation string) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if !req.Latest {
		if req.RunID == "" {
			return "", fmt.Errorf("%s requires run id or latest", operation)
		}
		return req.RunID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) resultsPath(runID string) string {
	return filepath.Join(c.resultsDir, "result-"+runID+".txt")
}

func loadFolds(req DataRequest) ([2]model.Fold, error) {
	if req.Folds != nil {
		return *req.Folds, nil
	}
	if req.DataA == "" {
		req.DataA = DefaultDataA
	}
	if req.DataB == "" {
		req.DataB = DefaultDataB
	}
	return dataset.LoadFolds(req.DataA, req.DataB)
}

func trainingParams(req TrainingRequest) (training.Params, error) {
	params := training.DefaultParams()
	if req.LearningRate < 0 || req.MaxIterations < 0 || req.MaxDuration < 0 {
		return training.Params{}, errors.New("training overrides must be >= 0")
	}
	if req.Momentum != nil && *req.Momentum < 0 {
		return training.Params{}, errors.New("momentum must be >= 0")
	}
	if req.LearningRate > 0 {
		params.LearningRate = req.LearningRate
	}
	if req.Momentum != nil {
		params.Momentum = *req.Momentum
	}
	if req.MaxIterations > 0 {
		params.MaxIterations = req.MaxIterations
	}
	if req.MaxDuration > 0 {
		params.MaxDuration = req.MaxDuration
	}
	return params, params.Validate()
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
