package hypermlp

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"hypermlp/internal/evo"
	"hypermlp/internal/model"
	"hypermlp/internal/stats"
)

func testFolds() *[2]model.Fold {
	var folds [2]model.Fold
	for f := range folds {
		folds[f].Name = []string{"fold-a", "fold-b"}[f]
		for i := 0; i < 12; i++ {
			label := i % 3
			features := make([]float64, model.FeatureCount)
			for j := range features {
				features[j] = float64((j + f + i) % 4)
				if j%3 == label {
					features[j] += 12
				}
			}
			folds[f].Samples = append(folds[f].Samples, model.Sample{Features: features, Label: label})
		}
	}
	return &folds
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
		ResultsDir:   base,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func readResultLines(t *testing.T, path string) []model.EvaluationRecord {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer file.Close()

	var records []model.EvaluationRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		record, err := stats.ParseRecord(scanner.Text())
		if err != nil {
			t.Fatalf("parse result line %q: %v", scanner.Text(), err)
		}
		records = append(records, record)
	}
	return records
}

func TestClientSearchPersistsRunAndArtifacts(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	observed := 0
	summary, err := client.Search(ctx, SearchRequest{
		Data:        DataRequest{Folds: testFolds()},
		Training:    TrainingRequest{MaxIterations: 5},
		Population:  4,
		Generations: 2,
		Seed:        7,
		Workers:     2,
		RetrainBest: true,
		Observer: func(model.GenerationDiagnostics) {
			observed++
		},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := uuid.Parse(summary.RunID); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", summary.RunID, err)
	}
	if observed != 2 || len(summary.BestByGeneration) != 2 {
		t.Fatalf("unexpected generation count: observed=%d history=%v", observed, summary.BestByGeneration)
	}
	if summary.BestByGeneration[1] < summary.BestByGeneration[0] {
		t.Fatalf("best-ever fitness decreased: %v", summary.BestByGeneration)
	}
	if summary.BestFitness != summary.BestByGeneration[1] {
		t.Fatalf("best fitness %f does not match history %v", summary.BestFitness, summary.BestByGeneration)
	}
	if err := evo.ValidateConfig(summary.BestConfig); err != nil {
		t.Fatalf("best config invalid: %v", err)
	}
	if summary.Evaluations == 0 || summary.Evaluations%2 != 0 {
		t.Fatalf("expected two records per evaluation, got %d", summary.Evaluations)
	}
	if !strings.Contains(summary.Summary, "run_id="+summary.RunID) {
		t.Fatalf("unexpected summary line: %s", summary.Summary)
	}

	if summary.Retrained == nil || len(summary.Retrained.Runs) != 2 {
		t.Fatalf("expected retrained two-fold summary, got %+v", summary.Retrained)
	}
	if got := summary.Retrained.Runs[0].Config.HiddenLayers; len(got) != len(summary.BestConfig.HiddenLayers) {
		t.Fatalf("retrained config %v does not match best %v", got, summary.BestConfig.HiddenLayers)
	}

	lines := readResultLines(t, summary.ResultsPath)
	if len(lines) != summary.Evaluations+2 {
		t.Fatalf("result file has %d lines, want %d", len(lines), summary.Evaluations+2)
	}

	records, err := client.Evaluations(ctx, RunRef{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("evaluations: %v", err)
	}
	if len(records) != summary.Evaluations {
		t.Fatalf("stored %d evaluations, want %d", len(records), summary.Evaluations)
	}
	for _, record := range records {
		if record.SchemaVersion == 0 || record.CandidateID == "" {
			t.Fatalf("record missing version or candidate id: %+v", record)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].FinalBestFitness != summary.BestFitness {
		t.Fatalf("unexpected runs list: %+v", runs)
	}

	diagnostics, err := client.Diagnostics(ctx, RunRef{Latest: true})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 2 || diagnostics[1].Generation != 2 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}
	lineage, err := client.Lineage(ctx, RunRef{RunID: summary.RunID, Limit: 3})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(lineage) != 3 || lineage[0].Operation != "seed" {
		t.Fatalf("unexpected lineage: %+v", lineage)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export latest: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported run mismatch: got=%s want=%s", exported.RunID, summary.RunID)
	}
	for _, file := range []string{"config.json", "fitness_history.csv", "generation_diagnostics.json", "best_candidate.json", "lineage.json"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestClientTwoFoldDefaultsToManualConfig(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.TwoFold(context.Background(), TwoFoldRequest{
		Data:     DataRequest{Folds: testFolds()},
		Training: TrainingRequest{MaxIterations: 3},
		Seed:     1,
	})
	if err != nil {
		t.Fatalf("two fold: %v", err)
	}
	if len(summary.Runs) != 2 || summary.Runs[0].Fold != 1 || summary.Runs[1].Fold != 2 {
		t.Fatalf("unexpected fold runs: %+v", summary.Runs)
	}
	if summary.Fitness < 0 || summary.Fitness > 2 {
		t.Fatalf("fitness out of range: %f", summary.Fitness)
	}
	lines := readResultLines(t, summary.ResultsPath)
	if len(lines) != 2 {
		t.Fatalf("expected two result lines, got %d", len(lines))
	}
	manual := ManualConfig()
	if got := lines[0].Config; got.Gain != manual.Gain || got.StagnationWindow != manual.StagnationWindow || len(got.HiddenLayers) != 2 || got.HiddenLayers[0] != 46 {
		t.Fatalf("expected manual config in result line, got %+v", got)
	}

	if _, err := client.TwoFold(context.Background(), TwoFoldRequest{
		Data:   DataRequest{Folds: testFolds()},
		Config: model.HyperConfig{HiddenLayers: []int{0}, Gain: 1, TargetAccuracy: 1, StagnationWindow: 1},
	}); err == nil {
		t.Fatal("expected invalid topology error")
	}
}

func TestClientBaseline(t *testing.T) {
	client := newTestClient(t)
	summary, err := client.Baseline(context.Background(), DataRequest{Folds: testFolds()})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if summary.FoldA != "fold-a" || summary.FoldB != "fold-b" {
		t.Fatalf("unexpected fold names: %+v", summary)
	}
	if summary.AccuracyAOnB != 1 || summary.AccuracyBOnA != 1 || summary.Mean() != 1 {
		t.Fatalf("expected separable folds to classify perfectly: %+v", summary)
	}

	if _, err := client.Baseline(context.Background(), DataRequest{DataA: filepath.Join(t.TempDir(), "missing.csv")}); err == nil {
		t.Fatal("expected missing dataset error")
	}
}

func TestClientSearchRejectsInvalidRequests(t *testing.T) {
	client := newTestClient(t)
	cases := []struct {
		name string
		req  SearchRequest
	}{
		{name: "negative generations", req: SearchRequest{Generations: -1}},
		{name: "odd population", req: SearchRequest{Population: 5, Generations: 1}},
		{name: "unknown specie identifier", req: SearchRequest{Population: 4, Generations: 1, SpecieIdentifier: "fingerprint"}},
		{name: "unknown postprocessor", req: SearchRequest{Population: 4, Generations: 1, FitnessPostprocessor: "novelty_proportional"}},
		{name: "negative learning rate", req: SearchRequest{Population: 4, Generations: 1, Training: TrainingRequest{LearningRate: -1}}},
		{name: "negative momentum", req: SearchRequest{Population: 4, Generations: 1, Training: TrainingRequest{Momentum: ptr(-0.5)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Data = DataRequest{Folds: testFolds()}
			if _, err := client.Search(context.Background(), tc.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestTrainingParamsMomentumOverride(t *testing.T) {
	params, err := trainingParams(TrainingRequest{})
	if err != nil {
		t.Fatalf("default params: %v", err)
	}
	if params.Momentum != DefaultMomentum {
		t.Fatalf("expected default momentum %f, got %f", DefaultMomentum, params.Momentum)
	}

	params, err = trainingParams(TrainingRequest{Momentum: ptr(0.0)})
	if err != nil {
		t.Fatalf("zero momentum params: %v", err)
	}
	if params.Momentum != 0 {
		t.Fatalf("expected momentum disabled, got %f", params.Momentum)
	}

	if _, err := trainingParams(TrainingRequest{Momentum: ptr(-1.0)}); err == nil {
		t.Fatal("expected negative momentum error")
	}
}

func TestClientRunLookupsValidateReference(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Evaluations(ctx, RunRef{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting reference error")
	}
	if _, err := client.Lineage(ctx, RunRef{}); err == nil {
		t.Fatal("expected missing reference error")
	}
	if _, err := client.Diagnostics(ctx, RunRef{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Diagnostics(ctx, RunRef{RunID: "unknown"}); err == nil {
		t.Fatal("expected diagnostics not found error")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "unknown"}); err == nil {
		t.Fatal("expected export error for unknown run")
	}
}
