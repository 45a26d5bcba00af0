// Command eval runs scenario datasets against a HistoryMind engine.
//
// Built-in scenarios against an imported corpus:
//
//	go run ./cmd/eval --config historymind.yaml
//
// A custom dataset, restricted to some categories:
//
//	go run ./cmd/eval \
//	  --corpus ./data/events.json \
//	  --dataset ./evals/scenarios.yaml \
//	  --category fact-check --category range \
//	  --min-pass-rate 0.9
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/brunobiangulo/historymind"
	"github.com/brunobiangulo/historymind/eval"
)

// stringSlice implements flag.Value for multi-value string flags.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ", ") }
func (s *stringSlice) Set(val string) error {
	*s = append(*s, val)
	return nil
}

func main() {
	var (
		corpusFiles stringSlice
		datasets    stringSlice
		categories  stringSlice
	)

	var (
		configPath  = flag.String("config", "", "Path to config file (YAML, JSON or TOML)")
		dbPath      = flag.String("db", "", "Path to SQLite database (default: inside run directory)")
		maxTests    = flag.Int("max-tests", 0, "Max scenarios per dataset (0=all)")
		minRecall   = flag.Float64("min-recall", eval.DefaultMinRecall, "Expected-fact recall a scenario needs to pass")
		minPassRate = flag.Float64("min-pass-rate", 0, "Exit non-zero when the total pass rate is below this")
		outputFile  = flag.String("output", "", "Path to write JSON report (default: inside run directory)")
	)
	flag.Var(&corpusFiles, "corpus", "Corpus file to import into a fresh database (repeatable)")
	flag.Var(&datasets, "dataset", "Scenario dataset file, YAML or JSON (repeatable; default: built-in)")
	flag.Var(&categories, "category", "Only run scenarios of this category (repeatable)")
	flag.Parse()

	cfg, err := historymind.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// --- Run artifact directory ---
	runDir := createRunDir()
	fmt.Fprintf(os.Stderr, "Run directory: %s\n", runDir)

	// Setup log tee: write to both stderr and eval.log
	logFile := setupLogTee(runDir)
	defer logFile.Close()

	switch {
	case *dbPath != "":
		cfg.DBPath = *dbPath
	case len(corpusFiles) > 0:
		cfg.DBPath = filepath.Join(runDir, "historymind.db")
		fmt.Fprintf(os.Stderr, "Using database: %s\n", cfg.DBPath)
	}
	if len(corpusFiles) > 0 {
		cfg.CorpusFiles = corpusFiles
	}

	var sets []eval.Dataset
	if len(datasets) == 0 {
		sets = append(sets, eval.HistoryDataset())
	}
	for _, path := range datasets {
		ds, err := eval.LoadDataset(path)
		if err != nil {
			log.Fatalf("loading dataset: %v", err)
		}
		sets = append(sets, ds)
	}
	for i := range sets {
		sets[i] = sets[i].Filter(categories...)
		if *maxTests > 0 && len(sets[i].Scenarios) > *maxTests {
			sets[i].Scenarios = sets[i].Scenarios[:*maxTests]
		}
	}

	// Collect metadata
	meta := map[string]any{
		"git_commit":      gitCommit(),
		"go_version":      runtime.Version(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"embed_provider":  cfg.Embedding.Provider,
		"embed_model":     cfg.Embedding.Model,
		"embed_dim":       cfg.EmbeddingDim,
		"cross_encoder":   cfg.CrossEncoder.Provider != "",
		"nli":             cfg.NLI.Provider != "",
		"min_recall":      *minRecall,
		"corpus_files":    []string(corpusFiles),
		"dataset_files":   []string(datasets),
		"categories":      []string(categories),
		"max_tests":       *maxTests,
		"retrieval_top_k": cfg.Retrieval.TopK,
	}
	writeJSON(filepath.Join(runDir, "metadata.json"), meta)

	totalStart := time.Now()

	fmt.Fprintf(os.Stderr, "Creating engine...\n")
	engine, err := historymind.New(cfg)
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	evaluator := eval.NewEvaluator(engine)
	evaluator.SetMinRecall(*minRecall)

	var allReports []*eval.Report
	for _, ds := range sets {
		if len(ds.Scenarios) == 0 {
			fmt.Fprintf(os.Stderr, "Skipping %s: no scenarios selected\n", ds.Name)
			continue
		}
		fmt.Fprintf(os.Stderr, "\nRunning %s (%d scenarios)...\n", ds.Name, len(ds.Scenarios))
		report, err := evaluator.Run(ctx, ds, historymind.WithoutLog())
		if err != nil {
			log.Fatalf("running %s: %v", ds.Name, err)
		}
		allReports = append(allReports, report)

		fmt.Println(eval.FormatReport(report))
		fmt.Println()
	}

	meta["total_elapsed"] = time.Since(totalStart).Round(time.Millisecond).String()
	writeJSON(filepath.Join(runDir, "metadata.json"), meta)

	// Write eval-report.json in run directory
	reportPath := filepath.Join(runDir, "eval-report.json")
	writeJSON(reportPath, allReports)
	fmt.Fprintf(os.Stderr, "Eval report written to: %s\n", reportPath)

	if *outputFile != "" {
		writeJSON(*outputFile, allReports)
		fmt.Fprintf(os.Stderr, "JSON report also written to: %s\n", *outputFile)
	}

	// Print summary
	fmt.Println("=== Summary ===")
	totalPassed, totalTests := 0, 0
	for _, r := range allReports {
		totalPassed += r.Passed
		totalTests += r.TotalTests
		fmt.Printf("  %-45s %d/%d (%.1f%%)\n", r.Dataset, r.Passed, r.TotalTests, r.PassRate()*100)
	}
	rate := 0.0
	if totalTests > 0 {
		rate = float64(totalPassed) / float64(totalTests)
		fmt.Printf("  %-45s %d/%d (%.1f%%)\n", "TOTAL", totalPassed, totalTests, rate*100)
	}

	fmt.Fprintf(os.Stderr, "\nRun directory: %s\n", runDir)

	if rate < *minPassRate {
		fmt.Fprintf(os.Stderr, "pass rate %.2f below --min-pass-rate %.2f\n", rate, *minPassRate)
		logFile.Close()
		engine.Close()
		os.Exit(1)
	}
}

// createRunDir creates evals/runs/<timestamp>/ and returns its path.
func createRunDir() string {
	ts := time.Now().Format("2006-01-02_15-04-05")
	dir := filepath.Join("evals", "runs", ts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("creating run directory: %v", err)
	}
	return dir
}

// setupLogTee configures slog to write to both stderr and eval.log in the run dir.
func setupLogTee(runDir string) *os.File {
	logPath := filepath.Join(runDir, "eval.log")
	f, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("creating log file: %v", err)
	}
	w := io.MultiWriter(os.Stderr, f)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
	return f
}

// gitCommit returns the current git HEAD short hash, or "unknown".
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// writeJSON marshals v to indented JSON and writes it to path.
func writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("marshaling JSON for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("writing %s: %v", path, err)
	}
}
