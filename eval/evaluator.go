package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/historymind"
)

// ErrEmptyDataset is returned by Run for a dataset without scenarios.
var ErrEmptyDataset = errors.New("eval: dataset has no scenarios")

// DefaultMinRecall is the expected-fact recall a scenario needs to pass.
const DefaultMinRecall = 1.0

// Evaluator runs evaluation scenarios against a HistoryMind engine.
type Evaluator struct {
	engine    historymind.Engine
	minRecall float64
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(engine historymind.Engine) *Evaluator {
	return &Evaluator{engine: engine, minRecall: DefaultMinRecall}
}

// SetMinRecall sets the expected-fact recall a scenario needs to pass.
func (e *Evaluator) SetMinRecall(r float64) {
	if r >= 0 && r <= 1 {
		e.minRecall = r
	}
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset         string                      `json:"dataset"`
	TotalTests      int                         `json:"total_tests"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Severities      map[string]int              `json:"severities"`
	Outcomes        map[string]int              `json:"outcomes"`
	Results         []TestResult                `json:"results"`
	RunTime         time.Duration               `json:"run_time"`
}

// PassRate returns the passed share of all scenarios, in [0,1].
func (r *Report) PassRate() float64 {
	if r.TotalTests == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.TotalTests)
}

// AggregateMetrics holds averaged metrics across scenarios.
type AggregateMetrics struct {
	// IntentAccuracy is computed over scenarios that name an intent.
	IntentAccuracy float64 `json:"intent_accuracy"`
	IntentChecked  int     `json:"intent_checked"`

	AvgFactRecall   float64 `json:"avg_fact_recall"`
	AvgSourceRecall float64 `json:"avg_source_recall"`
	AvgConfidence   float64 `json:"avg_confidence"`
	ForbiddenHits   int     `json:"forbidden_hits"`
	PassRate        float64 `json:"pass_rate"`
}

// TestResult holds the result of a single scenario.
type TestResult struct {
	Question      string `json:"question"`
	Category      string `json:"category,omitempty"`
	Answer        string `json:"answer"`
	Outcome       string `json:"outcome"`
	Severity      string `json:"severity"`
	Intent        string `json:"intent"`
	WantIntent    string `json:"want_intent,omitempty"`
	IntentCorrect bool   `json:"intent_correct"`
	OutcomeOK     bool   `json:"outcome_ok"`

	FactRecall    float64  `json:"fact_recall"`
	SourceRecall  float64  `json:"source_recall"`
	MissingFacts  []string `json:"missing_facts,omitempty"`
	ForbiddenHits []string `json:"forbidden_hits,omitempty"`
	Confidence    float64  `json:"confidence"`
	Sources       []string `json:"sources,omitempty"`
	Strategy      string   `json:"strategy,omitempty"`

	Passed    bool   `json:"passed"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// accumulator sums per-scenario metrics for one group.
type accumulator struct {
	n, passed                   int
	intentN, intentOK           int
	recall, sources, confidence float64
	forbidden                   int
}

func (a *accumulator) add(r TestResult) {
	a.n++
	if r.Passed {
		a.passed++
	}
	if r.WantIntent != "" {
		a.intentN++
		if r.IntentCorrect {
			a.intentOK++
		}
	}
	a.recall += r.FactRecall
	a.sources += r.SourceRecall
	a.confidence += r.Confidence
	a.forbidden += len(r.ForbiddenHits)
}

func (a *accumulator) metrics() AggregateMetrics {
	m := AggregateMetrics{IntentChecked: a.intentN, ForbiddenHits: a.forbidden}
	if a.intentN > 0 {
		m.IntentAccuracy = float64(a.intentOK) / float64(a.intentN)
	}
	if a.n > 0 {
		n := float64(a.n)
		m.AvgFactRecall = a.recall / n
		m.AvgSourceRecall = a.sources / n
		m.AvgConfidence = a.confidence / n
		m.PassRate = float64(a.passed) / n
	}
	return m
}

// Run executes every scenario of dataset against the engine, sequentially
// and in order.
func (e *Evaluator) Run(ctx context.Context, dataset Dataset, opts ...historymind.QueryOption) (*Report, error) {
	if len(dataset.Scenarios) == 0 {
		return nil, ErrEmptyDataset
	}
	start := time.Now()
	report := &Report{
		Dataset:         dataset.Name,
		TotalTests:      len(dataset.Scenarios),
		CategoryMetrics: make(map[string]AggregateMetrics),
		Severities:      make(map[string]int),
		Outcomes:        make(map[string]int),
	}

	var total accumulator
	cats := make(map[string]*accumulator)

	for i, sc := range dataset.Scenarios {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := e.runScenario(ctx, sc, opts...)
		report.Results = append(report.Results, result)

		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		if result.Error != "" {
			status = "ERROR"
		}
		slog.Info("eval: scenario complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(dataset.Scenarios)),
			"status", status,
			"outcome", result.Outcome,
			"severity", result.Severity,
			"recall", fmt.Sprintf("%.2f", result.FactRecall),
			"elapsed_ms", result.ElapsedMs,
			"question", truncate(sc.Question, 80))

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Severities[result.Severity]++
		report.Outcomes[result.Outcome]++

		total.add(result)
		if sc.Category != "" {
			acc, ok := cats[sc.Category]
			if !ok {
				acc = &accumulator{}
				cats[sc.Category] = acc
			}
			acc.add(result)
		}
	}

	report.Metrics = total.metrics()
	for cat, acc := range cats {
		report.CategoryMetrics[cat] = acc.metrics()
	}
	report.RunTime = time.Since(start)
	return report, nil
}

func (e *Evaluator) runScenario(ctx context.Context, sc Scenario, opts ...historymind.QueryOption) TestResult {
	start := time.Now()
	result := TestResult{
		Question:   sc.Question,
		Category:   sc.Category,
		WantIntent: string(sc.Intent),
	}

	answer := e.engine.Query(ctx, sc.Question, opts...)
	result.ElapsedMs = time.Since(start).Milliseconds()

	result.Answer = answer.Text
	result.Outcome = string(answer.Outcome)
	result.Severity = severityOf(answer)
	result.Intent = string(answer.Intent)
	result.Confidence = answer.Confidence
	result.Strategy = answer.Trace.Strategy
	for _, s := range answer.Sources {
		result.Sources = append(result.Sources, s.ID)
	}
	if answer.Outcome == historymind.OutcomeInternalError {
		result.Error = answer.Trace.Error
		return result
	}

	result.IntentCorrect = sc.Intent == "" || answer.Intent == sc.Intent
	result.OutcomeOK = sc.Outcome == "" || answer.Outcome == sc.Outcome
	result.FactRecall = computeFactRecall(answer, sc.ExpectedFacts)
	result.SourceRecall = computeSourceRecall(answer, sc.ExpectedSources)
	result.ForbiddenHits = forbiddenHits(answer, sc.ForbiddenFacts)
	for _, f := range sc.ExpectedFacts {
		if !containsFact(answer.Text, f) {
			result.MissingFacts = append(result.MissingFacts, f)
		}
	}

	result.Passed = result.IntentCorrect &&
		result.OutcomeOK &&
		result.FactRecall >= e.minRecall &&
		result.SourceRecall >= e.minRecall &&
		len(result.ForbiddenHits) == 0
	return result
}

// FormatReport produces a human-readable report string.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evaluation Report: %s ===\n", r.Dataset)
	fmt.Fprintf(&b, "Total: %d | Passed: %d (%.1f%%) | Failed: %d\n",
		r.TotalTests, r.Passed, r.PassRate()*100, r.Failed)
	fmt.Fprintf(&b, "Run time: %s\n\n", r.RunTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "Aggregate Metrics:\n")
	fmt.Fprintf(&b, "  Intent Accuracy:  %.2f (%d checked)\n", r.Metrics.IntentAccuracy, r.Metrics.IntentChecked)
	fmt.Fprintf(&b, "  Fact Recall:      %.2f\n", r.Metrics.AvgFactRecall)
	fmt.Fprintf(&b, "  Source Recall:    %.2f\n", r.Metrics.AvgSourceRecall)
	fmt.Fprintf(&b, "  Forbidden Hits:   %d\n", r.Metrics.ForbiddenHits)
	fmt.Fprintf(&b, "  Confidence:       %.2f\n\n", r.Metrics.AvgConfidence)

	fmt.Fprintf(&b, "Verification:\n")
	for _, k := range sortedKeys(r.Severities) {
		fmt.Fprintf(&b, "  %-10s %d\n", k, r.Severities[k])
	}
	fmt.Fprintf(&b, "\nOutcomes:\n")
	for _, k := range sortedKeys(r.Outcomes) {
		fmt.Fprintf(&b, "  %-15s %d\n", k, r.Outcomes[k])
	}
	fmt.Fprintln(&b)

	// Per-category breakdown (sorted for deterministic output)
	if len(r.CategoryMetrics) > 0 {
		fmt.Fprintf(&b, "Per-Category Metrics:\n")
		for _, cat := range sortedKeys(r.CategoryMetrics) {
			m := r.CategoryMetrics[cat]
			fmt.Fprintf(&b, "  [%s] Pass=%.0f%% Intent=%.2f Recall=%.2f Src=%.2f Forbidden=%d Conf=%.2f\n",
				cat, m.PassRate*100, m.IntentAccuracy, m.AvgFactRecall, m.AvgSourceRecall, m.ForbiddenHits, m.AvgConfidence)
		}
		fmt.Fprintln(&b)
	}

	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %d. %s\n", status, i+1, res.Question)
		if res.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", res.Error)
			continue
		}
		fmt.Fprintf(&b, "  Intent=%s Outcome=%s Severity=%s Recall=%.2f Conf=%.2f  (%dms)\n",
			res.Intent, res.Outcome, res.Severity, res.FactRecall, res.Confidence, res.ElapsedMs)
		if !res.IntentCorrect {
			fmt.Fprintf(&b, "  want intent %s\n", res.WantIntent)
		}
		if len(res.MissingFacts) > 0 {
			fmt.Fprintf(&b, "  missing: %s\n", strings.Join(res.MissingFacts, ", "))
		}
		if len(res.ForbiddenHits) > 0 {
			fmt.Fprintf(&b, "  forbidden: %s\n", strings.Join(res.ForbiddenHits, ", "))
		}
	}

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
