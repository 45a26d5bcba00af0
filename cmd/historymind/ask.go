package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/historymind"
)

var (
	askFormat string
	askTrace  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question",
	Example: `  historymind ask "Năm 1945 có sự kiện gì?"
  historymind ask --format json "Trần Hưng Đạo là ai?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askFormat, "format", "human", "Output format (human, json)")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "Print the pipeline trace")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := historymind.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	answer := engine.Query(cmd.Context(), strings.Join(args, " "))
	out := cmd.OutOrStdout()

	switch askFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	case "human":
		printAnswer(out, answer, askTrace)
		return nil
	default:
		return fmt.Errorf("unknown format %q", askFormat)
	}
}

func printAnswer(w io.Writer, a *historymind.Answer, trace bool) {
	fmt.Fprintln(w, a.Text)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "intent: %s  outcome: %s  confidence: %.2f\n", a.Intent, a.Outcome, a.Confidence)
	if a.Verification != nil {
		fmt.Fprintf(w, "verification: %s\n", a.Verification.Severity)
	}
	if len(a.Sources) > 0 {
		fmt.Fprintln(w, "sources:")
		for _, s := range a.Sources {
			fmt.Fprintf(w, "  - %s  %s (%v)  score=%.3f\n", s.ID, s.Title, s.Year, s.Score)
		}
	}
	if !trace {
		return
	}
	t := a.Trace
	fmt.Fprintf(w, "\ntrace %s (%dms)\n", t.RequestID, t.ElapsedMs)
	fmt.Fprintf(w, "  rewritten: %s\n", t.Rewritten)
	for _, c := range t.Corrections {
		fmt.Fprintf(w, "  correction: %+v\n", c)
	}
	if t.Strategy != "" {
		fmt.Fprintf(w, "  strategy: %s", t.Strategy)
		if t.Fallback != "" {
			fmt.Fprintf(w, " (fallback %s)", t.Fallback)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  retrieved=%d reranked=%d template=%s\n", t.Retrieved, t.Reranked, t.Template)
	for _, s := range t.Steps {
		fmt.Fprintf(w, "  %-10s %4dms  %s\n", s.Stage, s.ElapsedMs, s.Output)
	}
}
