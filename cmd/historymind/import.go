package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/historymind"
	"github.com/brunobiangulo/historymind/llm"
	"github.com/brunobiangulo/historymind/parser"
)

var importEmbed bool

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import corpus files into the database",
	Long: `Import parses JSON, JSONL, XLSX or text timeline files and upserts their
records into the corpus database. Unchanged records are left alone.
With --embed, new and changed records are embedded right away.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importEmbed, "embed", false, "Embed new and changed records")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := historymind.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	reg := parser.NewRegistry()

	var changed []string
	for _, path := range args {
		res, err := historymind.Import(ctx, s, reg, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d records (%s), %d changed, %d skipped\n",
			res.Path, res.Records, res.Format, len(res.Changed), res.Skipped)
		changed = append(changed, res.Changed...)
	}

	if !importEmbed {
		return nil
	}
	enc, err := llm.NewEncoder(cfg.Embedding)
	if errors.Is(err, llm.ErrNoProvider) {
		return errors.New("--embed needs an embedding provider in the config")
	}
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	n, err := historymind.EmbedCorpus(ctx, s, enc, cfg.EmbedBatch, changed...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "embedded %d records\n", n)
	return nil
}
