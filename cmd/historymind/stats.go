package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/historymind"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and database statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := historymind.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	st, err := engine.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statsFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	c := st.Corpus
	fmt.Fprintf(out, "documents:  %d (%d dated, %d-%d)\n", c.Documents, c.Dated, c.MinYear, c.MaxYear)
	fmt.Fprintf(out, "persons:    %d\n", c.Persons)
	fmt.Fprintf(out, "dynasties:  %d\n", c.Dynasties)
	if st.Store != nil {
		fmt.Fprintf(out, "embeddings: %d\n", st.Store.Embeddings)
		fmt.Fprintf(out, "queries:    %d\n", st.Store.Queries)
	}
	return nil
}
