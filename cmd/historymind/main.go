// Command historymind answers Vietnamese history questions from the
// command line and manages the corpus database.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/historymind"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "historymind",
	Short: "HistoryMind - grounded answers about Vietnamese history",
	Long: `HistoryMind answers questions about Vietnamese history from a corpus of
dated event records. Answers are assembled from the retrieved records and
checked before they are returned; nothing is generated freely.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "historymind v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "corpus database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config and applies the global flag overrides.
func loadConfig() (historymind.Config, error) {
	cfg, err := historymind.LoadConfig(cfgFile)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
