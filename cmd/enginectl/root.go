package main

import (
	"encoding/json"
	"fmt"
	"os"

	"euno-analytics-be/pkg/schema"

	"github.com/spf13/cobra"
)

var (
	// maxRowsFlag bounds how much of each CSV is loaded
	maxRowsFlag int
)

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Run the analytics engine's deterministic parts on local files",
	Long: `enginectl profiles CSV files, proposes join keys between them, picks charts
with the fallback rules and inspects the tier policy table. Nothing here calls
the reasoning service.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&maxRowsFlag, "max-rows", 10000, "Maximum rows read per file (0 reads everything)")
}

func loadCSV(path string) (schema.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return schema.ResultSet{}, err
	}
	defer f.Close()

	rs, err := schema.ReadCSV(f, maxRowsFlag)
	if err != nil {
		return schema.ResultSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
