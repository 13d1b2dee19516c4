package main

import (
	"fmt"
	"path/filepath"

	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/schema"

	"github.com/spf13/cobra"
)

var (
	minOverlapFlag float64
	sampleSizeFlag int
)

var correlateCmd = &cobra.Command{
	Use:   "correlate <a.csv> <b.csv> [more.csv...]",
	Short: "Propose join keys shared by two or more files",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCorrelate,
}

func init() {
	correlateCmd.Flags().Float64Var(&minOverlapFlag, "min-overlap", correlation.DefaultMinOverlap, "Minimum value overlap (Jaccard) to keep a key")
	correlateCmd.Flags().IntVar(&sampleSizeFlag, "sample-size", correlation.DefaultSampleSize, "Rows sampled per column")
	rootCmd.AddCommand(correlateCmd)
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	samples := make([]correlation.SourceSample, 0, len(args))
	for _, path := range args {
		rs, err := loadCSV(path)
		if err != nil {
			return err
		}
		samples = append(samples, correlation.SourceSample{
			SourceID: path,
			Name:     filepath.Base(path),
			Columns:  schema.Profile(rs),
			Rows:     rs.Rows,
		})
	}

	keys := correlation.NewResolver(correlation.Options{
		MinOverlap: minOverlapFlag,
		SampleSize: sampleSizeFlag,
	}).Resolve(samples)

	if len(keys) == 0 {
		fmt.Println("No shared columns above the overlap threshold; the files would be analyzed separately.")
		return nil
	}
	return printJSON(keys)
}
