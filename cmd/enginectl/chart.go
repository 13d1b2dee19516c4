package main

import (
	"errors"

	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/chart"

	"github.com/spf13/cobra"
)

var questionFlag string

var chartCmd = &cobra.Command{
	Use:   "chart <file.csv>",
	Short: "Pick and shape a chart with the fallback rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runChart,
}

func init() {
	chartCmd.Flags().StringVarP(&questionFlag, "question", "q", "", "Question the chart should answer")
	rootCmd.AddCommand(chartCmd)
}

func runChart(cmd *cobra.Command, args []string) error {
	rs, err := loadCSV(args[0])
	if err != nil {
		return err
	}

	// no reasoner: always the deterministic path
	spec, ok := chart.NewRecommender(nil, logger.NewNopLogger()).Recommend(cmd.Context(), questionFlag, rs)
	if !ok {
		return errors.New("data is not chartable: it needs a numeric column and a categorical or temporal column")
	}
	return printJSON(chart.Shape(spec, rs))
}
