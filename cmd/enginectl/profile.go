package main

import (
	"fmt"
	"path/filepath"

	"euno-analytics-be/pkg/schema"

	"github.com/spf13/cobra"
)

var profileFormat string

var profileCmd = &cobra.Command{
	Use:   "profile <file.csv>",
	Short: "Classify every column and summarize the data",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profileFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(profileCmd)
}

type profileOutput struct {
	Name         string              `json:"name"`
	Rows         int                 `json:"rows"`
	Columns      []schema.Column     `json:"columns"`
	Chartability schema.Chartability `json:"chartability"`
	Insights     schema.Insights     `json:"insights"`
}

func runProfile(cmd *cobra.Command, args []string) error {
	rs, err := loadCSV(args[0])
	if err != nil {
		return err
	}
	cols := schema.Profile(rs)
	out := profileOutput{
		Name:         filepath.Base(args[0]),
		Rows:         len(rs.Rows),
		Columns:      cols,
		Chartability: schema.Assess(cols),
		Insights:     schema.Summarize(rs, cols),
	}

	if profileFormat == "json" {
		return printJSON(out)
	}

	fmt.Printf("%s (%d rows)\n\n", out.Name, out.Rows)
	for _, c := range out.Columns {
		fmt.Printf("  %-24s %s\n", c.Name, c.Type)
	}
	fmt.Println()
	if out.Chartability.Chartable {
		fmt.Println("Chartable: yes")
	} else {
		fmt.Println("Chartable: no (needs a numeric and a categorical or temporal column)")
	}
	for _, n := range out.Insights.Numeric {
		fmt.Printf("  %-24s sum=%.2f mean=%.2f min=%.2f max=%.2f\n", n.Column, n.Sum, n.Mean, n.Min, n.Max)
	}
	for _, r := range out.Insights.Temporal {
		fmt.Printf("  %-24s %s .. %s\n", r.Column, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	}
	return nil
}
