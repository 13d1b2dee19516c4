package main

import (
	"os"

	"euno-analytics-be/pkg/tier"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var policyFileFlag string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the effective tier policy table",
	Long:  "Loads the built-in tier table, applies an optional YAML override file and validates the result.",
	Args:  cobra.NoArgs,
	RunE:  runPolicy,
}

func init() {
	policyCmd.Flags().StringVar(&policyFileFlag, "file", os.Getenv("TIER_POLICY_FILE"), "YAML override file")
	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, args []string) error {
	table, err := tier.LoadPolicies(policyFileFlag)
	if err != nil {
		return err
	}

	out := make(map[string]tier.Policy, len(table))
	for t, p := range table {
		out[string(t)] = p
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}
