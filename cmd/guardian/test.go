package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"guardian-hq/guardian/pkg/policy/engine"
	"guardian-hq/guardian/pkg/policy/mapper"
)

var testFlags struct {
	contextFile string
	policies    []string
	jsonOutput  bool
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Evaluate a decision context against the policy set",
	Long: `Evaluate a YAML or JSON decision context file against the policy set
and print the result.

The context file holds the sections the rules reference, for example:

  user:
    role: junior
  action:
    type: transfer
    amount: 1500

Examples:
  # Evaluate against the built-in policies
  guardian test --context context.yaml

  # Evaluate against a policy file, restricted to one policy
  guardian test --context context.yaml --file policies.yaml --policies action_gates`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&testFlags.contextFile, "context", "", "decision context file (YAML or JSON)")
	testCmd.Flags().StringSliceVar(&testFlags.policies, "policies", nil, "restrict evaluation to these policies")
	testCmd.Flags().StringVarP(&policyFlags.file, "file", "f", "", "policy file (defaults to the built-in set)")
	testCmd.Flags().BoolVar(&testFlags.jsonOutput, "json", false, "print the full evaluation as JSON")
	_ = testCmd.MarkFlagRequired("context")
}

func runTest(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(testFlags.contextFile)
	if err != nil {
		return fmt.Errorf("failed to read context file: %w", err)
	}

	// YAML is a superset of JSON, so one decoder covers both.
	var evalCtx map[string]any
	if err := yaml.Unmarshal(data, &evalCtx); err != nil {
		return fmt.Errorf("failed to parse context file: %w", err)
	}

	reg, err := policyRegistry()
	if err != nil {
		return err
	}

	eng, err := engine.New(reg, mapper.New(), engine.DefaultConfig(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := eng.EvaluateSubset(ctx, evalCtx, testFlags.policies)

	if testFlags.jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if result.Allow {
		fmt.Printf("✓ ALLOW (%d rules checked, %d passed)\n", result.RulesChecked, result.RulesPassed)
	} else {
		fmt.Printf("✗ DENY (%d rules checked, %d failed)\n", result.RulesChecked, result.RulesFailed)
		for _, v := range result.Violations {
			fmt.Printf("  - %s/%s: %s\n", v.PolicyName, v.RuleName, v.Message)
		}
	}
	if result.Err != "" {
		fmt.Printf("  evaluation error: %s\n", result.Err)
	}

	if !result.Allow {
		os.Exit(1)
	}
	return nil
}
