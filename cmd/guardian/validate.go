package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"guardian-hq/guardian/pkg/policy/rules"
)

var validateFlags struct {
	file string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a policy file",
	Long: `Parse and compile a policy file, reporting any malformed rule or
constraint without loading it.

Examples:
  guardian validate --file policies.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policies, err := rules.LoadFile(validateFlags.file)
		if err != nil {
			var configErr *rules.ConfigError
			if errors.As(err, &configErr) {
				return fmt.Errorf("invalid policy file: %w", configErr)
			}
			return err
		}

		ruleCount := 0
		for _, p := range policies {
			ruleCount += len(p.Rules)
		}
		fmt.Printf("✓ %s is valid (%d policies, %d rules)\n", validateFlags.file, len(policies), ruleCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "policy file to validate")
	_ = validateCmd.MarkFlagRequired("file")
}
