package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"guardian-hq/guardian/pkg/policy/registry"
	"guardian-hq/guardian/pkg/policy/rules"
)

var policyFlags struct {
	file string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the policy set",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := policyRegistry()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "POLICY\tVERSION\tRULES\tDESCRIPTION")
		for _, p := range reg.Policies() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Name, p.Version, len(p.Rules), p.Description)
		}
		return w.Flush()
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show <policy>",
	Short: "Show a policy's rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := policyRegistry()
		if err != nil {
			return err
		}

		p, ok := reg.Get(args[0])
		if !ok {
			return fmt.Errorf("policy not found: %s", args[0])
		}

		fmt.Printf("Policy: %s", p.Name)
		if p.Version != "" {
			fmt.Printf(" (version %s)", p.Version)
		}
		fmt.Println()
		if p.Description != "" {
			fmt.Printf("  %s\n", p.Description)
		}
		fmt.Println()

		for _, r := range p.Rules {
			fmt.Printf("Rule: %s [%s]\n", r.Name, r.Kind)
			for path, val := range r.Condition {
				fmt.Printf("  when  %s == %v\n", path, val)
			}
			for path, c := range r.Constraint {
				fmt.Printf("  check %s %s\n", path, c.String())
			}
			fmt.Printf("  message: %s\n\n", r.Message)
		}
		return nil
	},
}

// policyRegistry builds a registry from --file, the configured policy
// path, or the built-in policy set.
func policyRegistry() (*registry.Registry, error) {
	path := policyFlags.file
	if path == "" {
		if cfg, err := loadConfig(); err == nil {
			path = cfg.Policy.Path
		}
	}
	if path == "" {
		return registry.NewBuiltin(), nil
	}

	policies, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return registry.New(policies, nil), nil
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyShowCmd)

	policyCmd.PersistentFlags().StringVarP(&policyFlags.file, "file", "f", "", "policy file (defaults to the configured path, then the built-in set)")
}
