// Guardian is a policy evaluation and tool guarding service for agent
// systems.
//
// It evaluates declarative policy rules against decision contexts, wraps
// tool operations so every invocation is checked and audited, and repairs
// rejected actions so they can be retried.
//
// Usage:
//
//	# Start the admin server with default configuration
//	guardian run
//
//	# Start with a custom configuration file
//	guardian run --config /path/to/config.yaml
//
//	# List registered policies
//	guardian policy list
//
//	# Evaluate a context file against the policy set
//	guardian test --context context.yaml
//
//	# Validate a policy file
//	guardian validate --file policies.yaml
package main

func main() {
	Execute()
}
