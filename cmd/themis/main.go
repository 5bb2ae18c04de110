// Themis is a policy and compliance governance engine for software
// delivery operations.
//
// It evaluates operations (pull requests, pipeline runs, configuration
// changes) against versioned, scope-inherited policies and compliance
// standards, enforces the merged decision, and records every decision in
// a hash-chained audit ledger.
//
// Usage:
//
//	# Start the governance runtime with a configuration file
//	themis run --config /path/to/config.yaml
//
//	# Validate policy documents
//	themis policy lint policies/
//
//	# Evaluate a single operation from the command line
//	themis evaluate --kind pull-request --org acme --project api \
//	    --attr reviewers=1 --attr tests_passed=true
//
//	# Verify the audit chain
//	themis audit verify --db audit.db
package main

func main() {
	Execute()
}
