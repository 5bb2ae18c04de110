package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/governance"
)

var evaluateFlags struct {
	kind     string
	org      string
	project  string
	resource string
	attrs    []string
	output   string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one operation against the active policies",
	Long: `Evaluate a single operation against the active policy set and print
the decision.

Attribute values are parsed as booleans or numbers where possible, and
kept as strings otherwise.

Examples:
  # Evaluate a pull request
  themis evaluate --kind pull-request --org acme --project api \
      --attr reviewers=2 --attr tests_passed=true

  # JSON output for scripting
  themis evaluate --kind pipeline-run --org acme --format json`,
	RunE: evaluateOperation,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateFlags.kind, "kind", "", "operation kind")
	evaluateCmd.Flags().StringVar(&evaluateFlags.org, "org", "", "organization scope")
	evaluateCmd.Flags().StringVar(&evaluateFlags.project, "project", "", "project scope")
	evaluateCmd.Flags().StringVar(&evaluateFlags.resource, "resource", "", "resource scope")
	evaluateCmd.Flags().StringArrayVar(&evaluateFlags.attrs, "attr", nil, "operation attribute as key=value (repeatable)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.output, "format", "text", "output format: text, json")
	_ = evaluateCmd.MarkFlagRequired("kind")
	_ = evaluateCmd.MarkFlagRequired("org")
}

func evaluateOperation(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if err := loadPolicies(ctx, a); err != nil {
		return err
	}

	attrs, err := parseAttrs(evaluateFlags.attrs)
	if err != nil {
		return err
	}

	ec := governance.NewContext(
		governance.OperationKind(evaluateFlags.kind),
		governance.Scope{
			Organization: evaluateFlags.org,
			Project:      evaluateFlags.project,
			Resource:     evaluateFlags.resource,
		},
		attrs,
		time.Now().UTC(),
	)

	result, err := a.engine.Evaluate(ctx, ec)
	if err != nil {
		return err
	}
	decision, err := a.enforcer.Enforce(ctx, ec, result)
	if err != nil {
		return err
	}

	if evaluateFlags.output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"result":   result,
			"decision": decision,
		})
	}

	fmt.Printf("Outcome:  %s\n", decision.Outcome)
	fmt.Printf("Effect:   %s\n", decision.Effect)
	fmt.Printf("Reason:   %s\n", decision.Reason)
	if decision.ExceptionID != "" {
		fmt.Printf("Exception: %s\n", decision.ExceptionID)
	}
	if result.Degraded {
		fmt.Printf("Degraded: %s\n", strings.Join(result.DegradedStandards, ", "))
	}
	if decision.Outcome == governance.DecisionReject {
		os.Exit(1)
	}
	return nil
}

// parseAttrs parses key=value pairs, coercing booleans and numbers.
func parseAttrs(pairs []string) (map[string]any, error) {
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected key=value", pair)
		}
		if b, err := strconv.ParseBool(value); err == nil {
			attrs[key] = b
		} else if n, err := strconv.ParseFloat(value, 64); err == nil {
			attrs[key] = n
		} else {
			attrs[key] = value
		}
	}
	return attrs, nil
}
