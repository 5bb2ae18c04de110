package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/policy"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

// LintResult is the validation outcome for one policy file.
type LintResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Policies int      `json:"policies"`
	Errors   []string `json:"errors,omitempty"`
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Work with policy documents",
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy documents",
	Long: `Validate policy YAML documents: syntax, rule structure, effects,
operators and conflict modes.

Examples:
  # Lint a file or directory
  themis policy lint policies.yaml

  # Lint a directory
  themis policy lint --dir policies/

  # JSON output for CI
  themis policy lint --dir policies/ --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "policy file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of policy files")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", args[0], err)
		}
		if info.IsDir() {
			lintFlags.dir = args[0]
		} else {
			lintFlags.file = args[0]
		}
	}
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("a path argument or one of --file, --dir must be specified")
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list policy files: %w", err)
			}
			files = append(files, matches...)
		}
		sort.Strings(files)
	}
	if len(files) == 0 {
		return fmt.Errorf("no policy files found")
	}

	results := make([]LintResult, 0, len(files))
	failed := false
	for _, file := range files {
		result := lintFile(file)
		if !result.Valid {
			failed = true
		}
		results = append(results, result)
	}

	if lintFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("OK    %s (%d policies)\n", r.File, r.Policies)
				continue
			}
			fmt.Printf("FAIL  %s\n", r.File)
			for _, e := range r.Errors {
				fmt.Printf("      %s\n", e)
			}
		}
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

func lintFile(path string) LintResult {
	result := LintResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	policies, err := policy.ParseDocument(data)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Valid = true
	result.Policies = len(policies)
	return result
}
