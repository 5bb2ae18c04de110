package engine

import (
	"fmt"
	"strings"

	"mercator-hq/themis/pkg/governance"
)

// buildReason renders the deterministic human-readable explanation for an
// evaluation. Outcomes appear in effective-set order, so identical inputs
// always yield the identical string.
func buildReason(ec *governance.Context, refs []governance.PolicyRef, outcomes []governance.RuleOutcome) string {
	if len(refs) == 0 {
		return fmt.Sprintf("no applicable policies for %s", ec.Scope)
	}

	var parts []string
	for _, o := range outcomes {
		if o.ExceptionID != "" {
			parts = append(parts, fmt.Sprintf("policy %s rule %q waived by exception %s", o.Policy, o.RuleName, o.ExceptionID))
			continue
		}
		if o.Effect == governance.EffectAllow && !o.Degraded {
			continue
		}
		if o.Degraded {
			parts = append(parts, fmt.Sprintf("policy %s rule %q: degraded (%s)", o.Policy, o.RuleName, o.Detail))
			continue
		}
		parts = append(parts, fmt.Sprintf("policy %s rule %q: %s (%s)", o.Policy, o.RuleName, o.Effect, o.Detail))
	}
	if len(parts) == 0 {
		return "all rules satisfied"
	}
	return strings.Join(parts, "; ")
}
