package engine

import (
	"mercator-hq/themis/pkg/governance"
	"mercator-hq/themis/pkg/policy"
)

// mergeOutcomes folds one policy's rule outcomes into the effective set
// accumulated from more general scopes. Policies arrive ordered most
// general first, so each policy's conflict mode governs how its outcomes
// combine with everything inherited so far.
func mergeOutcomes(effective, incoming []governance.RuleOutcome, mode policy.ConflictMode) []governance.RuleOutcome {
	switch mode {
	case policy.ModeOverride:
		return mergeOverride(effective, incoming)
	case policy.ModeStrictest:
		return mergeStrictest(effective, incoming)
	default:
		// merge: every contribution stands on its own.
		return append(effective, incoming...)
	}
}

// mergeOverride replaces same-named inherited outcomes in place,
// preserving the inherited ordering, and appends new rule names at the
// end.
func mergeOverride(effective, incoming []governance.RuleOutcome) []governance.RuleOutcome {
	replaced := make(map[string]bool, len(incoming))
	for i := range effective {
		for _, in := range incoming {
			if effective[i].RuleName == in.RuleName {
				effective[i] = in
				replaced[in.RuleName] = true
				break
			}
		}
	}
	for _, in := range incoming {
		if !replaced[in.RuleName] {
			effective = append(effective, in)
		}
	}
	return effective
}

// mergeStrictest keeps, for each rule name, whichever contribution is
// stricter. On a tie the inherited one stands, which keeps results
// stable under inheritance.
func mergeStrictest(effective, incoming []governance.RuleOutcome) []governance.RuleOutcome {
	taken := make(map[string]bool, len(incoming))
	for i := range effective {
		for _, in := range incoming {
			if effective[i].RuleName != in.RuleName {
				continue
			}
			taken[in.RuleName] = true
			if in.Effect.Restrictiveness() > effective[i].Effect.Restrictiveness() {
				effective[i] = in
			}
			break
		}
	}
	for _, in := range incoming {
		if !taken[in.RuleName] {
			effective = append(effective, in)
		}
	}
	return effective
}
