package compliance

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/themis/pkg/governance"
)

// control is one checkable requirement of a standard. Each control maps
// to a boolean context attribute; an absent or false attribute fails the
// control. Weight feeds the standard's compliance score.
type control struct {
	ID        string
	Name      string
	Attribute string
	Severity  string
	Weight    int
	Detail    string
}

// controlValidator is the shared implementation behind the shipped
// standards: a name, an applicability set and an ordered control table.
// Findings are emitted in table order so evaluation stays deterministic.
type controlValidator struct {
	standard string
	kinds    map[governance.OperationKind]bool
	controls []control

	// compliantScore is the minimum score (out of 100) at which the
	// standard's summary reports compliant.
	compliantScore int
}

// Standard returns the standard name.
func (v *controlValidator) Standard() string {
	return v.standard
}

// AppliesTo reports whether the validator covers the operation kind.
func (v *controlValidator) AppliesTo(kind governance.OperationKind) bool {
	return v.kinds[kind]
}

// Validate checks every control against the context attributes.
func (v *controlValidator) Validate(ctx context.Context, ec *governance.Context) ([]governance.Finding, error) {
	if ec == nil || ec.Attributes == nil {
		return nil, &governance.ValidationError{
			Subject: "validator " + v.standard,
			Errors:  []string{"context with attributes is required"},
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &governance.UnavailableError{Standard: v.standard, Cause: err}
	}

	findings := make([]governance.Finding, 0, len(v.controls))
	for _, c := range v.controls {
		findings = append(findings, v.check(c, ec))
	}
	return findings, nil
}

func (v *controlValidator) check(c control, ec *governance.Context) governance.Finding {
	f := governance.Finding{
		Standard: v.standard,
		Control:  c.ID,
		Severity: c.Severity,
	}

	val, present := ec.Attribute(c.Attribute)
	satisfied := false
	if present {
		b, ok := val.(bool)
		satisfied = ok && b
	}

	if satisfied {
		f.Status = governance.FindingPass
		f.Detail = c.Name
		f.Evidence = []string{fmt.Sprintf("attribute %s=true at %s", c.Attribute, ec.Timestamp.UTC().Format(time.RFC3339))}
	} else {
		f.Status = governance.FindingFail
		f.Detail = c.Detail
		f.Evidence = []string{fmt.Sprintf("attribute %s absent or false", c.Attribute)}
	}
	return f
}

// Summarize computes the score summary for one standard's findings:
// start at 100, subtract each failed control's weight, compare against
// the standard's threshold. Findings of other standards are ignored.
func (v *controlValidator) Summarize(findings []governance.Finding) governance.ComplianceSummary {
	s := governance.ComplianceSummary{Standard: v.standard, Score: 100}
	weights := make(map[string]int, len(v.controls))
	for _, c := range v.controls {
		weights[c.ID] = c.Weight
	}
	for _, f := range findings {
		if f.Standard != v.standard {
			continue
		}
		switch f.Status {
		case governance.FindingPass:
			s.Passed++
		case governance.FindingFail:
			s.Failed++
			s.Score -= weights[f.Control]
		}
	}
	if s.Score < 0 {
		s.Score = 0
	}
	s.Compliant = s.Score >= v.compliantScore
	return s
}
