package policy

import (
	"errors"
	"testing"

	"mercator-hq/themis/pkg/governance"
)

const validDocument = `
policies:
  - name: pr-quality
    scope:
      organization: acme
      project: api
    version: 1
    mode: override
    rules:
      - name: min-reviewers
        effect: block
        require:
          attribute: reviewers
          operator: ">="
          value: 2
      - name: sox-controls
        effect: require-approval
        standard: sox
        controls: ["302", "404"]
      - name: release-hygiene
        effect: warn
        all:
          - attribute: tests_passed
            operator: "=="
            value: true
          - attribute: changelog_updated
            operator: exists
`

func TestParseDocument(t *testing.T) {
	policies, err := ParseDocument([]byte(validDocument))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("ParseDocument() returned %d policies, want 1", len(policies))
	}

	p := policies[0]
	if p.Name != "pr-quality" {
		t.Errorf("Name = %q, want pr-quality", p.Name)
	}
	if p.Mode != ModeOverride {
		t.Errorf("Mode = %q, want override", p.Mode)
	}
	if len(p.Rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(p.Rules))
	}

	if p.Rules[0].Kind != KindAttribute {
		t.Errorf("rule 0 kind = %q, want attribute", p.Rules[0].Kind)
	}
	if p.Rules[1].Kind != KindValidator || p.Rules[1].Standard != "sox" {
		t.Errorf("rule 1 = %+v, want validator rule for sox", p.Rules[1])
	}
	if p.Rules[2].Kind != KindComposite || p.Rules[2].Op != CompositeAll {
		t.Errorf("rule 2 = %+v, want composite all rule", p.Rules[2])
	}
}

func TestParseDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "invalid yaml",
			doc:  "policies: [",
		},
		{
			name: "no policies",
			doc:  "policies: []",
		},
		{
			name: "rule without variant",
			doc: `
policies:
  - name: p
    scope: {organization: acme}
    version: 1
    mode: merge
    rules:
      - name: empty-rule
        effect: block
`,
		},
		{
			name: "rule with two variants",
			doc: `
policies:
  - name: p
    scope: {organization: acme}
    version: 1
    mode: merge
    rules:
      - name: ambiguous
        effect: block
        standard: sox
        require:
          attribute: reviewers
          operator: ">="
          value: 2
`,
		},
		{
			name: "bad effect",
			doc: `
policies:
  - name: p
    scope: {organization: acme}
    version: 1
    mode: merge
    rules:
      - name: r
        effect: deny
        require:
          attribute: reviewers
          operator: exists
`,
		},
		{
			name: "duplicate rule names",
			doc: `
policies:
  - name: p
    scope: {organization: acme}
    version: 1
    mode: merge
    rules:
      - name: r
        effect: block
        require: {attribute: a, operator: exists}
      - name: r
        effect: warn
        require: {attribute: b, operator: exists}
`,
		},
		{
			name: "version zero",
			doc: `
policies:
  - name: p
    scope: {organization: acme}
    version: 0
    mode: merge
    rules:
      - name: r
        effect: block
        require: {attribute: a, operator: exists}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.doc))
			if err == nil {
				t.Fatal("ParseDocument() expected an error")
			}
			var verr *governance.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error type = %T, want *governance.ValidationError", err)
			}
		})
	}
}
