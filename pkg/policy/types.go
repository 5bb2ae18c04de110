package policy

import (
	"fmt"

	"mercator-hq/themis/pkg/governance"
)

// ConflictMode controls how a policy's rules are merged against
// same-named rules contributed by other policies in the resolution chain.
type ConflictMode string

const (
	// ModeOverride replaces same-named rule outcomes inherited from
	// less specific policies.
	ModeOverride ConflictMode = "override"

	// ModeMerge accumulates rules; same-named contributions are all
	// kept.
	ModeMerge ConflictMode = "merge"

	// ModeStrictest keeps whichever of two same-named contributions
	// carries the more restrictive effect.
	ModeStrictest ConflictMode = "strictest-wins"
)

// Valid reports whether the mode is one of the known modes.
func (m ConflictMode) Valid() bool {
	switch m {
	case ModeOverride, ModeMerge, ModeStrictest:
		return true
	}
	return false
}

// Status is the lifecycle state of a published policy version.
// Versions are created, activated, and retired when superseded;
// they are never deleted.
type Status string

const (
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// ParentRef names a parent policy for inheritance. The parent is
// identified by scope and name; the store resolves it to whatever version
// is active.
type ParentRef struct {
	Scope governance.Scope `json:"scope" yaml:"scope"`
	Name  string           `json:"name" yaml:"name"`
}

// Key returns the scope/name identity of the referenced policy.
func (r ParentRef) Key() string {
	return r.Scope.String() + "/" + r.Name
}

// RuleKind discriminates the closed set of rule variants.
type RuleKind string

const (
	KindAttribute RuleKind = "attribute"
	KindValidator RuleKind = "validator"
	KindComposite RuleKind = "composite"
)

// CompositeOp combines the conditions of a composite rule.
type CompositeOp string

const (
	CompositeAll CompositeOp = "all"
	CompositeAny CompositeOp = "any"
)

// Condition is a single comparison of a context attribute against an
// expected value.
type Condition struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Validate checks structural validity of the condition.
func (c Condition) Validate() error {
	if c.Attribute == "" {
		return fmt.Errorf("condition attribute is required")
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	if c.Operator != OpExists && c.Value == nil {
		return fmt.Errorf("operator %q requires a value", c.Operator)
	}
	return nil
}

// Rule states a requirement over an evaluation context. When the
// requirement holds the rule contributes allow; when it does not, the
// rule contributes its declared effect. Rules are pure functions of
// (context, validator findings); they must not mutate external state.
type Rule struct {
	Name   string            `json:"name" yaml:"name"`
	Effect governance.Effect `json:"effect" yaml:"effect"`
	Kind   RuleKind          `json:"kind" yaml:"-"`

	// Require is set for attribute rules.
	Require *Condition `json:"require,omitempty" yaml:"require,omitempty"`

	// Standard names the compliance validator a validator rule
	// delegates to. Controls optionally restricts the rule to a subset
	// of the standard's controls.
	Standard string   `json:"standard,omitempty" yaml:"standard,omitempty"`
	Controls []string `json:"controls,omitempty" yaml:"controls,omitempty"`

	// Op and Conditions are set for composite rules.
	Op         CompositeOp `json:"op,omitempty" yaml:"-"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"-"`
}

// Validate checks structural validity of the rule.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !r.Effect.Valid() {
		return fmt.Errorf("rule %q: unknown effect %q", r.Name, r.Effect)
	}
	switch r.Kind {
	case KindAttribute:
		if r.Require == nil {
			return fmt.Errorf("rule %q: attribute rule requires a condition", r.Name)
		}
		if err := r.Require.Validate(); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	case KindValidator:
		if r.Standard == "" {
			return fmt.Errorf("rule %q: validator rule requires a standard", r.Name)
		}
	case KindComposite:
		if r.Op != CompositeAll && r.Op != CompositeAny {
			return fmt.Errorf("rule %q: composite rule requires op all or any", r.Name)
		}
		if len(r.Conditions) == 0 {
			return fmt.Errorf("rule %q: composite rule requires conditions", r.Name)
		}
		for _, c := range r.Conditions {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
		}
	default:
		return fmt.Errorf("rule %q: unknown rule kind %q", r.Name, r.Kind)
	}
	return nil
}

// Policy is a named, versioned, ordered bundle of rules. A published
// version is immutable; edits create a new version. Status is managed by
// the store.
type Policy struct {
	Scope       governance.Scope `json:"scope" yaml:"scope"`
	Name        string           `json:"name" yaml:"name"`
	Version     int              `json:"version" yaml:"version"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Mode        ConflictMode     `json:"mode" yaml:"mode"`
	Parent      *ParentRef       `json:"parent,omitempty" yaml:"parent,omitempty"`
	Rules       []Rule           `json:"rules" yaml:"rules"`
	Status      Status           `json:"status,omitempty" yaml:"-"`
}

// Key returns the scope/name identity shared by all versions of the
// policy.
func (p *Policy) Key() string {
	return p.Scope.String() + "/" + p.Name
}

// Ref returns the version-pinned reference of the policy.
func (p *Policy) Ref() governance.PolicyRef {
	return governance.PolicyRef{Scope: p.Scope, Name: p.Name, Version: p.Version}
}

// Validate checks structural validity of the policy before publication.
func (p *Policy) Validate() error {
	var errs []string
	if p.Name == "" {
		errs = append(errs, "policy name is required")
	}
	if err := p.Scope.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if p.Version < 1 {
		errs = append(errs, fmt.Sprintf("version must be >= 1, got %d", p.Version))
	}
	if !p.Mode.Valid() {
		errs = append(errs, fmt.Sprintf("unknown conflict mode %q", p.Mode))
	}
	if len(p.Rules) == 0 {
		errs = append(errs, "policy must declare at least one rule")
	}
	seen := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Sprintf("duplicate rule name %q", r.Name))
		}
		seen[r.Name] = true
	}
	if p.Parent != nil {
		if p.Parent.Name == "" {
			errs = append(errs, "parent reference requires a name")
		}
		if err := p.Parent.Scope.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("parent %s", err))
		}
	}
	if len(errs) > 0 {
		return &governance.ValidationError{Subject: "policy " + p.Key(), Errors: errs}
	}
	return nil
}
