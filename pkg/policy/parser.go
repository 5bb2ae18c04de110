package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"mercator-hq/themis/pkg/governance"
)

// Document is the YAML file format for policy definitions. One file may
// declare any number of policies.
type Document struct {
	Policies []*policyDoc `yaml:"policies"`
}

type policyDoc struct {
	Name        string           `yaml:"name"`
	Scope       governance.Scope `yaml:"scope"`
	Version     int              `yaml:"version"`
	Description string           `yaml:"description"`
	Mode        ConflictMode     `yaml:"mode"`
	Parent      *ParentRef       `yaml:"parent"`
	Rules       []ruleDoc        `yaml:"rules"`
}

// ruleDoc is the YAML shape of a rule. The rule kind is inferred from
// which of the mutually exclusive keys is present: require (attribute),
// standard (validator), all/any (composite).
type ruleDoc struct {
	Name     string            `yaml:"name"`
	Effect   governance.Effect `yaml:"effect"`
	Require  *Condition        `yaml:"require"`
	Standard string            `yaml:"standard"`
	Controls []string          `yaml:"controls"`
	All      []Condition       `yaml:"all"`
	Any      []Condition       `yaml:"any"`
}

// ParseDocument parses a YAML policy document and validates every policy
// in it. It returns a ValidationError on malformed input.
func ParseDocument(data []byte) ([]*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &governance.ValidationError{
			Subject: "policy document",
			Errors:  []string{fmt.Sprintf("invalid YAML: %v", err)},
		}
	}
	if len(doc.Policies) == 0 {
		return nil, &governance.ValidationError{
			Subject: "policy document",
			Errors:  []string{"document declares no policies"},
		}
	}

	policies := make([]*Policy, 0, len(doc.Policies))
	for _, pd := range doc.Policies {
		p, err := pd.toPolicy()
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func (pd *policyDoc) toPolicy() (*Policy, error) {
	p := &Policy{
		Scope:       pd.Scope,
		Name:        pd.Name,
		Version:     pd.Version,
		Description: pd.Description,
		Mode:        pd.Mode,
		Parent:      pd.Parent,
	}
	for _, rd := range pd.Rules {
		r, err := rd.toRule(pd.Name)
		if err != nil {
			return nil, err
		}
		p.Rules = append(p.Rules, r)
	}
	return p, nil
}

func (rd *ruleDoc) toRule(policyName string) (Rule, error) {
	r := Rule{
		Name:     rd.Name,
		Effect:   rd.Effect,
		Standard: rd.Standard,
		Controls: rd.Controls,
	}

	declared := 0
	if rd.Require != nil {
		declared++
		r.Kind = KindAttribute
		r.Require = rd.Require
	}
	if rd.Standard != "" {
		declared++
		r.Kind = KindValidator
	}
	if len(rd.All) > 0 {
		declared++
		r.Kind = KindComposite
		r.Op = CompositeAll
		r.Conditions = rd.All
	}
	if len(rd.Any) > 0 {
		declared++
		r.Kind = KindComposite
		r.Op = CompositeAny
		r.Conditions = rd.Any
	}

	if declared != 1 {
		return Rule{}, &governance.ValidationError{
			Subject: fmt.Sprintf("policy %q rule %q", policyName, rd.Name),
			Errors:  []string{"rule must declare exactly one of: require, standard, all, any"},
		}
	}
	return r, nil
}
