// Package policy defines the policy and rule model: a policy is a named,
// versioned bundle of rules with an optional parent reference and a
// conflict-resolution mode; a rule maps a requirement over an evaluation
// context to an effect.
//
// Rules are a closed set of kinds rather than arbitrary executable code,
// so evaluation stays deterministic and auditable without an embedded
// scripting runtime:
//
//   - attribute: a single comparison against a context attribute
//   - validator: delegation to a named compliance standard
//   - composite: all/any over a list of attribute comparisons
//
// Policies are authored as YAML documents; ParseDocument reads one
// document containing any number of policies.
package policy
