// Package compliance implements standard-specific validators: each
// validator checks an evaluation context against one named compliance
// standard and produces a structured finding set.
//
// Validators never raise for business conditions: a failed control is a
// fail finding, not an error. They fail only on malformed input
// (ValidationError) or unavailability of a required external signal
// (UnavailableError), which the engine absorbs into a degraded-evaluation
// marker.
//
// Validators are looked up through a Registry keyed by standard name, so
// adding a new compliance standard requires only a new registry entry,
// not engine changes. Four standards ship by default: cmmi (process
// maturity), sox (financial controls), gdpr (data protection) and
// iso27001 (security management).
package compliance
