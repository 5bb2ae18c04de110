// Package engine implements policy evaluation.
//
// One evaluation is a stateless pure computation over the current policy
// store and exception state: resolve the applicable policy set for the
// context's scope, evaluate each policy's rules (consulting compliance
// validators where a rule delegates to a named standard, with findings
// cached per evaluation), merge rule effects across policies according to
// each policy's conflict-resolution mode, downgrade blocked rules covered
// by an unexpired exception, and produce an immutable result with a
// deterministic reason string.
//
// Given an identical policy store snapshot, exception set and context,
// evaluation always yields a bit-identical result. A validator failure
// degrades that one standard's contribution and annotates the result; it
// never aborts the evaluation - governance must always produce a
// decision.
package engine
