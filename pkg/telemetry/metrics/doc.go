// Package metrics exposes Prometheus instrumentation for evaluations,
// validators, decisions, exceptions, and the audit ledger. All metrics
// register against an injected registry so tests can run isolated.
package metrics
