// Package audit implements the append-only, hash-chained audit ledger.
//
// Every evaluation, enforcement decision, policy publication and
// exception grant is appended as one record. Each record carries the
// SHA-256 hash of its own content and the hash of the previous record;
// Verify recomputes the chain over a range and fails with an
// IntegrityError at the first mismatch, identifying the offending
// sequence number. Tampering is detected, not prevented at the storage
// layer.
//
// Appends are serialized per ledger instance so the chain has a single
// total order: the previous_hash of a committed record always references
// the true prior tail. Records are never updated or deleted; retention
// and export belong to an external reporting collaborator.
//
// Two backends are provided: an in-memory ledger for tests and embedded
// use, and a SQLite ledger for durable deployments. A cron-driven
// Scheduler can verify the chain periodically and surface failures to an
// operator callback.
package audit
