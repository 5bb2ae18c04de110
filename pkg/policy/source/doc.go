// Package source loads policy documents into the policy store from the
// outside world: a directory of YAML documents, optionally kept live via
// filesystem watching, or a Git repository pulled on demand with commit
// provenance attached to every publication.
package source
