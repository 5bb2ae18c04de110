// Package facts supplies evaluation contexts with attributes gathered
// from external systems. Evaluation itself never reaches out: rules and
// validators only read the attribute snapshot a Fetcher assembled before
// the evaluation started.
package facts
