// Package enforcement turns evaluation results into operational
// decisions and manages the exception workflow. Every decision, granted
// exception included, leaves a record in the audit ledger.
package enforcement
