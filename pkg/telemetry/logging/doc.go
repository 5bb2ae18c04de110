// Package logging configures the structured logger shared by all themis
// components. It wraps log/slog with level and format parsing so the
// rest of the codebase only ever sees *slog.Logger values.
package logging
