// Package errors provides foundational, type-safe error primitives used across the gallery builder.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, fetch, plot, filesystem, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (never, backoff, user action)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter: exit code mapping and presentation for the command line
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryFileSystem, "write gallery").
//		WithContext("path", outputPath).
//		Build()
package errors
