// Package errors provides the classified error primitives used across slimpack.
//
// A ClassifiedError carries a category, a severity and structured context so
// the CLI can decide how to present a failure and which exit code to use.
// ExitCodeError is the one unclassified shape the CLI understands: it carries
// the exit status of an external tool (CSS compiler, test runner, e2e runner)
// so that status reaches the operator unchanged.
//
// Example usage:
//
//	err := errors.ConfigError("missing server source directory").
//		WithContext("path", cfg.ServerSrcDir).
//		Build()
package errors
