// Package errors provides the classified error primitives used across corpusbuild.
//
// A ClassifiedError carries a category (what part of the system failed), a
// severity (whether the build cycle can continue) and a free-form context map.
// Errors are constructed with the fluent ErrorBuilder:
//
//	err := errors.WrapError(cause, errors.CategoryFileSystem, "source root unreadable").
//		WithContext("root", root).
//		Fatal().
//		Build()
//
// Per-file problems are never ClassifiedErrors escaping a cycle; they are
// recorded as diagnostics. Fatal classified errors abort the cycle and surface
// as build-failure events.
package errors
