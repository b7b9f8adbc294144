// Package errors provides the typed status taxonomy used across the contract host.
//
// Every failure that can surface to a guest or to the invocation driver is an *Error
// categorized by Type (the component the failure originated in) and Code (the failure
// category). The pair is what a Status value carries across the guest boundary; the
// remaining fields are host-side context for debugging.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.TypeValue, errors.CodeInvalidInput).
//		Path("map", "key", "3").
//		Detail("keys not strictly sorted").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ExceededLimit(errors.TypeBudget, "cpu limit exceeded")
//	err := errors.IndexBounds(errors.TypeWasmVm, 65530, 16, 65536)
//
// InternalError is reserved for host defects. Malformed or adversarial guest input must
// always produce one of the other codes.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
