// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Kind set is the bridge's failure taxonomy:
//
//	out_of_bounds      offset/length exceeds current linear memory
//	decode             malformed UTF-8 or inconsistent length fields
//	allocation         reallocator export missing or trapped
//	trap               guest trap during the export or its cleanup
//	type_mismatch      host value does not match the declared descriptor
//	not_found          export name not in the registry
//	schema_validation  module and schema disagree, detected at load
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLift, errors.KindDecode).
//		Path("result", "message").
//		Detail("string length %d exceeds maximum", n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseLower, path, "string", "u32")
//	err := errors.OutOfBounds(errors.PhaseMemory, offset, length, size)
//
// Callers inspect the kind with KindOf or IsKind; all errors support
// errors.Is/As.
package errors
