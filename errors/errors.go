package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module loading and instantiation
	PhaseValidate Phase = "validate" // registry construction
	PhaseParse    Phase = "parse"    // WIT parsing
	PhaseMemory   Phase = "memory"   // linear memory access
	PhaseLower    Phase = "lower"    // Go to guest
	PhaseLift     Phase = "lift"     // guest to Go
	PhaseAlloc    Phase = "alloc"    // reallocator calls
	PhaseCall     Phase = "call"     // raw export invocation
	PhaseCleanup  Phase = "cleanup"  // post-return invocation
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds      Kind = "out_of_bounds"
	KindDecode           Kind = "decode"
	KindAllocation       Kind = "allocation"
	KindTrap             Kind = "trap"
	KindTypeMismatch     Kind = "type_mismatch"
	KindNotFound         Kind = "not_found"
	KindSchemaValidation Kind = "schema_validation"
	KindUnsupported      Kind = "unsupported"
	KindInvalidInput     Kind = "invalid_input"
	KindNotInitialized   Kind = "not_initialized"
	KindCanceled         Kind = "canceled"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.WitType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether the outermost *Error in err's chain has kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		WitType: witType,
	}
}

// OutOfBounds creates a memory bounds error. The end offset is reported as
// a 64-bit value so overflowing arithmetic stays visible.
func OutOfBounds(phase Phase, offset uint32, length uint64, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) exceeds memory size %d", offset, uint64(offset)+length, size),
		Value:  offset,
	}
}

// InvalidUTF8 creates a decode error for a malformed string payload
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindDecode,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Decode creates a decode error for inconsistent guest data
func Decode(path []string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseLift,
		Kind:   KindDecode,
		Path:   path,
		Detail: detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Trap creates a guest trap error for the named export
func Trap(phase Phase, export string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Detail: fmt.Sprintf("guest trapped in %q", export),
		Cause:  cause,
	}
}

// ExportNotFound creates a not found error for an export name
func ExportNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("export %q not found", name),
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// SchemaValidation creates a load-time schema validation error
func SchemaValidation(export, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindSchemaValidation,
		Path:   []string{export},
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: fmt.Sprintf("unsupported: %s", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized creates a not initialized error
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load wraps an error that occurred while loading a module
func Load(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: what,
		Cause:  cause,
	}
}

// WithPath prefixes the path of err when it is an *Error, otherwise wraps it
// as kind in phase.
func WithPath(err error, phase Phase, kind Kind, path ...string) error {
	var e *Error
	if stderrors.As(err, &e) {
		if len(e.Path) == 0 {
			e.Path = append([]string{}, path...)
		}
		return e
	}
	return &Error{
		Phase: phase,
		Kind:  kind,
		Path:  path,
		Cause: err,
	}
}
