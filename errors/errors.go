package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Type indicates which part of the host the failure originated in
type Type uint32

const (
	TypeContract Type = iota // raised by guest code
	TypeWasmVm               // VM boundary and linear memory
	TypeContext              // frames, depth, invocation plumbing
	TypeStorage              // contract registry
	TypeObject               // object store and host objects
	TypeCrypto               // hashing
	TypeEvents               // reserved
	TypeBudget               // resource meters
	TypeValue                // Val and wire-format conversion
	TypeAuth                 // reserved
)

// MaxType is the largest defined Type.
const MaxType = TypeAuth

// Code categorizes the failure
type Code uint32

const (
	CodeArithDomain Code = iota
	CodeIndexBounds
	CodeInvalidInput
	CodeMissingValue
	CodeExistingValue
	CodeExceededLimit
	CodeInvalidAction
	CodeInternalError
	CodeUnexpectedType
	CodeUnexpectedSize
)

// MaxCode is the largest defined Code.
const MaxCode = CodeUnexpectedSize

var typeNames = [...]string{
	TypeContract: "contract",
	TypeWasmVm:   "wasm_vm",
	TypeContext:  "context",
	TypeStorage:  "storage",
	TypeObject:   "object",
	TypeCrypto:   "crypto",
	TypeEvents:   "events",
	TypeBudget:   "budget",
	TypeValue:    "value",
	TypeAuth:     "auth",
}

var codeNames = [...]string{
	CodeArithDomain:    "arith_domain",
	CodeIndexBounds:    "index_bounds",
	CodeInvalidInput:   "invalid_input",
	CodeMissingValue:   "missing_value",
	CodeExistingValue:  "existing_value",
	CodeExceededLimit:  "exceeded_limit",
	CodeInvalidAction:  "invalid_action",
	CodeInternalError:  "internal_error",
	CodeUnexpectedType: "unexpected_type",
	CodeUnexpectedSize: "unexpected_size",
}

func (t Type) String() string {
	if t <= MaxType {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

func (c Code) String() string {
	if c <= MaxCode {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// Valid reports whether the pair is representable as a Status.
// Contract errors carry an arbitrary guest-chosen code.
func Valid(t Type, c Code) bool {
	if t > MaxType {
		return false
	}
	return t == TypeContract || c <= MaxCode
}

// Error is the structured error type used throughout the host
type Error struct {
	Value  any
	Cause  error
	Detail string
	Path   []string
	Type   Type
	Code   Code
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(e.Type.String())
	b.WriteString("] ")
	if e.Type == TypeContract {
		fmt.Fprintf(&b, "contract error #%d", uint32(e.Code))
	} else {
		b.WriteString(e.Code.String())
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target carries the same status
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// IsCode reports whether the error carries the given code
func (e *Error) IsCode(c Code) bool {
	return e.Code == c && e.Type != TypeContract
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(t Type, c Code) *Builder {
	return &Builder{
		err: Error{
			Type: t,
			Code: c,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// As extracts the *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries a non-contract status with the given code
func IsCode(err error, c Code) bool {
	e, ok := As(err)
	return ok && e.IsCode(c)
}

// IsType reports whether err carries a status of the given type
func IsType(err error, t Type) bool {
	e, ok := As(err)
	return ok && e.Type == t
}

// Status returns the (type, code) pair for err. Errors that are not *Error
// are host defects and map to (Context, InternalError).
func Status(err error) (Type, Code) {
	if e, ok := As(err); ok {
		return e.Type, e.Code
	}
	return TypeContext, CodeInternalError
}

// Convenience constructors for common error patterns

// ExceededLimit creates a limit error
func ExceededLimit(t Type, detail string) *Error {
	return &Error{
		Type:   t,
		Code:   CodeExceededLimit,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(t Type, detail string) *Error {
	return &Error{
		Type:   t,
		Code:   CodeInvalidInput,
		Detail: detail,
	}
}

// UnexpectedType creates a shape mismatch error
func UnexpectedType(t Type, expected, got string) *Error {
	return &Error{
		Type:   t,
		Code:   CodeUnexpectedType,
		Detail: fmt.Sprintf("expected %s, got %s", expected, got),
	}
}

// UnexpectedSize creates a length mismatch error
func UnexpectedSize(t Type, expected, got uint64) *Error {
	return &Error{
		Type:   t,
		Code:   CodeUnexpectedSize,
		Detail: fmt.Sprintf("expected length %d, got %d", expected, got),
		Value:  got,
	}
}

// IndexBounds creates an out of bounds error for the region [pos, pos+length)
func IndexBounds(t Type, pos, length, size uint64) *Error {
	return &Error{
		Type:   t,
		Code:   CodeIndexBounds,
		Detail: fmt.Sprintf("range [%d, %d+%d) out of bounds (size %d)", pos, pos, length, size),
		Value:  pos,
	}
}

// MissingValue creates a not-found error
func MissingValue(t Type, what string) *Error {
	return &Error{
		Type:   t,
		Code:   CodeMissingValue,
		Detail: fmt.Sprintf("%s not found", what),
	}
}

// ArithDomain creates an arithmetic domain error
func ArithDomain(t Type, detail string) *Error {
	return &Error{
		Type:   t,
		Code:   CodeArithDomain,
		Detail: detail,
	}
}

// InvalidAction creates an invalid action error
func InvalidAction(t Type, detail string, cause error) *Error {
	return &Error{
		Type:   t,
		Code:   CodeInvalidAction,
		Detail: detail,
		Cause:  cause,
	}
}

// Internal creates an internal error. Reaching one from guest input is a host bug.
func Internal(t Type, detail string) *Error {
	return &Error{
		Type:   t,
		Code:   CodeInternalError,
		Detail: detail,
	}
}

// Contract creates a guest-raised error with the guest's own code
func Contract(code uint32) *Error {
	return &Error{
		Type: TypeContract,
		Code: Code(code),
	}
}

// FromStatus rebuilds an error from a status pair
func FromStatus(t Type, c Code) *Error {
	return &Error{
		Type: t,
		Code: c,
	}
}
