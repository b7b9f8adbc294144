package host

import (
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/val"
)

// Converter maps Go values of type T to and from Vals.
type Converter[T any] interface {
	ToVal(h *Host, t T) (val.Val, error)
	FromVal(h *Host, v val.Val) (T, error)
}

// ConverterFuncs adapts a pair of functions to Converter.
type ConverterFuncs[T any] struct {
	To   func(h *Host, t T) (val.Val, error)
	From func(h *Host, v val.Val) (T, error)
}

func (c ConverterFuncs[T]) ToVal(h *Host, t T) (val.Val, error)   { return c.To(h, t) }
func (c ConverterFuncs[T]) FromVal(h *Host, v val.Val) (T, error) { return c.From(h, v) }

// Identity passes Vals through after checking them.
var Identity = ConverterFuncs[val.Val]{
	To: func(h *Host, v val.Val) (val.Val, error) {
		return v, h.validate(v)
	},
	From: func(h *Host, v val.Val) (val.Val, error) {
		return v, h.validate(v)
	},
}

// U32 converts uint32 through U32 Vals.
var U32 = ConverterFuncs[uint32]{
	To: func(_ *Host, u uint32) (val.Val, error) {
		return val.FromU32(u), nil
	},
	From: func(_ *Host, v val.Val) (uint32, error) {
		u, ok := v.U32()
		if !ok || !v.IsGood() {
			return 0, errors.UnexpectedType(errors.TypeValue, "U32", v.Tag().String())
		}
		return u, nil
	},
}

// Bytes converts byte slices through byte objects.
var Bytes = ConverterFuncs[[]byte]{
	To: func(h *Host, b []byte) (val.Val, error) {
		return h.BytesFromSlice(b)
	},
	From: func(h *Host, v val.Val) ([]byte, error) {
		b, err := get[object.Bytes](h, v)
		if err != nil {
			return nil, err
		}
		return clone(b), nil
	},
}

// Result is either a value or a status.
type Result[T any] struct {
	Value T
	Err   *errors.Error
}

// Ok wraps a success value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a status.
func Fail[T any](err *errors.Error) Result[T] {
	return Result[T]{Err: err}
}

// IsOk reports whether r holds a value.
func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

// ResultToVal converts the value through c, or the status to a status Val.
func ResultToVal[T any](h *Host, c Converter[T], r Result[T]) (val.Val, error) {
	if r.Err != nil {
		if !errors.Valid(r.Err.Type, r.Err.Code) {
			return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Detail("unrepresentable status").
				Cause(r.Err).
				Build()
		}
		return val.FromStatus(r.Err.Type, r.Err.Code), nil
	}
	return c.ToVal(h, r.Value)
}

// ResultFromVal reads a status Val as the error variant without consulting
// c. Any other Val goes through c, and a failure there fails the whole
// conversion: it is never reported as an error variant.
func ResultFromVal[T any](h *Host, c Converter[T], v val.Val) (Result[T], error) {
	if v.IsStatus() {
		if !v.IsGood() {
			return Result[T]{}, checkVal(v)
		}
		return Fail[T](v.Err()), nil
	}
	t, err := c.FromVal(h, v)
	if err != nil {
		return Result[T]{}, err
	}
	return Ok(t), nil
}
