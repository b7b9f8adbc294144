package host

import (
	"context"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/val"
	"github.com/wippyai/contract-host/vm"
)

// valFn is a host function over host values. Arguments arrive validated
// and translated out of the guest frame; the result is translated back.
type valFn func(ctx context.Context, mem vm.Memory, args []val.Val) (val.Val, error)

// rawFn is a host function whose arguments or result are plain words.
type rawFn func(ctx context.Context, args []uint64) (uint64, error)

func (h *Host) bindVal(name string, params int, fn valFn) vm.HostFunc {
	return vm.HostFunc{
		Name:   name,
		Params: params,
		Fn: func(ctx context.Context, c vm.Caller, raw []uint64) (uint64, error) {
			if err := h.charge(budget.DispatchHostFunction, 0); err != nil {
				return 0, err
			}
			args := make([]val.Val, len(raw))
			for i, r := range raw {
				v, err := h.absolutize(val.Val(r))
				if err != nil {
					return 0, err
				}
				args[i] = v
			}
			res, err := fn(ctx, c.Memory(), args)
			if err != nil {
				return 0, err
			}
			rel, err := h.relativize(res)
			return uint64(rel), err
		},
	}
}

func (h *Host) bindRaw(name string, params int, fn rawFn) vm.HostFunc {
	return vm.HostFunc{
		Name:   name,
		Params: params,
		Fn: func(ctx context.Context, _ vm.Caller, raw []uint64) (uint64, error) {
			if err := h.charge(budget.DispatchHostFunction, 0); err != nil {
				return 0, err
			}
			return fn(ctx, raw)
		},
	}
}

// guestVal reads a raw argument as a host value.
func (h *Host) guestVal(raw uint64) (val.Val, error) {
	return h.absolutize(val.Val(raw))
}

// guestResult translates a host value for the guest.
func (h *Host) guestResult(v val.Val, err error) (uint64, error) {
	if err != nil {
		return 0, err
	}
	rel, err := h.relativize(v)
	return uint64(rel), err
}

func u32Arg(v val.Val) (uint32, error) {
	u, ok := v.U32()
	if !ok {
		return 0, errors.UnexpectedType(errors.TypeValue, "U32", v.Tag().String())
	}
	return u, nil
}

func u32Args(args []val.Val) ([]uint32, error) {
	out := make([]uint32, len(args))
	for i, a := range args {
		u, err := u32Arg(a)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func voidResult(err error) (val.Val, error) {
	return val.Void, err
}

func u32Result(u uint32, err error) (val.Val, error) {
	return val.FromU32(u), err
}

// unary adapts a one-handle operation.
func unary(op func(val.Val) (val.Val, error)) valFn {
	return func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
		return op(args[0])
	}
}

func binary(op func(a, b val.Val) (val.Val, error)) valFn {
	return func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
		return op(args[0], args[1])
	}
}

func nullary(op func() (val.Val, error)) valFn {
	return func(context.Context, vm.Memory, []val.Val) (val.Val, error) {
		return op()
	}
}

// lengthOf adapts a length query.
func lengthOf(op func(val.Val) (uint32, error)) valFn {
	return func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
		return u32Result(op(args[0]))
	}
}

// indexed adapts an operation on (handle, U32 index).
func indexed(op func(val.Val, uint32) (val.Val, error)) valFn {
	return func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
		i, err := u32Arg(args[1])
		if err != nil {
			return 0, err
		}
		return op(args[0], i)
	}
}

// HostFuncs returns the host functions guests import from the "env" module.
func (h *Host) HostFuncs() []vm.HostFunc {
	return []vm.HostFunc{
		// context
		h.bindRaw("obj_cmp", 2, func(_ context.Context, args []uint64) (uint64, error) {
			a, err := h.guestVal(args[0])
			if err != nil {
				return 0, err
			}
			b, err := h.guestVal(args[1])
			if err != nil {
				return 0, err
			}
			c, err := h.Compare(a, b)
			return uint64(int64(c)), err
		}),
		h.bindVal("fail_with_error", 1, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			return 0, h.FailWithError(args[0])
		}),
		h.bindVal("call", 3, func(ctx context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			return h.Call(ctx, args[0], args[1], args[2])
		}),
		h.bindVal("try_call", 3, func(ctx context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			return h.TryCall(ctx, args[0], args[1], args[2])
		}),
		h.bindVal("serialize_to_bytes", 1, unary(h.SerializeToBytesObject)),
		h.bindVal("deserialize_from_bytes", 1, unary(h.DeserializeFromBytesObject)),

		// integers
		h.bindRaw("obj_from_u64", 1, func(_ context.Context, args []uint64) (uint64, error) {
			return h.guestResult(h.U64FromWord(args[0]))
		}),
		h.bindRaw("obj_to_u64", 1, func(_ context.Context, args []uint64) (uint64, error) {
			v, err := h.guestVal(args[0])
			if err != nil {
				return 0, err
			}
			return h.U64Word(v)
		}),
		h.bindRaw("obj_from_i64", 1, func(_ context.Context, args []uint64) (uint64, error) {
			return h.guestResult(h.I64FromWord(int64(args[0])))
		}),
		h.bindRaw("obj_to_i64", 1, func(_ context.Context, args []uint64) (uint64, error) {
			v, err := h.guestVal(args[0])
			if err != nil {
				return 0, err
			}
			i, err := h.I64Word(v)
			return uint64(i), err
		}),
		h.bindRaw("obj_from_u128_pieces", 2, func(_ context.Context, args []uint64) (uint64, error) {
			return h.guestResult(h.U128FromParts(args[0], args[1]))
		}),
		h.bindRaw("obj_to_u128_hi64", 1, h.u128Piece(true)),
		h.bindRaw("obj_to_u128_lo64", 1, h.u128Piece(false)),
		h.bindRaw("obj_from_i128_pieces", 2, func(_ context.Context, args []uint64) (uint64, error) {
			return h.guestResult(h.I128FromParts(int64(args[0]), args[1]))
		}),
		h.bindRaw("obj_to_i128_hi64", 1, h.i128Piece(true)),
		h.bindRaw("obj_to_i128_lo64", 1, h.i128Piece(false)),
		h.bindRaw("obj_from_u256_pieces", 4, func(_ context.Context, args []uint64) (uint64, error) {
			return h.guestResult(h.U256FromParts(args[0], args[1], args[2], args[3]))
		}),
		h.bindRaw("obj_from_i256_pieces", 4, func(_ context.Context, args []uint64) (uint64, error) {
			return h.guestResult(h.I256FromParts(int64(args[0]), args[1], args[2], args[3]))
		}),
		h.bindRaw("obj_to_u256_piece", 2, h.wide256Piece(false)),
		h.bindRaw("obj_to_i256_piece", 2, h.wide256Piece(true)),

		// vectors
		h.bindVal("vec_new", 0, nullary(h.VecNew)),
		h.bindVal("vec_len", 1, lengthOf(h.VecLen)),
		h.bindVal("vec_get", 2, indexed(h.VecGet)),
		h.bindVal("vec_del", 2, indexed(h.VecDel)),
		h.bindVal("vec_push_back", 2, binary(h.VecPushBack)),
		h.bindVal("vec_pop_back", 1, unary(h.VecPopBack)),
		h.bindVal("vec_append", 2, binary(h.VecAppend)),
		h.bindVal("vec_put", 3, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			i, err := u32Arg(args[1])
			if err != nil {
				return 0, err
			}
			return h.VecPut(args[0], i, args[2])
		}),
		h.bindVal("vec_insert", 3, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			i, err := u32Arg(args[1])
			if err != nil {
				return 0, err
			}
			return h.VecInsert(args[0], i, args[2])
		}),
		h.bindVal("vec_slice", 3, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return h.VecSlice(args[0], r[0], r[1])
		}),
		h.bindVal("vec_new_from_linear_memory", 2, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args)
			if err != nil {
				return 0, err
			}
			return h.VecNewFromLinearMemory(mem, r[0], r[1])
		}),
		h.bindVal("vec_unpack_to_linear_memory", 3, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return voidResult(h.VecUnpackToLinearMemory(mem, args[0], r[0], r[1]))
		}),

		// maps
		h.bindVal("map_new", 0, nullary(h.MapNew)),
		h.bindVal("map_len", 1, lengthOf(h.MapLen)),
		h.bindVal("map_get", 2, binary(h.MapGet)),
		h.bindVal("map_del", 2, binary(h.MapDel)),
		h.bindVal("map_has", 2, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			ok, err := h.MapHas(args[0], args[1])
			return val.FromBool(ok), err
		}),
		h.bindVal("map_put", 3, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			return h.MapPut(args[0], args[1], args[2])
		}),
		h.bindVal("map_key_by_pos", 2, indexed(h.MapKeyByPos)),
		h.bindVal("map_val_by_pos", 2, indexed(h.MapValByPos)),
		h.bindVal("map_keys", 1, unary(h.MapKeys)),
		h.bindVal("map_values", 1, unary(h.MapValues)),
		h.bindVal("map_new_from_linear_memory", 3, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args)
			if err != nil {
				return 0, err
			}
			return h.MapNewFromLinearMemory(mem, r[0], r[1], r[2])
		}),
		h.bindVal("map_unpack_to_linear_memory", 4, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return voidResult(h.MapUnpackToLinearMemory(mem, args[0], r[0], r[1], r[2]))
		}),

		// buffers
		h.bindVal("bytes_new", 0, nullary(h.BytesNew)),
		h.bindVal("bytes_len", 1, lengthOf(h.BytesLen)),
		h.bindVal("bytes_append", 2, binary(h.BytesAppend)),
		h.bindVal("bytes_get", 2, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			i, err := u32Arg(args[1])
			if err != nil {
				return 0, err
			}
			b, err := h.BytesGet(args[0], i)
			return val.FromU32(uint32(b)), err
		}),
		h.bindVal("bytes_push", 2, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			c, err := u32Arg(args[1])
			if err != nil {
				return 0, err
			}
			if c > 0xff {
				return 0, errors.InvalidInput(errors.TypeValue, "byte value out of range")
			}
			return h.BytesPush(args[0], byte(c))
		}),
		h.bindVal("bytes_slice", 3, func(_ context.Context, _ vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return h.BytesSlice(args[0], r[0], r[1])
		}),
		h.bindVal("bytes_copy_to_linear_memory", 4, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return voidResult(h.BytesCopyToLinearMemory(mem, args[0], r[0], r[1], r[2]))
		}),
		h.bindVal("bytes_copy_from_linear_memory", 4, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return h.BytesCopyFromLinearMemory(mem, args[0], r[0], r[1], r[2])
		}),
		h.bindVal("bytes_new_from_linear_memory", 2, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args)
			if err != nil {
				return 0, err
			}
			return h.BytesNewFromLinearMemory(mem, r[0], r[1])
		}),
		h.bindVal("string_len", 1, lengthOf(h.StringLen)),
		h.bindVal("string_copy_to_linear_memory", 4, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return voidResult(h.StringCopyToLinearMemory(mem, args[0], r[0], r[1], r[2]))
		}),
		h.bindVal("string_new_from_linear_memory", 2, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args)
			if err != nil {
				return 0, err
			}
			return h.StringNewFromLinearMemory(mem, r[0], r[1])
		}),
		h.bindVal("symbol_len", 1, lengthOf(h.SymbolLen)),
		h.bindVal("symbol_copy_to_linear_memory", 4, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args[1:])
			if err != nil {
				return 0, err
			}
			return voidResult(h.SymbolCopyToLinearMemory(mem, args[0], r[0], r[1], r[2]))
		}),
		h.bindVal("symbol_new_from_linear_memory", 2, func(_ context.Context, mem vm.Memory, args []val.Val) (val.Val, error) {
			r, err := u32Args(args)
			if err != nil {
				return 0, err
			}
			return h.SymbolNewFromLinearMemory(mem, r[0], r[1])
		}),
	}
}

func (h *Host) u128Piece(hi bool) rawFn {
	return func(_ context.Context, args []uint64) (uint64, error) {
		v, err := h.guestVal(args[0])
		if err != nil {
			return 0, err
		}
		hw, lw, err := h.U128Parts(v)
		if hi {
			return hw, err
		}
		return lw, err
	}
}

func (h *Host) i128Piece(hi bool) rawFn {
	return func(_ context.Context, args []uint64) (uint64, error) {
		v, err := h.guestVal(args[0])
		if err != nil {
			return 0, err
		}
		hw, lw, err := h.I128Parts(v)
		if hi {
			return uint64(hw), err
		}
		return lw, err
	}
}

// wide256Piece returns word args[1] of a 256-bit integer, 0 being the most
// significant.
func (h *Host) wide256Piece(signed bool) rawFn {
	return func(_ context.Context, args []uint64) (uint64, error) {
		v, err := h.guestVal(args[0])
		if err != nil {
			return 0, err
		}
		if args[1] > 3 {
			return 0, errors.IndexBounds(errors.TypeValue, args[1], 1, 4)
		}
		var words [4]uint64
		if signed {
			var hh int64
			hh, words[1], words[2], words[3], err = h.I256Parts(v)
			words[0] = uint64(hh)
		} else {
			words[0], words[1], words[2], words[3], err = h.U256Parts(v)
		}
		if err != nil {
			return 0, err
		}
		return words[args[1]], nil
	}
}
