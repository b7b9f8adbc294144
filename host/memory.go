package host

import (
	encbinary "encoding/binary"

	"github.com/wippyai/contract-host/budget"
	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/object"
	"github.com/wippyai/contract-host/val"
	"github.com/wippyai/contract-host/vm"
)

// Linear memory marshaling. Positions and lengths come from the guest and
// are untrusted: every region is checked against the current memory size in
// 64-bit arithmetic before it is touched, and every byte moved is charged
// first. Vals in memory are 8-byte little-endian words.

const valBytes = 8

func checkRegion(mem vm.Memory, pos, length uint64) error {
	if size := uint64(mem.Size()); pos+length > size {
		return errors.IndexBounds(errors.TypeWasmVm, pos, length, size)
	}
	return nil
}

// checkObjectRange validates [pos, pos+length) against an object of size n.
func checkObjectRange(pos, length uint32, n int) error {
	if uint64(pos)+uint64(length) > uint64(n) {
		return errors.IndexBounds(errors.TypeObject, uint64(pos), uint64(length), uint64(n))
	}
	return nil
}

// readRegion reads [pos, pos+length). A region that passes checkRegion is
// no larger than the memory, so its length fits in 32 bits.
func (h *Host) readRegion(mem vm.Memory, pos uint32, length uint64) ([]byte, error) {
	if err := checkRegion(mem, uint64(pos), length); err != nil {
		return nil, err
	}
	if err := h.charge(budget.MemCpy, length); err != nil {
		return nil, err
	}
	return mem.Read(pos, uint32(length))
}

func (h *Host) writeRegion(mem vm.Memory, pos uint32, data []byte) error {
	if err := checkRegion(mem, uint64(pos), uint64(len(data))); err != nil {
		return err
	}
	if err := h.charge(budget.MemCpy, uint64(len(data))); err != nil {
		return err
	}
	return mem.Write(pos, data)
}

// readVals reads n Vals at pos, validating each and translating guest
// handles.
func (h *Host) readVals(mem vm.Memory, pos, n uint32) ([]val.Val, error) {
	data, err := h.readRegion(mem, pos, uint64(n)*valBytes)
	if err != nil {
		return nil, err
	}
	vals := make([]val.Val, n)
	for i := range vals {
		raw := val.Val(encbinary.LittleEndian.Uint64(data[i*valBytes:]))
		v, err := h.absolutize(raw)
		if err != nil {
			return nil, err
		}
		if err := h.validate(v); err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// writeVals writes vals at pos, translating handles for the guest.
func (h *Host) writeVals(mem vm.Memory, pos uint32, vals []val.Val) error {
	size := uint64(len(vals)) * valBytes
	if err := checkRegion(mem, uint64(pos), size); err != nil {
		return err
	}
	data := make([]byte, size)
	for i, v := range vals {
		rel, err := h.relativize(v)
		if err != nil {
			return err
		}
		encbinary.LittleEndian.PutUint64(data[i*valBytes:], uint64(rel))
	}
	return h.writeRegion(mem, pos, data)
}

func lengthMismatch(want, got int) error {
	return errors.New(errors.TypeValue, errors.CodeUnexpectedSize).
		Detail("length %d does not match object length %d", got, want).
		Build()
}

// BytesCopyToLinearMemory copies b[bPos:bPos+length] to memory at lmPos.
func (h *Host) BytesCopyToLinearMemory(mem vm.Memory, b val.Val, bPos, lmPos, length uint32) error {
	src, err := get[object.Bytes](h, b)
	if err != nil {
		return err
	}
	return h.copyToLinearMemory(mem, src, bPos, lmPos, length)
}

func (h *Host) copyToLinearMemory(mem vm.Memory, src []byte, pos, lmPos, length uint32) error {
	if err := checkObjectRange(pos, length, len(src)); err != nil {
		return err
	}
	return h.writeRegion(mem, lmPos, src[pos:pos+length])
}

// BytesCopyFromLinearMemory returns b with [bPos, bPos+length) replaced by
// memory at lmPos, growing b if the range runs past its end. bPos may not
// exceed the length of b.
func (h *Host) BytesCopyFromLinearMemory(mem vm.Memory, b val.Val, bPos, lmPos, length uint32) (val.Val, error) {
	src, err := get[object.Bytes](h, b)
	if err != nil {
		return 0, err
	}
	if uint64(bPos) > uint64(len(src)) {
		return 0, errors.IndexBounds(errors.TypeObject, uint64(bPos), uint64(length), uint64(len(src)))
	}
	data, err := h.readRegion(mem, lmPos, uint64(length))
	if err != nil {
		return 0, err
	}
	if err := h.charge(budget.MemCpy, uint64(len(src))); err != nil {
		return 0, err
	}
	end := int(bPos) + len(data)
	out := make(object.Bytes, max(len(src), end))
	copy(out, src)
	copy(out[bPos:], data)
	return h.add(out)
}

// BytesNewFromLinearMemory copies length bytes at lmPos into a new byte
// object.
func (h *Host) BytesNewFromLinearMemory(mem vm.Memory, lmPos, length uint32) (val.Val, error) {
	data, err := h.readRegion(mem, lmPos, uint64(length))
	if err != nil {
		return 0, err
	}
	return h.add(object.Bytes(data))
}

// StringCopyToLinearMemory copies s[sPos:sPos+length] to memory at lmPos.
func (h *Host) StringCopyToLinearMemory(mem vm.Memory, s val.Val, sPos, lmPos, length uint32) error {
	src, err := get[object.String](h, s)
	if err != nil {
		return err
	}
	return h.copyToLinearMemory(mem, src, sPos, lmPos, length)
}

// StringNewFromLinearMemory copies length bytes at lmPos into a new string.
func (h *Host) StringNewFromLinearMemory(mem vm.Memory, lmPos, length uint32) (val.Val, error) {
	data, err := h.readRegion(mem, lmPos, uint64(length))
	if err != nil {
		return 0, err
	}
	return h.add(object.String(data))
}

// SymbolCopyToLinearMemory copies part of a symbol in either form to memory
// at lmPos.
func (h *Host) SymbolCopyToLinearMemory(mem vm.Memory, s val.Val, sPos, lmPos, length uint32) error {
	if err := h.expectSymbol(s); err != nil {
		return err
	}
	src, err := h.bytesOf(s)
	if err != nil {
		return err
	}
	return h.copyToLinearMemory(mem, src, sPos, lmPos, length)
}

func (h *Host) expectSymbol(s val.Val) error {
	if t := s.Tag(); t != val.TagSymbolSmall && t != val.TagSymbolObject {
		return errors.UnexpectedType(errors.TypeValue, "Symbol", t.String())
	}
	return checkVal(s)
}

// SymbolNewFromLinearMemory reads and validates a symbol at lmPos.
func (h *Host) SymbolNewFromLinearMemory(mem vm.Memory, lmPos, length uint32) (val.Val, error) {
	data, err := h.readRegion(mem, lmPos, uint64(length))
	if err != nil {
		return 0, err
	}
	return h.SymbolFromBytes(data)
}

// VecNewFromLinearMemory builds a vector from length Vals at valsPos.
func (h *Host) VecNewFromLinearMemory(mem vm.Memory, valsPos, length uint32) (val.Val, error) {
	vals, err := h.readVals(mem, valsPos, length)
	if err != nil {
		return 0, err
	}
	return h.add(object.Vec(vals))
}

// VecUnpackToLinearMemory writes the elements of v at valsPos. length must
// equal the vector's length.
func (h *Host) VecUnpackToLinearMemory(mem vm.Memory, v val.Val, valsPos, length uint32) error {
	vec, err := get[object.Vec](h, v)
	if err != nil {
		return err
	}
	if uint64(length) != uint64(len(vec)) {
		return lengthMismatch(len(vec), int(length))
	}
	return h.writeVals(mem, valsPos, vec)
}

// MapNewFromLinearMemory builds a map from length keys at keysPos and length
// values at valsPos. Keys must be strictly increasing.
func (h *Host) MapNewFromLinearMemory(mem vm.Memory, keysPos, valsPos, length uint32) (val.Val, error) {
	keys, err := h.readVals(mem, keysPos, length)
	if err != nil {
		return 0, err
	}
	vals, err := h.readVals(mem, valsPos, length)
	if err != nil {
		return 0, err
	}
	m := make(object.Map, length)
	for i := range m {
		m[i] = object.MapEntry{Key: keys[i], Val: vals[i]}
	}
	if err := h.checkSortedKeys(m); err != nil {
		return 0, err
	}
	return h.add(m)
}

// MapUnpackToLinearMemory reads length keys at keysPos, requires them to be
// exactly the map's keys in order, and writes the corresponding values at
// valsPos. The key and value regions may overlap; all keys are read before
// anything is written.
func (h *Host) MapUnpackToLinearMemory(mem vm.Memory, mv val.Val, keysPos, valsPos, length uint32) error {
	m, err := get[object.Map](h, mv)
	if err != nil {
		return err
	}
	if uint64(length) != uint64(len(m)) {
		return lengthMismatch(len(m), int(length))
	}
	keys, err := h.readVals(mem, keysPos, length)
	if err != nil {
		return err
	}
	vals := make([]val.Val, len(m))
	for i, e := range m {
		c, err := h.Compare(keys[i], e.Key)
		if err != nil {
			return err
		}
		if c != 0 {
			return errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Detail("key %d in memory does not match map key", i).
				Build()
		}
		vals[i] = e.Val
	}
	return h.writeVals(mem, valsPos, vals)
}
