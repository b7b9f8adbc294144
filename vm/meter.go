package vm

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/contract-host/errors"
)

// FuelExport is the mutable i64 global Instrument adds to every guest. It
// holds the number of instructions the guest may still run; the guest traps
// once it drops below zero.
const FuelExport = "__fuel"

// Meter turns executed guest instructions into budget charges.
type Meter interface {
	// Fuel returns how many instructions the guest may run before the next
	// charge would fail.
	Fuel() uint64
	// Consume charges n executed instructions.
	Consume(n uint64) error
}

type unmetered struct{}

func (unmetered) Fuel() uint64         { return math.MaxUint64 }
func (unmetered) Consume(uint64) error { return nil }

const (
	secCustom    byte = 0
	secImport    byte = 2
	secGlobal    byte = 6
	secExport    byte = 7
	secCode      byte = 10
	secDataCount byte = 12
	secTag       byte = 13

	externGlobal byte = 3

	opUnreachable byte = 0x00
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opEnd         byte = 0x0b
	opGlobalGet   byte = 0x23
	opGlobalSet   byte = 0x24
	opI64Const    byte = 0x42
	opI64LtS      byte = 0x53
	opI64Sub      byte = 0x7d
	opMiscPrefix  byte = 0xfc

	blockEmpty byte = 0x40
	typeI64    byte = 0x7e
)

// sectionRank orders known sections as the binary format requires.
var sectionRank = map[byte]int{
	1: 1, 2: 2, 3: 3, 4: 4, 5: 5, secTag: 6, secGlobal: 7, secExport: 8,
	8: 9, 9: 10, secDataCount: 11, secCode: 12, 11: 13,
}

type section struct {
	payload []byte
	id      byte
}

// Instrument rewrites a core module so it meters itself. A fuel global is
// appended and exported as FuelExport, and every function entry and loop
// header subtracts the instruction count of the code that follows it,
// trapping when the fuel runs out.
//
// Function and global indices are unchanged. Instructions outside the
// supported feature set (SIMD, threads, exceptions, GC) are rejected.
func Instrument(code []byte) ([]byte, error) {
	if len(code) < 8 || !bytes.Equal(code[:4], []byte{0x00, 0x61, 0x73, 0x6d}) {
		return nil, fmt.Errorf("bad module header")
	}
	if !bytes.Equal(code[4:8], []byte{1, 0, 0, 0}) {
		return nil, fmt.Errorf("unsupported module version")
	}

	var sections []section
	r := &reader{data: code, pos: 8}
	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		payload, err := r.bytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		if _, ok := sectionRank[id]; !ok && id != secCustom {
			return nil, fmt.Errorf("unknown section %d", id)
		}
		sections = append(sections, section{id: id, payload: payload})
	}

	var importedGlobals, definedGlobals uint32
	for _, s := range sections {
		var err error
		switch s.id {
		case secImport:
			importedGlobals, err = countImportedGlobals(s.payload)
		case secGlobal:
			definedGlobals, err = (&reader{data: s.payload}).u32()
		}
		if err != nil {
			return nil, err
		}
	}
	fuel := importedGlobals + definedGlobals

	rewritten := make(map[byte][]byte, 3)
	var err error
	if rewritten[secGlobal], err = appendFuelGlobal(find(sections, secGlobal)); err != nil {
		return nil, err
	}
	if rewritten[secExport], err = appendFuelExport(find(sections, secExport), fuel); err != nil {
		return nil, err
	}
	if body := find(sections, secCode); body != nil {
		if rewritten[secCode], err = meterCode(body, fuel); err != nil {
			return nil, err
		}
	}

	out := bytes.NewBuffer(make([]byte, 0, len(code)+len(code)/4+64))
	out.Write(code[:8])
	emitted := map[byte]bool{}
	emit := func(id byte, payload []byte) {
		out.WriteByte(id)
		writeU32(out, uint32(len(payload)))
		out.Write(payload)
		emitted[id] = true
	}
	// sections that did not exist yet are placed before the first section
	// that must follow them
	pending := []byte{secGlobal, secExport}
	for _, s := range sections {
		if s.id != secCustom {
			for _, id := range pending {
				if !emitted[id] && find(sections, id) == nil && sectionRank[id] < sectionRank[s.id] {
					emit(id, rewritten[id])
				}
			}
		}
		if p, ok := rewritten[s.id]; ok && s.id != secCustom {
			emit(s.id, p)
			continue
		}
		emit(s.id, s.payload)
	}
	for _, id := range pending {
		if !emitted[id] {
			emit(id, rewritten[id])
		}
	}
	return out.Bytes(), nil
}

func find(sections []section, id byte) []byte {
	for _, s := range sections {
		if s.id == id {
			return s.payload
		}
	}
	return nil
}

func countImportedGlobals(payload []byte) (uint32, error) {
	r := &reader{data: payload}
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	var globals uint32
	for range n {
		for range 2 {
			if _, err := r.name(); err != nil {
				return 0, err
			}
		}
		kind, err := r.byte()
		if err != nil {
			return 0, err
		}
		switch kind {
		case 0: // func
			_, err = r.u32()
		case 1: // table
			if _, err = r.byte(); err == nil {
				err = r.limits()
			}
		case 2: // memory
			err = r.limits()
		case externGlobal:
			globals++
			_, err = r.bytes(2)
		case 4: // tag
			if _, err = r.byte(); err == nil {
				_, err = r.u32()
			}
		default:
			err = fmt.Errorf("unknown import kind %d", kind)
		}
		if err != nil {
			return 0, fmt.Errorf("import section: %w", err)
		}
	}
	return globals, nil
}

func appendFuelGlobal(payload []byte) ([]byte, error) {
	var count uint32
	var rest []byte
	if payload != nil {
		r := &reader{data: payload}
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		count, rest = n, payload[r.pos:]
	}
	var out bytes.Buffer
	writeU32(&out, count+1)
	out.Write(rest)
	out.Write([]byte{typeI64, 0x01, opI64Const, 0x00, opEnd})
	return out.Bytes(), nil
}

func appendFuelExport(payload []byte, global uint32) ([]byte, error) {
	var count uint32
	var rest []byte
	if payload != nil {
		r := &reader{data: payload}
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		start := r.pos
		for range n {
			name, err := r.name()
			if err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
			if name == FuelExport {
				return nil, fmt.Errorf("module already exports %q", FuelExport)
			}
			if _, err := r.bytes(1); err != nil {
				return nil, err
			}
			if _, err := r.u32(); err != nil {
				return nil, err
			}
		}
		count, rest = n, payload[start:r.pos]
	}
	var out bytes.Buffer
	writeU32(&out, count+1)
	out.Write(rest)
	writeU32(&out, uint32(len(FuelExport)))
	out.WriteString(FuelExport)
	out.WriteByte(externGlobal)
	writeU32(&out, global)
	return out.Bytes(), nil
}

func meterCode(payload []byte, global uint32) ([]byte, error) {
	r := &reader{data: payload}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	writeU32(&out, n)
	for i := range n {
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		metered, err := meterBody(body, global)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		writeU32(&out, uint32(len(metered)))
		out.Write(metered)
	}
	if !r.done() {
		return nil, fmt.Errorf("trailing bytes in code section")
	}
	return out.Bytes(), nil
}

// checkpoint is where a fuel check goes and how many instructions it pays
// for.
type checkpoint struct {
	offset int
	cost   int64
}

func meterBody(body []byte, global uint32) ([]byte, error) {
	r := &reader{data: body}
	groups, err := r.u32()
	if err != nil {
		return nil, err
	}
	for range groups {
		if _, err := r.u32(); err != nil {
			return nil, err
		}
		t, err := r.byte()
		if err != nil {
			return nil, err
		}
		if !isValType(t) {
			return nil, fmt.Errorf("unsupported local type 0x%02x", t)
		}
	}

	points := []checkpoint{{offset: r.pos}}
	depth := 1
	for depth > 0 {
		op, err := r.byte()
		if err != nil {
			return nil, err
		}
		points[len(points)-1].cost++
		switch op {
		case opBlock, opIf:
			depth++
			err = r.blockType()
		case opLoop:
			depth++
			if err = r.blockType(); err == nil {
				points = append(points, checkpoint{offset: r.pos})
			}
		case opEnd:
			depth--
		default:
			err = r.skipImmediates(op)
		}
		if err != nil {
			return nil, err
		}
	}
	if !r.done() {
		return nil, fmt.Errorf("trailing bytes after function body")
	}

	out := bytes.NewBuffer(make([]byte, 0, len(body)+len(points)*16))
	prev := 0
	for _, p := range points {
		out.Write(body[prev:p.offset])
		writeFuelCheck(out, global, max(p.cost, 1))
		prev = p.offset
	}
	out.Write(body[prev:])
	return out.Bytes(), nil
}

// writeFuelCheck emits: fuel -= cost; if fuel < 0 { unreachable }.
func writeFuelCheck(w *bytes.Buffer, global uint32, cost int64) {
	w.WriteByte(opGlobalGet)
	writeU32(w, global)
	w.WriteByte(opI64Const)
	writeS64(w, cost)
	w.WriteByte(opI64Sub)
	w.WriteByte(opGlobalSet)
	writeU32(w, global)
	w.WriteByte(opGlobalGet)
	writeU32(w, global)
	w.Write([]byte{opI64Const, 0x00, opI64LtS, opIf, blockEmpty, opUnreachable, opEnd})
}

func isValType(b byte) bool {
	switch b {
	case 0x7f, 0x7e, 0x7d, 0x7c, 0x70, 0x6f:
		return true
	}
	return false
}

// tank is the fuel of one running invocation.
type tank struct {
	global api.MutableGlobal
	meter  Meter
	grant  int64
}

type tankKey struct{}

func withTank(ctx context.Context, t *tank) context.Context {
	return context.WithValue(ctx, tankKey{}, t)
}

func tankFrom(ctx context.Context) *tank {
	t, _ := ctx.Value(tankKey{}).(*tank)
	return t
}

// refill grants the guest whatever the meter can still pay for.
func (t *tank) refill() {
	fuel := t.meter.Fuel()
	if fuel > math.MaxInt64 {
		fuel = math.MaxInt64
	}
	t.grant = int64(fuel)
	t.global.Set(uint64(t.grant))
}

// burn charges what the guest ran since the last refill or burn.
func (t *tank) burn() error {
	left := int64(t.global.Get())
	used := uint64(t.grant) - uint64(left)
	t.grant = left
	if used > 0 {
		if err := t.meter.Consume(used); err != nil {
			return err
		}
	}
	if left < 0 {
		return errors.New(errors.TypeBudget, errors.CodeExceededLimit).
			Detail("guest ran out of fuel").
			Build()
	}
	return nil
}

type reader struct {
	data []byte
	pos  int
}

var errTruncated = fmt.Errorf("unexpected end of module")

func (r *reader) done() bool { return r.pos >= len(r.data) }

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, errTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) leb(maxBytes int) (uint64, error) {
	var v uint64
	for i := 0; i < maxBytes; i++ {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("integer too long at offset %d", r.pos)
}

func (r *reader) u32() (uint32, error) {
	v, err := r.leb(5)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("integer overflow at offset %d", r.pos)
	}
	return uint32(v), nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	return string(b), err
}

func (r *reader) limits() error {
	flags, err := r.byte()
	if err != nil {
		return err
	}
	width := 5
	if flags&0x04 != 0 {
		width = 10
	}
	if _, err := r.leb(width); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		_, err = r.leb(width)
	}
	return err
}

func (r *reader) blockType() error {
	if r.pos < len(r.data) {
		if b := r.data[r.pos]; b == blockEmpty || isValType(b) {
			r.pos++
			return nil
		}
	}
	_, err := r.leb(5)
	return err
}

func (r *reader) memArg() error {
	align, err := r.u32()
	if err != nil {
		return err
	}
	if align&0x40 != 0 {
		if _, err := r.u32(); err != nil {
			return err
		}
	}
	_, err = r.leb(10)
	return err
}

func (r *reader) skipU32s(n int) error {
	for range n {
		if _, err := r.u32(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) skipImmediates(op byte) error {
	switch {
	case op == 0x00, op == 0x01, op == 0x05, op == 0x0f, op == 0x1a, op == 0x1b, op == 0xd1:
		return nil
	case op == 0x0c, op == 0x0d, op == 0x10, op == 0xd2:
		return r.skipU32s(1)
	case op == 0x0e:
		n, err := r.u32()
		if err != nil {
			return err
		}
		return r.skipU32s(int(n) + 1)
	case op == 0x11:
		return r.skipU32s(2)
	case op == 0x1c:
		n, err := r.u32()
		if err != nil {
			return err
		}
		_, err = r.bytes(int(n))
		return err
	case op >= 0x20 && op <= 0x26:
		return r.skipU32s(1)
	case op >= 0x28 && op <= 0x3e:
		return r.memArg()
	case op == 0x3f, op == 0x40:
		return r.skipU32s(1)
	case op == 0x41:
		_, err := r.leb(5)
		return err
	case op == opI64Const:
		_, err := r.leb(10)
		return err
	case op == 0x43:
		_, err := r.bytes(4)
		return err
	case op == 0x44:
		_, err := r.bytes(8)
		return err
	case op >= 0x45 && op <= 0xc4:
		return nil
	case op == 0xd0:
		_, err := r.leb(5)
		return err
	case op == opMiscPrefix:
		sub, err := r.u32()
		if err != nil {
			return err
		}
		switch {
		case sub <= 7:
			return nil
		case sub == 8, sub == 10, sub == 12, sub == 14:
			return r.skipU32s(2)
		case sub == 9, sub == 11, sub == 13, sub == 15, sub == 16, sub == 17:
			return r.skipU32s(1)
		}
		return fmt.Errorf("unsupported instruction 0xfc %d", sub)
	}
	return fmt.Errorf("unsupported instruction 0x%02x at offset %d", op, r.pos-1)
}

func writeU32(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func writeS64(w *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.WriteByte(b)
			return
		}
		w.WriteByte(b | 0x80)
	}
}
