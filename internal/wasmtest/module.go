// Package wasmtest assembles small core WebAssembly modules for tests.
//
// Every function, imported or defined, takes only i64 parameters and
// returns one i64, matching the host calling convention. Imports come from
// the "env" module. A one-page memory is exported as "memory".
package wasmtest

import (
	"bytes"
	"encoding/binary"
)

const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10

	kindFunc   byte = 0
	kindMemory byte = 2

	funcTypeByte byte = 0x60
	i64Type      byte = 0x7e
)

type function struct {
	name   string
	body   []byte
	params int
}

type importedFunc struct {
	name   string
	params int
}

// Module is a module under construction.
type Module struct {
	imports []importedFunc
	funcs   []function
	pages   uint32
	noMem   bool
}

// New returns an empty module with one page of exported memory.
func New() *Module {
	return &Module{pages: 1}
}

// WithoutMemory drops the memory section.
func (m *Module) WithoutMemory() *Module {
	m.noMem = true
	return m
}

// Import declares env.name with params i64 parameters and returns its
// function index. All imports must be declared before any Func.
func (m *Module) Import(name string, params int) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: Import after Func")
	}
	m.imports = append(m.imports, importedFunc{name: name, params: params})
	return uint32(len(m.imports) - 1)
}

// Func defines a function exported as name (unexported when empty) whose
// body is the concatenation of code. The trailing end opcode is added.
func (m *Module) Func(name string, params int, code ...[]byte) uint32 {
	m.funcs = append(m.funcs, function{name: name, params: params, body: bytes.Join(code, nil)})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d})
	_ = binary.Write(&out, binary.LittleEndian, uint32(1))

	// one signature per distinct parameter count
	typeIdx := map[int]uint32{}
	var arities []int
	addType := func(params int) {
		if _, ok := typeIdx[params]; !ok {
			typeIdx[params] = uint32(len(arities))
			arities = append(arities, params)
		}
	}
	for _, imp := range m.imports {
		addType(imp.params)
	}
	for _, fn := range m.funcs {
		addType(fn.params)
	}

	var sec bytes.Buffer
	writeU32(&sec, uint32(len(arities)))
	for _, n := range arities {
		sec.WriteByte(funcTypeByte)
		writeU32(&sec, uint32(n))
		for i := 0; i < n; i++ {
			sec.WriteByte(i64Type)
		}
		sec.Write([]byte{1, i64Type})
	}
	writeSection(&out, sectionType, sec.Bytes())

	if len(m.imports) > 0 {
		sec.Reset()
		writeU32(&sec, uint32(len(m.imports)))
		for _, imp := range m.imports {
			writeName(&sec, "env")
			writeName(&sec, imp.name)
			sec.WriteByte(kindFunc)
			writeU32(&sec, typeIdx[imp.params])
		}
		writeSection(&out, sectionImport, sec.Bytes())
	}

	sec.Reset()
	writeU32(&sec, uint32(len(m.funcs)))
	for _, fn := range m.funcs {
		writeU32(&sec, typeIdx[fn.params])
	}
	writeSection(&out, sectionFunction, sec.Bytes())

	if !m.noMem {
		sec.Reset()
		sec.Write([]byte{1, 0})
		writeU32(&sec, m.pages)
		writeSection(&out, sectionMemory, sec.Bytes())
	}

	sec.Reset()
	var exports [][]byte
	if !m.noMem {
		var e bytes.Buffer
		writeName(&e, "memory")
		e.Write([]byte{kindMemory, 0})
		exports = append(exports, e.Bytes())
	}
	for i, fn := range m.funcs {
		if fn.name == "" {
			continue
		}
		var e bytes.Buffer
		writeName(&e, fn.name)
		e.WriteByte(kindFunc)
		writeU32(&e, uint32(len(m.imports)+i))
		exports = append(exports, e.Bytes())
	}
	writeU32(&sec, uint32(len(exports)))
	for _, e := range exports {
		sec.Write(e)
	}
	writeSection(&out, sectionExport, sec.Bytes())

	sec.Reset()
	writeU32(&sec, uint32(len(m.funcs)))
	for _, fn := range m.funcs {
		var body bytes.Buffer
		body.WriteByte(0) // no locals
		body.Write(fn.body)
		body.WriteByte(0x0b)
		writeU32(&sec, uint32(body.Len()))
		sec.Write(body.Bytes())
	}
	writeSection(&out, sectionCode, sec.Bytes())

	return out.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeU32(w, uint32(len(data)))
	w.Write(data)
}

func writeName(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
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
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.WriteByte(b)
	}
}

// LocalGet pushes parameter i.
func LocalGet(i uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(0x20)
	writeU32(&b, i)
	return b.Bytes()
}

// Call calls function idx.
func Call(idx uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(0x10)
	writeU32(&b, idx)
	return b.Bytes()
}

// I64Const pushes v.
func I64Const(v int64) []byte {
	var b bytes.Buffer
	b.WriteByte(0x42)
	writeS64(&b, v)
	return b.Bytes()
}

// I64Load replaces the i64 address on the stack with the word stored there.
func I64Load() []byte {
	return []byte{0xa7, 0x29, 0x03, 0x00}
}

// Drop discards the top of the stack.
func Drop() []byte {
	return []byte{0x1a}
}

// Unreachable traps.
func Unreachable() []byte {
	return []byte{0x00}
}

// Loop wraps body in a loop block with no results.
func Loop(body ...[]byte) []byte {
	b := []byte{0x03, 0x40}
	b = append(b, bytes.Join(body, nil)...)
	return append(b, 0x0b)
}

// Br branches to the enclosing block depth levels out.
func Br(depth uint32) []byte {
	var b bytes.Buffer
	b.WriteByte(0x0c)
	writeU32(&b, depth)
	return b.Bytes()
}
