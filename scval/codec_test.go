package scval

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
)

func TestMarshalRoundTrip(t *testing.T) {
	id := [32]byte{1, 2, 3}
	tests := []struct {
		name string
		v    ScVal
	}{
		{"bool", Bool(true)},
		{"void", Void()},
		{"error", Error(errors.TypeBudget, errors.CodeExceededLimit)},
		{"contract error", Error(errors.TypeContract, math.MaxUint32)},
		{"u32", U32(math.MaxUint32)},
		{"i32", I32(math.MinInt32)},
		{"u64", U64(math.MaxUint64)},
		{"i64", I64(math.MinInt64)},
		{"timepoint", Timepoint(1 << 60)},
		{"duration", Duration(0)},
		{"u128", U128(UInt128Parts{Hi: math.MaxUint64, Lo: 1})},
		{"i128", I128(Int128Parts{Hi: math.MinInt64, Lo: 7})},
		{"u256", U256(UInt256Parts{HiHi: 1, HiLo: 2, LoHi: 3, LoLo: 4})},
		{"i256", I256(Int256Parts{HiHi: -1, LoLo: math.MaxUint64})},
		{"bytes", Bytes([]byte{0, 1, 0xff})},
		{"empty bytes", Bytes(nil)},
		{"string", String("hello")},
		{"symbol", Symbol("transfer_all")},
		{"vec", Vec(U32(1), Vec(), Symbol("x"))},
		{"absent vec", ScVal{Type: TypeVec}},
		{"map", Map(Entry(U32(1), String("a")), Entry(Symbol("k"), Void()))},
		{"absent map", ScVal{Type: TypeMap}},
		{"address", Address(ScAddress{Kind: AddressContract, ID: id})},
		{"contract instance", ScVal{Type: TypeContractInstance, Hash: id}},
		{"instance key", ScVal{Type: TypeLedgerKeyContractInstance}},
		{"nonce", LedgerKeyNonce(-42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.v, DefaultLimits)
			require.NoError(t, err)

			got, err := Unmarshal(data, DefaultLimits)
			require.NoError(t, err)
			assert.True(t, Equal(tt.v, got), "got %v, want %v", got, tt.v)

			again, err := Marshal(got, DefaultLimits)
			require.NoError(t, err)
			assert.Equal(t, data, again)
		})
	}
}

func TestMarshalGenerated(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		buf := make([]byte, rng.Intn(1024))
		rng.Read(buf)
		v := Arbitrary(NewUnstructured(buf))

		data, err := Marshal(v, DefaultLimits)
		require.NoError(t, err, "value %v", v)
		got, err := Unmarshal(data, DefaultLimits)
		require.NoError(t, err, "value %v", v)
		require.True(t, Equal(v, got), "got %v, want %v", got, v)

		again, err := Marshal(got, DefaultLimits)
		require.NoError(t, err)
		require.Equal(t, data, again)
	}
}

func TestMarshalLimits(t *testing.T) {
	deep := Vec(Vec(Vec()))
	shallow := Limits{MaxSize: 1 << 20, MaxDepth: 2}

	t.Run("depth on encode", func(t *testing.T) {
		_, err := Marshal(deep, shallow)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ExceededLimit(errors.TypeValue, ""))
	})

	t.Run("depth on decode", func(t *testing.T) {
		data, err := Marshal(deep, DefaultLimits)
		require.NoError(t, err)
		_, err = Unmarshal(data, shallow)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeExceededLimit))
	})

	t.Run("size on encode", func(t *testing.T) {
		_, err := Marshal(Bytes(make([]byte, 100)), Limits{MaxSize: 50, MaxDepth: 10})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeExceededLimit))
	})

	t.Run("size on decode", func(t *testing.T) {
		data, err := Marshal(Bytes(make([]byte, 100)), DefaultLimits)
		require.NoError(t, err)
		_, err = Unmarshal(data, Limits{MaxSize: 50, MaxDepth: 10})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeExceededLimit))
	})

	t.Run("long symbol", func(t *testing.T) {
		_, err := Marshal(Symbol(string(make([]byte, SymbolLimit+1))), DefaultLimits)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
	})
}

func TestUnmarshalMalformed(t *testing.T) {
	encode := func(v any) []byte {
		data, err := encMode.Marshal(v)
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name string
		data []byte
		code errors.Code
	}{
		{"empty", nil, errors.CodeInvalidInput},
		{"reserved byte", []byte{0xff}, errors.CodeInvalidInput},
		{"truncated", encode([]any{uint64(TypeBytes), []byte{1, 2, 3}})[:4], errors.CodeInvalidInput},
		{"trailing data", append(encode([]any{uint64(TypeVoid)}), 0), errors.CodeInvalidInput},
		{"not an array", encode(map[string]int{"a": 1}), errors.CodeUnexpectedType},
		{"empty array", encode([]any{}), errors.CodeUnexpectedType},
		{"unknown type", encode([]any{uint64(99)}), errors.CodeUnexpectedType},
		{"negative type", encode([]any{int64(-1)}), errors.CodeUnexpectedType},
		{"wrong payload", encode([]any{uint64(TypeU32), "x"}), errors.CodeUnexpectedType},
		{"missing payload", encode([]any{uint64(TypeU64)}), errors.CodeUnexpectedType},
		{"extra payload", encode([]any{uint64(TypeVoid), uint64(1)}), errors.CodeUnexpectedType},
		{"u32 overflow", encode([]any{uint64(TypeU32), uint64(1 << 40)}), errors.CodeInvalidInput},
		{"i32 overflow", encode([]any{uint64(TypeI32), int64(math.MinInt32) - 1}), errors.CodeInvalidInput},
		{"i64 overflow", encode([]any{uint64(TypeI64), uint64(math.MaxUint64)}), errors.CodeInvalidInput},
		{"short address", encode([]any{uint64(TypeAddress), uint64(0), []byte{1}}), errors.CodeUnexpectedSize},
		{"bad address kind", encode([]any{uint64(TypeAddress), uint64(2), make([]byte, 32)}), errors.CodeInvalidInput},
		{"bad map entry", encode([]any{uint64(TypeMap), []any{uint64(1)}}), errors.CodeUnexpectedType},
		{"bad vec element", encode([]any{uint64(TypeVec), []any{"x"}}), errors.CodeUnexpectedType},
		{"symbol as bytes", encode([]any{uint64(TypeSymbol), []byte("abc")}), errors.CodeUnexpectedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data, DefaultLimits)
			require.Error(t, err)
			e, ok := errors.As(err)
			require.True(t, ok, "untyped error %v", err)
			assert.Equal(t, errors.TypeValue, e.Type)
			assert.Equal(t, tt.code, e.Code, "error: %v", err)
		})
	}
}

func FuzzUnmarshal(f *testing.F) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 16; i++ {
		buf := make([]byte, 128)
		rng.Read(buf)
		data, err := Marshal(Arbitrary(NewUnstructured(buf)), DefaultLimits)
		if err == nil {
			f.Add(data)
		}
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := Unmarshal(data, DefaultLimits)
		if err != nil {
			if errors.IsCode(err, errors.CodeInternalError) {
				t.Fatalf("internal error on malformed input: %v", err)
			}
			return
		}
		again, err := Marshal(v, DefaultLimits)
		if err != nil {
			t.Fatalf("re-encode %v: %v", v, err)
		}
		back, err := Unmarshal(again, DefaultLimits)
		if err != nil || !Equal(v, back) {
			t.Fatalf("unstable round trip %v: %v", v, err)
		}
	})
}
