package host

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/scval"
	"github.com/wippyai/contract-host/val"
)

func randomValue(r *rand.Rand) scval.ScVal {
	data := make([]byte, 512)
	r.Read(data)
	return scval.Arbitrary(scval.NewUnstructured(data))
}

func TestConvertRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    scval.ScVal
		tag  val.Tag
	}{
		{"bool", scval.Bool(true), val.TagTrue},
		{"void", scval.Void(), val.TagVoid},
		{"status", scval.Error(errors.TypeStorage, errors.CodeMissingValue), val.TagError},
		{"contract status", scval.Error(errors.TypeContract, math.MaxUint32), val.TagError},
		{"u32", scval.U32(math.MaxUint32), val.TagU32},
		{"i32", scval.I32(math.MinInt32), val.TagI32},
		{"small u64", scval.U64(1<<56 - 1), val.TagU64Small},
		{"big u64", scval.U64(1 << 56), val.TagU64Object},
		{"small i64", scval.I64(-1 << 55), val.TagI64Small},
		{"big i64", scval.I64(math.MinInt64), val.TagI64Object},
		{"timepoint", scval.Timepoint(math.MaxUint64), val.TagTimepointObject},
		{"duration", scval.Duration(9), val.TagDurationSmall},
		{"small u128", scval.U128(scval.UInt128Parts{Lo: 3}), val.TagU128Small},
		{"big u128", scval.U128(scval.UInt128Parts{Hi: 1}), val.TagU128Object},
		{"small negative i128", scval.I128(scval.Int128Parts{Hi: -1, Lo: math.MaxUint64}), val.TagI128Small},
		{"big i128", scval.I128(scval.Int128Parts{Hi: math.MinInt64}), val.TagI128Object},
		{"small u256", scval.U256(scval.UInt256Parts{LoLo: 1}), val.TagU256Small},
		{"big u256", scval.U256(scval.UInt256Parts{HiHi: 1}), val.TagU256Object},
		{
			"small negative i256",
			scval.I256(scval.Int256Parts{HiHi: -1, HiLo: math.MaxUint64, LoHi: math.MaxUint64, LoLo: math.MaxUint64 - 4}),
			val.TagI256Small,
		},
		{"big i256", scval.I256(scval.Int256Parts{HiHi: 7}), val.TagI256Object},
		{"bytes", scval.Bytes([]byte{0, 1, 2}), val.TagBytesObject},
		{"string", scval.String("hello"), val.TagStringObject},
		{"small symbol", scval.Symbol("transfer"), val.TagSymbolSmall},
		{"symbol object", scval.Symbol("transfer_from_all"), val.TagSymbolObject},
		{"vec", scval.Vec(scval.U32(1), scval.Vec(), scval.Symbol("x")), val.TagVecObject},
		{
			"map",
			scval.Map(scval.Entry(scval.U32(1), scval.String("a")), scval.Entry(scval.Symbol("k"), scval.Void())),
			val.TagMapObject,
		},
		{"address", scval.Address(scval.ScAddress{Kind: scval.AddressContract, ID: [32]byte{9}}), val.TagAddressObject},
	}

	h := newTestHost(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := h.FromScVal(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.tag, v.Tag())

			back, err := h.ToScVal(v)
			require.NoError(t, err)
			assert.True(t, scval.Equal(tt.v, back), "got %s, want %s", back, tt.v)
		})
	}
}

func TestConvertRejects(t *testing.T) {
	deep := scval.Vec()
	for range DefaultLimits.MaxValueDepth {
		deep = scval.Vec(deep)
	}

	tests := []struct {
		name string
		v    scval.ScVal
		ty   errors.Type
		code errors.Code
	}{
		{"absent vec", scval.ScVal{Type: scval.TypeVec}, errors.TypeValue, errors.CodeUnexpectedType},
		{"absent map", scval.ScVal{Type: scval.TypeMap}, errors.TypeValue, errors.CodeUnexpectedType},
		{"bad status", scval.Error(errors.TypeValue, 99), errors.TypeValue, errors.CodeInvalidInput},
		{"bad symbol", scval.Symbol("no spaces"), errors.TypeValue, errors.CodeInvalidInput},
		{
			"unsorted map",
			scval.Map(scval.Entry(scval.U32(2), scval.Void()), scval.Entry(scval.U32(1), scval.Void())),
			errors.TypeValue, errors.CodeInvalidInput,
		},
		{
			"duplicate key",
			scval.Map(scval.Entry(scval.U32(1), scval.Void()), scval.Entry(scval.U32(1), scval.Void())),
			errors.TypeValue, errors.CodeInvalidInput,
		},
		{"address kind", scval.Address(scval.ScAddress{Kind: 5}), errors.TypeValue, errors.CodeInvalidInput},
		{"ledger nonce", scval.LedgerKeyNonce(1), errors.TypeValue, errors.CodeUnexpectedType},
		{"too deep", deep, errors.TypeContext, errors.CodeExceededLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHost(t)
			before := h.Store().Len()
			_, err := h.WithFrame(&Frame{Kind: FrameHost}, func() (val.Val, error) {
				return h.FromScVal(tt.v)
			})
			requireStatus(t, err, tt.ty, tt.code)
			assert.Equal(t, before, h.Store().Len())
		})
	}
}

func TestToScValRejectsBadVals(t *testing.T) {
	h := newTestHost(t)

	_, err := h.ToScVal(val.Val(0x7e))
	requireStatus(t, err, errors.TypeValue, errors.CodeInvalidInput)

	_, err = h.ToScVal(val.FromHandle(val.TagVecObject, 3, 1))
	requireStatus(t, err, errors.TypeObject, errors.CodeInvalidInput)
}

func TestConvertGeneratedRoundTrip(t *testing.T) {
	h := newTestHost(t)
	r := rand.New(rand.NewSource(1))
	for range 300 {
		sc := randomValue(r)
		v, err := h.FromScVal(sc)
		require.NoError(t, err, "value %s", sc)
		back, err := h.ToScVal(v)
		require.NoError(t, err)
		require.True(t, scval.Equal(sc, back), "got %s, want %s", back, sc)
	}
}

func TestCompareAgreesWithWireOrder(t *testing.T) {
	h := newTestHost(t)
	r := rand.New(rand.NewSource(2))
	for range 300 {
		a, b := randomValue(r), randomValue(r)
		va, err := h.FromScVal(a)
		require.NoError(t, err)
		vb, err := h.FromScVal(b)
		require.NoError(t, err)

		got, err := h.Compare(va, vb)
		require.NoError(t, err)
		require.Equal(t, scval.Compare(a, b), got, "compare %s with %s", a, b)

		self, err := h.Compare(va, va)
		require.NoError(t, err)
		require.Zero(t, self)
	}
}

func TestCompareMixedForms(t *testing.T) {
	h := newTestHost(t)

	small, err := h.U128FromParts(0, 5)
	require.NoError(t, err)
	big, err := h.U128FromParts(1, 0)
	require.NoError(t, err)
	c, err := h.Compare(small, big)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	neg, err := h.I256FromParts(-1, math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	c, err = h.Compare(neg, val.FromU32(0))
	require.NoError(t, err)
	assert.Equal(t, 1, c, "type order dominates")

	zero, err := h.I256FromParts(0, 0, 0, 0)
	require.NoError(t, err)
	c, err = h.Compare(neg, zero)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = h.Compare(val.Val(0x7e), val.Void)
	requireStatus(t, err, errors.TypeValue, errors.CodeInvalidInput)
}

func TestSerializeRoundTrip(t *testing.T) {
	h := newTestHost(t)
	r := rand.New(rand.NewSource(3))
	for range 100 {
		sc := randomValue(r)
		v, err := h.FromScVal(sc)
		require.NoError(t, err)

		b, err := h.SerializeToBytesObject(v)
		require.NoError(t, err)
		back, err := h.DeserializeFromBytesObject(b)
		require.NoError(t, err)

		c, err := h.Compare(v, back)
		require.NoError(t, err)
		require.Zero(t, c, "value %s", sc)

		// bytes -> value -> bytes reproduces the input exactly
		data, err := h.SerializeToBytes(v)
		require.NoError(t, err)
		decoded, err := h.DeserializeFromBytes(data)
		require.NoError(t, err)
		again, err := h.SerializeToBytes(decoded)
		require.NoError(t, err)
		require.Equal(t, data, again, "value %s", sc)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	h := newTestHost(t)

	for _, data := range [][]byte{nil, {0xff}, {0x82, 0x00}, {0x9f}} {
		_, err := h.DeserializeFromBytes(data)
		require.Error(t, err)
		_, code := errors.Status(err)
		assert.NotEqual(t, errors.CodeInternalError, code, "error: %v", err)
	}
}

func TestSerializeBudget(t *testing.T) {
	h := New()
	v, err := h.FromScVal(scval.Bytes(make([]byte, 4096)))
	require.NoError(t, err)

	h.Budget().ResetLimits(1, 1)
	_, err = h.SerializeToBytes(v)
	requireStatus(t, err, errors.TypeBudget, errors.CodeExceededLimit)

	h.Budget().ResetUnlimited()
	data, err := h.SerializeToBytes(v)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func FuzzConvertRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{16, 3, 1, 2, 3})
	f.Add([]byte{17, 2, 0, 9, 5, 1})
	f.Fuzz(func(t *testing.T, data []byte) {
		h := New()
		h.Budget().ResetLimits(10_000_000, 10<<20)
		sc := scval.Arbitrary(scval.NewUnstructured(data))

		v, err := h.FromScVal(sc)
		if err != nil {
			t.Skip()
		}
		back, err := h.ToScVal(v)
		if err != nil {
			t.Skip()
		}
		if !scval.Equal(sc, back) {
			t.Fatalf("round trip changed %s into %s", sc, back)
		}
	})
}

func FuzzDeserialize(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add([]byte{0x82, 0x03, 0x05})
	f.Fuzz(func(t *testing.T, data []byte) {
		h := New()
		h.Budget().ResetLimits(1_000_000, 1<<20)
		v, err := h.DeserializeFromBytes(data)
		if err != nil {
			if _, code := errors.Status(err); code == errors.CodeInternalError {
				t.Fatalf("internal error on malformed input: %v", err)
			}
			return
		}

		// whatever was accepted re-encodes to a fixed point
		h.Budget().ResetUnlimited()
		canon, err := h.SerializeToBytes(v)
		if err != nil {
			t.Fatalf("serialize accepted value: %v", err)
		}
		back, err := h.DeserializeFromBytes(canon)
		if err != nil {
			t.Fatalf("deserialize canonical bytes: %v", err)
		}
		again, err := h.SerializeToBytes(back)
		if err != nil {
			t.Fatalf("serialize again: %v", err)
		}
		if !bytes.Equal(canon, again) {
			t.Fatalf("re-encoding changed %x into %x", canon, again)
		}
	})
}
