package val

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/contract-host/errors"
	"github.com/wippyai/contract-host/scval"
)

func TestLayout(t *testing.T) {
	v := FromMajorMinor(TagVecObject, 0xdeadbeef, 0x123456)
	assert.Equal(t, TagVecObject, v.Tag())
	assert.Equal(t, uint32(0xdeadbeef), v.Major())
	assert.Equal(t, uint32(0x123456), v.Minor())
	assert.Equal(t, uint64(0xdeadbeef123456), v.Body())
	assert.Equal(t, uint64(0xdeadbeef1234564b), v.Payload())

	assert.Equal(t, Val(0), False)
	assert.Equal(t, Val(1), True)
	assert.Equal(t, Val(2), Void)
}

func TestScalars(t *testing.T) {
	b, ok := FromBool(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = Void.Bool()
	assert.False(t, ok)

	u, ok := FromU32(math.MaxUint32).U32()
	assert.True(t, ok)
	assert.Equal(t, uint32(math.MaxUint32), u)

	i, ok := FromI32(math.MinInt32).I32()
	assert.True(t, ok)
	assert.Equal(t, int32(math.MinInt32), i)

	_, ok = FromI32(1).U32()
	assert.False(t, ok)
}

func TestSmallIntegers(t *testing.T) {
	tests := []struct {
		name string
		i    int64
		ok   bool
	}{
		{"zero", 0, true},
		{"minus one", -1, true},
		{"min", MinSmallI, true},
		{"max", MaxSmallI, true},
		{"below min", MinSmallI - 1, false},
		{"above max", MaxSmallI + 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := FromSmallI(TagI64Small, tt.i)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.i, v.SmallI())
				assert.True(t, v.IsGood())
			}
		})
	}

	v, ok := FromSmallU(TagU64Small, MaxSmallU)
	require.True(t, ok)
	assert.Equal(t, uint64(MaxSmallU), v.SmallU())
	_, ok = FromSmallU(TagU64Small, MaxSmallU+1)
	assert.False(t, ok)
}

func TestSmallSymbol(t *testing.T) {
	for _, s := range []string{"", "a", "_", "Z9", "transfer", "abcdefghi", "_09AZaz"} {
		t.Run(s, func(t *testing.T) {
			v, err := FromSmallSymbol(s)
			require.NoError(t, err)
			assert.True(t, v.IsGood())
			got, ok := v.SmallSymbol()
			require.True(t, ok)
			assert.Equal(t, s, got)
		})
	}

	_, err := FromSmallSymbol("abcdefghij")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
	_, err = FromSmallSymbol("a-b")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))

	// first character in the most significant slot
	a, _ := FromSmallSymbol("ab")
	assert.Equal(t, uint64(38<<6|39), a.Body())
}

func TestIsGood(t *testing.T) {
	sym, _ := FromSmallSymbol("abc")
	tests := []struct {
		name string
		v    Val
		good bool
	}{
		{"false", False, true},
		{"true with body", FromBody(TagTrue, 1), false},
		{"void with body", FromBody(TagVoid, 1<<30), false},
		{"u32", FromU32(7), true},
		{"u32 with minor", FromMajorMinor(TagU32, 7, 1), false},
		{"i32 with minor", FromMajorMinor(TagI32, 7, 1), false},
		{"status", FromStatus(errors.TypeObject, errors.CodeMissingValue), true},
		{"contract status", FromStatus(errors.TypeContract, 12345), true},
		{"status bad type", FromMajorMinor(TagError, 0, 200), false},
		{"status bad code", FromStatus(errors.TypeValue, 99), false},
		{"symbol", sym, true},
		{"symbol top bits", FromBody(TagSymbolSmall, 1<<55), false},
		{"symbol gap", FromBody(TagSymbolSmall, 1<<6), false},
		{"object", FromHandle(TagMapObject, 3, 1), true},
		{"unknown tag", FromBody(Tag(15), 0), false},
		{"bad", FromBody(TagBad, 0), false},
		{"high tag", Val(0xff), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.good, tt.v.IsGood())
		})
	}
}

func TestStatus(t *testing.T) {
	v := FromStatus(errors.TypeBudget, errors.CodeExceededLimit)
	et, ec, ok := v.Status()
	require.True(t, ok)
	assert.Equal(t, errors.TypeBudget, et)
	assert.Equal(t, errors.CodeExceededLimit, ec)
	assert.True(t, v.IsStatus())
	assert.ErrorIs(t, v.Err(), errors.FromStatus(errors.TypeBudget, errors.CodeExceededLimit))

	assert.Equal(t, FromStatus(errors.TypeContext, errors.CodeInternalError), FromError(assert.AnError))
	assert.Equal(t, FromStatus(errors.TypeContract, 7), FromError(errors.Contract(7)))
	assert.Nil(t, FromU32(1).Err())
}

func TestHandle(t *testing.T) {
	v := FromHandle(TagBytesObject, 42, MaxGeneration)
	idx, gen, ok := v.Handle()
	require.True(t, ok)
	assert.Equal(t, uint32(42), idx)
	assert.Equal(t, uint32(MaxGeneration), gen)

	_, _, ok = FromU32(1).Handle()
	assert.False(t, ok)
}

func TestTagType(t *testing.T) {
	tests := []struct {
		tag  Tag
		want scval.Type
	}{
		{TagFalse, scval.TypeBool},
		{TagTrue, scval.TypeBool},
		{TagU64Small, scval.TypeU64},
		{TagU64Object, scval.TypeU64},
		{TagI256Small, scval.TypeI256},
		{TagI256Object, scval.TypeI256},
		{TagSymbolSmall, scval.TypeSymbol},
		{TagSymbolObject, scval.TypeSymbol},
		{TagAddressObject, scval.TypeAddress},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			got, ok := tt.tag.Type()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	_, ok := TagBad.Type()
	assert.False(t, ok)
	assert.Equal(t, "Tag(200)", Tag(200).String())
}

func TestString(t *testing.T) {
	sym, _ := FromSmallSymbol("hello")
	i, _ := FromSmallI(TagI64Small, -5)
	assert.Equal(t, "true", True.String())
	assert.Equal(t, "void", Void.String())
	assert.Equal(t, "7u32", FromU32(7).String())
	assert.Equal(t, "Symbol(hello)", sym.String())
	assert.Equal(t, "I64Small(-5)", i.String())
	assert.Equal(t, "Error(contract, #3)", FromStatus(errors.TypeContract, 3).String())
	assert.Equal(t, "VecObject(#1@2)", FromHandle(TagVecObject, 1, 2).String())
}
