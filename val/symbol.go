package val

import (
	"github.com/wippyai/contract-host/errors"
)

const (
	// MaxSmallSymbolLen is the longest symbol held inline.
	MaxSmallSymbolLen = 9

	symbolCodeBits = 6
	symbolCodeMask = 1<<symbolCodeBits - 1
)

func symbolCode(c byte) (uint64, bool) {
	switch {
	case c == '_':
		return 1, true
	case c >= '0' && c <= '9':
		return uint64(c-'0') + 2, true
	case c >= 'A' && c <= 'Z':
		return uint64(c-'A') + 12, true
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 38, true
	}
	return 0, false
}

func symbolChar(code uint64) byte {
	switch {
	case code == 1:
		return '_'
	case code < 12:
		return byte(code-2) + '0'
	case code < 38:
		return byte(code-12) + 'A'
	default:
		return byte(code-38) + 'a'
	}
}

// FromSmallSymbol packs s inline. It fails with (Value, InvalidInput) when s
// is too long or uses a character outside the symbol alphabet.
func FromSmallSymbol(s string) (Val, error) {
	if len(s) > MaxSmallSymbolLen {
		return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
			Detail("symbol %q too long for a small symbol", s).
			Build()
	}
	var body uint64
	for i := 0; i < len(s); i++ {
		code, ok := symbolCode(s[i])
		if !ok {
			return 0, errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Detail("invalid symbol character %q", s[i]).
				Value(s[i]).
				Build()
		}
		body = body<<symbolCodeBits | code
	}
	return FromBody(TagSymbolSmall, body), nil
}

// SmallSymbol unpacks an inline symbol.
func (v Val) SmallSymbol() (string, bool) {
	if v.Tag() != TagSymbolSmall || !validSmallSymbolBody(v.Body()) {
		return "", false
	}
	var buf [MaxSmallSymbolLen]byte
	n := 0
	for i := MaxSmallSymbolLen - 1; i >= 0; i-- {
		code := v.Body() >> (i * symbolCodeBits) & symbolCodeMask
		if code != 0 {
			buf[n] = symbolChar(code)
			n++
		}
	}
	return string(buf[:n]), true
}

// validSmallSymbolBody checks that the unused top bits are clear and that no
// empty slot follows a character.
func validSmallSymbolBody(body uint64) bool {
	if body>>(MaxSmallSymbolLen*symbolCodeBits) != 0 {
		return false
	}
	seen := false
	for i := MaxSmallSymbolLen - 1; i >= 0; i-- {
		code := body >> (i * symbolCodeBits) & symbolCodeMask
		switch {
		case code != 0:
			seen = true
		case seen:
			return false
		}
	}
	return true
}
