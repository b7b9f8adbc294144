package scval

import (
	"fmt"

	"github.com/wippyai/contract-host/errors"
)

// SymbolLimit is the maximum symbol length in bytes.
const SymbolLimit = 32

// SymbolChars is the symbol alphabet.
const SymbolChars = "_0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// IsSymbolChar reports whether c belongs to the symbol alphabet.
func IsSymbolChar(c byte) bool {
	switch {
	case c == '_':
		return true
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	}
	return false
}

// CheckSymbol validates length and alphabet.
func CheckSymbol(s []byte) error {
	if len(s) > SymbolLimit {
		return errors.New(errors.TypeValue, errors.CodeInvalidInput).
			Detail("symbol too long: %d > %d", len(s), SymbolLimit).
			Value(len(s)).
			Build()
	}
	for i, c := range s {
		if !IsSymbolChar(c) {
			return errors.New(errors.TypeValue, errors.CodeInvalidInput).
				Path(fmt.Sprintf("%d", i)).
				Detail("invalid symbol character %q", c).
				Value(c).
				Build()
		}
	}
	return nil
}
