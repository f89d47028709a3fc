package event

import (
	"errors"
	"fmt"
)

// MaxSymbolLen is the widest ticker the vendor emits
const MaxSymbolLen = 12

var (
	// ErrSymbolTooLong is returned when a symbol exceeds MaxSymbolLen bytes
	ErrSymbolTooLong = errors.New("symbol too long")
	// ErrEmptySymbol is returned for a zero-length symbol
	ErrEmptySymbol = errors.New("symbol is empty")
)

// Symbol is a bounded ticker such as "MSFT" or "BRK.A"
type Symbol string

// NewSymbol validates s and returns it as a Symbol. Oversize input is rejected, never truncated.
func NewSymbol(s string) (Symbol, error) {
	if len(s) == 0 {
		return "", ErrEmptySymbol
	}
	if len(s) > MaxSymbolLen {
		return "", fmt.Errorf("%w: %q has %d bytes, max %d", ErrSymbolTooLong, s, len(s), MaxSymbolLen)
	}
	return Symbol(s), nil
}

// String returns the symbol text
func (s Symbol) String() string {
	return string(s)
}
