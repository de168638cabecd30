package codec

import (
	"fmt"
	"strings"
)

// Mode selects how text is laid out on the wire.
type Mode int

const (
	// Narrow stores one byte per character.
	Narrow Mode = iota
	// Wide stores two bytes per UTF-16 code unit.
	Wide
)

// UnitSize returns the number of bytes per storage unit.
func (m Mode) UnitSize() int {
	if m == Wide {
		return 2
	}
	return 1
}

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case Narrow:
		return "narrow"
	case Wide:
		return "wide"
	default:
		return "unknown"
	}
}

// ParseMode maps "narrow" or "wide" (any case) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "narrow":
		return Narrow, nil
	case "wide":
		return Wide, nil
	default:
		return Narrow, fmt.Errorf("codec: unknown text mode %q", s)
	}
}

func (m Mode) valid() bool {
	return m == Narrow || m == Wide
}
