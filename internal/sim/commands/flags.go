package commands

import (
	"fmt"
	"strings"
)

// Flags select how a game command runs. Without Apply a command only
// validates and prices.
type Flags uint8

const (
	Apply         Flags = 1 << 0
	NoErrorWindow Flags = 1 << 3
	AIAllocated   Flags = 1 << 4
	NoPayment     Flags = 1 << 5
	Ghost         Flags = 1 << 6
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{Apply, "apply"},
	{NoErrorWindow, "no_error_window"},
	{AIAllocated, "ai_allocated"},
	{NoPayment, "no_payment"},
	{Ghost, "ghost"},
}

func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	if f == 0 {
		return "query"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Names lists the set flags by wire name.
func (f Flags) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, n := range names {
		found := false
		for _, fn := range flagNames {
			if fn.name == n {
				f |= fn.f
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown command flag %q", n)
		}
	}
	return f, nil
}
