package tensor

import "strings"

// Capability is one orthogonal trait a value kind may support.
type Capability uint8

const (
	// Numeric values support arithmetic.
	Numeric Capability = 1 << iota

	// FloatingPoint values support transcendental functions and gradients.
	FloatingPoint

	// BooleanMaskable values can select between two tensors.
	BooleanMaskable
)

// String lists the capability names joined by '|'.
func (c Capability) String() string {
	var names []string
	if c&Numeric != 0 {
		names = append(names, "numeric")
	}
	if c&FloatingPoint != 0 {
		names = append(names, "floating-point")
	}
	if c&BooleanMaskable != 0 {
		names = append(names, "boolean-maskable")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Kind is the value kind of a tensor. The zero value is Double.
type Kind uint8

const (
	Double Kind = iota
	Integer
	Boolean
)

var kindCapabilities = [...]Capability{
	Double:  Numeric | FloatingPoint,
	Integer: Numeric,
	Boolean: BooleanMaskable,
}

// Capabilities returns the traits the kind is composed of.
func (k Kind) Capabilities() Capability {
	if int(k) >= len(kindCapabilities) {
		return 0
	}
	return kindCapabilities[k]
}

// Has reports whether the kind supports every capability in c.
func (k Kind) Has(c Capability) bool {
	return k.Capabilities()&c == c
}

func (k Kind) String() string {
	switch k {
	case Double:
		return "double"
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "double":
		return Double, true
	case "integer":
		return Integer, true
	case "boolean":
		return Boolean, true
	default:
		return 0, false
	}
}

// requireCapability returns a CapabilityError if k lacks c.
func requireCapability(op string, k Kind, c Capability) error {
	if k.Has(c) {
		return nil
	}
	return &CapabilityError{Op: op, Kind: k, Need: c}
}

// arithmeticKind is the kind produced by combining two numeric kinds.
func arithmeticKind(a, b Kind) Kind {
	if a == Integer && b == Integer {
		return Integer
	}
	return Double
}
