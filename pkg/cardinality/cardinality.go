// Package cardinality implements the min..max algebra used when reporting on
// nested FHIR elements.
package cardinality

import (
	"fmt"
	"strconv"
	"strings"
)

// Unbounded is the max value for "no upper limit".
const Unbounded = "*"

// Cardinality is an occurrence constraint written min..max.
type Cardinality struct {
	Min int
	Max string
}

// One is the starting point when walking a path from its root.
var One = Cardinality{Min: 1, Max: "1"}

// New returns min..max. An empty max is treated as unbounded.
func New(min int, max string) Cardinality {
	if max == "" {
		max = Unbounded
	}
	return Cardinality{Min: min, Max: max}
}

// Parse reads "min..max". A missing or malformed min reads as 0 and a
// missing max as "*".
func Parse(s string) (Cardinality, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "..")
	if !ok {
		return Cardinality{}, fmt.Errorf("invalid cardinality %q", s)
	}
	min, err := strconv.Atoi(lo)
	if err != nil || min < 0 {
		return Cardinality{}, fmt.Errorf("invalid cardinality min in %q", s)
	}
	if hi != Unbounded {
		if n, err := strconv.Atoi(hi); err != nil || n < 0 {
			return Cardinality{}, fmt.Errorf("invalid cardinality max in %q", s)
		}
	}
	return New(min, hi), nil
}

// String returns min..max.
func (c Cardinality) String() string {
	return fmt.Sprintf("%d..%s", c.Min, c.Max)
}

// IsRemoved reports whether the element is forbidden (max "0").
func (c Cardinality) IsRemoved() bool {
	return c.Max == "0"
}

// IsProhibited reports whether c is exactly 0..0.
func (c Cardinality) IsProhibited() bool {
	return c.Min == 0 && c.Max == "0"
}

// Equal reports whether both bounds match.
func (c Cardinality) Equal(o Cardinality) bool {
	return c.Min == o.Min && c.Max == o.Max
}

// Upper returns the upper bound.
func (c Cardinality) Upper() string {
	return c.Max
}

// Combine nests child inside parent. A container that cannot exist forces
// max "0"; N containers of M items each allow N*M items in total.
func Combine(parent, child Cardinality) Cardinality {
	min := 0
	if parent.Min != 0 {
		min = parent.Min * child.Min
	}

	var max string
	switch {
	case parent.IsProhibited():
		max = "0"
	case parent.Max == Unbounded || child.Max == Unbounded:
		max = Unbounded
	default:
		p, errP := strconv.Atoi(parent.Max)
		c, errC := strconv.Atoi(child.Max)
		if errP != nil || errC != nil {
			max = Unbounded
		} else {
			max = strconv.Itoa(p * c)
		}
	}
	return Cardinality{Min: min, Max: max}
}

// Along returns the effective cardinality of path. It starts at 1..1 and
// combines in the local cardinality of every prefix after the root segment
// that has an entry in byPath.
func Along(path string, byPath map[string]Cardinality) Cardinality {
	result := One
	parts := strings.Split(path, ".")
	current := parts[0]
	for _, part := range parts[1:] {
		current += "." + part
		if local, ok := byPath[current]; ok {
			result = Combine(result, local)
		}
	}
	return result
}
