// Package geom defines the numeric witness values exchanged with the
// geometric object store. A witness is the concrete numeric sample currently
// associated with a model object; witness-based verification replays proofs
// against these samples rather than against symbolic terms.
package geom

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Type is the semantic tag of a model object.
type Type string

// Object types understood by the core.
const (
	TypePoint   Type = "point"
	TypeLine    Type = "line"
	TypeCircle  Type = "circle"
	TypeMeasure Type = "measure"
)

// ParseType converts a string tag to a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypePoint, TypeLine, TypeCircle, TypeMeasure:
		return t, nil
	}
	return "", fmt.Errorf("geom: unknown object type %q", s)
}

// Witness is a concrete numeric sample for one model object.
// The coordinate layout depends on the type:
//
//	point:   x, y
//	line:    a, b, c  (the line ax + by = c, with a²+b² = 1)
//	circle:  x, y, r
//	measure: v
type Witness struct {
	Type   Type
	Coords []float64
}

// Point returns a point witness.
func Point(x, y float64) Witness {
	return Witness{Type: TypePoint, Coords: []float64{x, y}}
}

// Line returns a line witness for ax + by = c. The normal (a, b) is
// normalized to unit length; a zero normal is kept as supplied.
func Line(a, b, c float64) Witness {
	n := math.Hypot(a, b)
	if n != 0 {
		a, b, c = a/n, b/n, c/n
	}
	return Witness{Type: TypeLine, Coords: []float64{a, b, c}}
}

// Circle returns a circle witness with center (x, y) and radius r.
func Circle(x, y, r float64) Witness {
	return Witness{Type: TypeCircle, Coords: []float64{x, y, r}}
}

// Measure returns a scalar dimension witness.
func Measure(v float64) Witness {
	return Witness{Type: TypeMeasure, Coords: []float64{v}}
}

// Equal reports whether two witnesses are bit-identical: same type, same
// coordinate count, and the same float64 bit pattern in every slot. NaN
// coordinates compare equal to themselves under this definition.
func (w Witness) Equal(o Witness) bool {
	if w.Type != o.Type || len(w.Coords) != len(o.Coords) {
		return false
	}
	for i, c := range w.Coords {
		if math.Float64bits(c) != math.Float64bits(o.Coords[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the witness.
func (w Witness) Clone() Witness {
	coords := make([]float64, len(w.Coords))
	copy(coords, w.Coords)
	return Witness{Type: w.Type, Coords: coords}
}

// String renders the witness compactly, e.g. "point(1, 2)".
func (w Witness) String() string {
	var sb strings.Builder
	sb.WriteString(string(w.Type))
	sb.WriteByte('(')
	for i, c := range w.Coords {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%g", c)
	}
	sb.WriteByte(')')
	return sb.String()
}

// Sample returns a random witness of the given type, used to instantiate
// verification runs with concrete numeric arguments. Points are drawn from
// a bounded square; derived types are built from sampled points so that the
// result is always geometrically well-formed.
func Sample(r *rand.Rand, t Type) (Witness, error) {
	coord := func() float64 { return r.Float64()*4 - 2 }
	switch t {
	case TypePoint:
		return Point(coord(), coord()), nil
	case TypeLine:
		// A line through two distinct sampled points.
		x1, y1 := coord(), coord()
		x2, y2 := coord(), coord()
		for x1 == x2 && y1 == y2 {
			x2, y2 = coord(), coord()
		}
		a, b := y2-y1, x1-x2
		return Line(a, b, a*x1+b*y1), nil
	case TypeCircle:
		return Circle(coord(), coord(), r.Float64()*2+0.1), nil
	case TypeMeasure:
		return Measure(r.Float64() * 4), nil
	}
	return Witness{}, fmt.Errorf("geom: cannot sample type %q", t)
}
