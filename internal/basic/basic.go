// Package basic provides the built-in primitive construction tools: the
// non-composite capabilities with direct geometric semantics. Composite
// tools and their proofs are assembled from these.
package basic

import (
	"context"
	"fmt"
	"math"

	"github.com/scape1989/geo-logic/internal/geom"
	"github.com/scape1989/geo-logic/internal/tool"
)

// eps is the numeric tolerance for predicate checks on float64 witnesses.
const eps = 1e-9

// Primitive is a basic tool capability defined by a pure function over
// numeric witnesses.
type Primitive struct {
	name       string
	kind       tool.Kind
	args       []geom.Type
	outs       []geom.Type
	hyperArity int
	fn         func(hyper []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error)
}

// Name returns the tool's unique name.
func (p *Primitive) Name() string { return p.name }

// Kind returns the declared tool kind.
func (p *Primitive) Kind() tool.Kind { return p.kind }

// ArgTypes returns the input type signature.
func (p *Primitive) ArgTypes() []geom.Type { return p.args }

// OutTypes returns the output type signature.
func (p *Primitive) OutTypes() []geom.Type { return p.outs }

// Run resolves the argument witnesses, checks the signature, and applies
// the primitive's function. Dimension predicates are only evaluated at
// strictness Check; at Postulate the stated fact is trusted as-is.
func (p *Primitive) Run(_ context.Context, hyper []tool.HyperParam, args []tool.GlobalID, m tool.Model, strictness tool.Strictness) ([]tool.GlobalID, error) {
	if len(args) != len(p.args) {
		return nil, &tool.Error{Err: fmt.Errorf("%w: %s takes %d args, got %d", tool.ErrArity, p.name, len(p.args), len(args))}
	}
	if len(hyper) != p.hyperArity {
		return nil, &tool.Error{Err: fmt.Errorf("%w: %s takes %d hyper-parameters, got %d", tool.ErrArity, p.name, p.hyperArity, len(hyper))}
	}

	in := make([]geom.Witness, len(args))
	for i, id := range args {
		w, ok := m.Witness(id)
		if !ok {
			return nil, &tool.Error{Err: fmt.Errorf("%w: argument %d of %s", tool.ErrUnresolved, i, p.name)}
		}
		if w.Type != p.args[i] {
			return nil, &tool.Error{Err: fmt.Errorf("%w: argument %d of %s is %s, want %s", tool.ErrTypeMismatch, i, p.name, w.Type, p.args[i])}
		}
		in[i] = w
	}

	if p.kind == tool.KindDimPred && strictness == tool.Postulate {
		return []tool.GlobalID{}, nil
	}

	out, err := p.fn(hyper, in)
	if err != nil {
		return nil, tool.AsError(err)
	}
	if len(out) != len(p.outs) {
		return nil, &tool.Error{Err: fmt.Errorf("%w: %s produced %d outputs, want %d", tool.ErrArity, p.name, len(out), len(p.outs))}
	}
	if len(out) == 0 {
		return []tool.GlobalID{}, nil
	}
	return m.AddObjects(out), nil
}

// Registry returns a fresh catalogue holding every built-in primitive.
func Registry() *tool.Registry {
	r := tool.NewRegistry()
	for _, p := range []*Primitive{
		midpoint, lineTool, intersect, circleTool,
		dist, eqMeasure, eqDist, coincide, onLine,
	} {
		if err := r.Register(p); err != nil {
			panic(fmt.Sprintf("basic: %v", err))
		}
	}
	return r
}

var midpoint = &Primitive{
	name: "midpoint",
	kind: tool.KindConstruction,
	args: []geom.Type{geom.TypePoint, geom.TypePoint},
	outs: []geom.Type{geom.TypePoint},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		a, b := in[0].Coords, in[1].Coords
		return []geom.Witness{geom.Point((a[0]+b[0])/2, (a[1]+b[1])/2)}, nil
	},
}

var lineTool = &Primitive{
	name: "line",
	kind: tool.KindConstruction,
	args: []geom.Type{geom.TypePoint, geom.TypePoint},
	outs: []geom.Type{geom.TypeLine},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		a, b := in[0].Coords, in[1].Coords
		if math.Hypot(b[0]-a[0], b[1]-a[1]) < eps {
			return nil, fmt.Errorf("%w: line through coincident points", tool.ErrDegenerate)
		}
		// Normal perpendicular to the direction a→b.
		na, nb := b[1]-a[1], a[0]-b[0]
		return []geom.Witness{geom.Line(na, nb, na*a[0]+nb*a[1])}, nil
	},
}

var intersect = &Primitive{
	name: "intersect",
	kind: tool.KindConstruction,
	args: []geom.Type{geom.TypeLine, geom.TypeLine},
	outs: []geom.Type{geom.TypePoint},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		p, q := in[0].Coords, in[1].Coords
		det := p[0]*q[1] - p[1]*q[0]
		if math.Abs(det) < eps {
			return nil, fmt.Errorf("%w: parallel lines", tool.ErrDegenerate)
		}
		x := (p[2]*q[1] - p[1]*q[2]) / det
		y := (p[0]*q[2] - p[2]*q[0]) / det
		return []geom.Witness{geom.Point(x, y)}, nil
	},
}

var circleTool = &Primitive{
	name: "circle",
	kind: tool.KindConstruction,
	args: []geom.Type{geom.TypePoint, geom.TypePoint},
	outs: []geom.Type{geom.TypeCircle},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		c, p := in[0].Coords, in[1].Coords
		r := math.Hypot(p[0]-c[0], p[1]-c[1])
		if r < eps {
			return nil, fmt.Errorf("%w: circle of zero radius", tool.ErrDegenerate)
		}
		return []geom.Witness{geom.Circle(c[0], c[1], r)}, nil
	},
}

// dist computes r·|AB| for an exact rational ratio r.
var dist = &Primitive{
	name:       "dist",
	kind:       tool.KindDimCompute,
	args:       []geom.Type{geom.TypePoint, geom.TypePoint},
	outs:       []geom.Type{geom.TypeMeasure},
	hyperArity: 1,
	fn: func(hyper []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		ratio, ok := hyper[0].Float()
		if !ok {
			return nil, fmt.Errorf("%w: dist ratio must be rational", tool.ErrBadHyperParam)
		}
		a, b := in[0].Coords, in[1].Coords
		return []geom.Witness{geom.Measure(ratio * math.Hypot(b[0]-a[0], b[1]-a[1]))}, nil
	},
}

var eqMeasure = &Primitive{
	name: "eq_measure",
	kind: tool.KindDimPred,
	args: []geom.Type{geom.TypeMeasure, geom.TypeMeasure},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		if math.Abs(in[0].Coords[0]-in[1].Coords[0]) > eps {
			return nil, fmt.Errorf("%w: measures %g and %g differ", tool.ErrNotSatisfied, in[0].Coords[0], in[1].Coords[0])
		}
		return nil, nil
	},
}

var eqDist = &Primitive{
	name: "eq_dist",
	kind: tool.KindDimPred,
	args: []geom.Type{geom.TypePoint, geom.TypePoint, geom.TypePoint, geom.TypePoint},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		a, b := in[0].Coords, in[1].Coords
		c, d := in[2].Coords, in[3].Coords
		d1 := math.Hypot(b[0]-a[0], b[1]-a[1])
		d2 := math.Hypot(d[0]-c[0], d[1]-c[1])
		if math.Abs(d1-d2) > eps {
			return nil, fmt.Errorf("%w: |AB| = %g, |CD| = %g", tool.ErrNotSatisfied, d1, d2)
		}
		return nil, nil
	},
}

var coincide = &Primitive{
	name: "coincide",
	kind: tool.KindDimPred,
	args: []geom.Type{geom.TypePoint, geom.TypePoint},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		a, b := in[0].Coords, in[1].Coords
		if math.Hypot(b[0]-a[0], b[1]-a[1]) > eps {
			return nil, fmt.Errorf("%w: points %v and %v differ", tool.ErrNotSatisfied, in[0], in[1])
		}
		return nil, nil
	},
}

var onLine = &Primitive{
	name: "on_line",
	kind: tool.KindDimPred,
	args: []geom.Type{geom.TypePoint, geom.TypeLine},
	fn: func(_ []tool.HyperParam, in []geom.Witness) ([]geom.Witness, error) {
		p, l := in[0].Coords, in[1].Coords
		if math.Abs(l[0]*p[0]+l[1]*p[1]-l[2]) > eps {
			return nil, fmt.Errorf("%w: %v not on %v", tool.ErrNotSatisfied, in[0], in[1])
		}
		return nil, nil
	},
}
