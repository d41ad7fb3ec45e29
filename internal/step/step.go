// Package step implements the execution engine for ordered sequences of
// bound tool invocations. A Step binds one capability to hyper-parameters
// and local argument indices; an Env runs steps in order against a shared
// model, translating local indices to global ones as it goes.
//
// Local indices are positions in one Env's translation table and are
// meaningful only relative to that Env; global indices reference objects in
// the model. From a step's point of view only the environment's inputs and
// the outputs of earlier steps are visible.
package step

import (
	"fmt"
	"sync/atomic"

	"github.com/scape1989/geo-logic/internal/tool"
)

// Step is an immutable binding of a capability to hyper-parameters, local
// argument indices, and a contiguous block of local output slots. A step
// constructed with no output block (startOut < 0) is declarative: it is
// executed for its checking side only.
//
// The success flag is the one mutable field. It records whether the most
// recent execution completed without error; the running Env owns it during
// a run and external observers (a UI highlighting failed steps) may read it
// at any time. It carries no semantic weight for later steps.
type Step struct {
	Tool  tool.Capability
	Hyper []tool.HyperParam
	Args  []int
	Outs  []int
	Label string

	success atomic.Bool
}

// New builds a step. Hyper-parameters are coerced according to the tool's
// declared kind: dimension computations and predicates get exact rationals,
// every other kind keeps its values opaque. The output block covers local
// indices startOut .. startOut+len(OutTypes())-1; pass a negative startOut
// for declarative steps.
func New(c tool.Capability, hyper []any, args []int, startOut int, label string) (*Step, error) {
	if len(args) != len(c.ArgTypes()) {
		return nil, fmt.Errorf("%w: %s takes %d args, got %d", tool.ErrArity, c.Name(), len(c.ArgTypes()), len(args))
	}

	hp := make([]tool.HyperParam, len(hyper))
	for i, v := range hyper {
		if c.Kind().RequiresRational() {
			p, err := tool.Rational(v)
			if err != nil {
				return nil, fmt.Errorf("%s hyper-parameter %d: %w", c.Name(), i, err)
			}
			hp[i] = p
		} else {
			hp[i] = tool.Opaque(v)
		}
	}

	s := &Step{
		Tool:  c,
		Hyper: hp,
		Args:  append([]int(nil), args...),
		Label: label,
	}
	if startOut >= 0 {
		s.Outs = make([]int, len(c.OutTypes()))
		for i := range s.Outs {
			s.Outs[i] = startOut + i
		}
	}
	return s, nil
}

// Success reports whether the most recent execution of this step completed
// without error.
func (s *Step) Success() bool { return s.success.Load() }

func (s *Step) setSuccess(ok bool) { s.success.Store(ok) }

// DeepWeigher is implemented by capabilities that carry nested verification
// obligations (composite tools). Primitives do not implement it and weigh
// zero.
type DeepWeigher interface {
	DeepLenAll() int
}

// DeepWeight returns the nested-obligation weight of a step's tool.
func DeepWeight(c tool.Capability) int {
	if w, ok := c.(DeepWeigher); ok {
		return w.DeepLenAll()
	}
	return 0
}
