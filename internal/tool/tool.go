// Package tool defines the capability contract, execution strictness, and
// typed error model for geometric construction tools. Tools are the unit of
// execution: every construction step, primitive or composite, goes through a
// registered capability running against the shared model.
package tool

import (
	"context"

	"github.com/scape1989/geo-logic/internal/geom"
)

// Strictness selects the execution mode of a tool invocation.
type Strictness int

// Strictness levels.
const (
	// Postulate trusts the invocation and applies its effects without
	// verification.
	Postulate Strictness = 0

	// Check additionally evaluates predicates and triggers proof
	// verification for composite tools that declare one.
	Check Strictness = 1
)

// Kind classifies a capability. The kind is declared at definition time and
// drives hyper-parameter coercion: dimension computations and dimension
// predicates take exact rational hyper-parameters so that comparisons are
// reproducible across replay.
type Kind int

// Capability kinds.
const (
	KindConstruction Kind = iota
	KindDimCompute
	KindDimPred
	KindComposite
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindConstruction:
		return "construction"
	case KindDimCompute:
		return "dim_compute"
	case KindDimPred:
		return "dim_pred"
	case KindComposite:
		return "composite"
	}
	return "unknown"
}

// RequiresRational reports whether hyper-parameters of this kind must be
// coerced to exact rationals.
func (k Kind) RequiresRational() bool {
	return k == KindDimCompute || k == KindDimPred
}

// GlobalID is a reference to an object in a geometric model, stable for the
// model's lifetime. Negative values are unresolved placeholders.
type GlobalID int

// Unresolved is the placeholder id for a binding that was never produced,
// typically because the step that would have produced it was skipped.
const Unresolved GlobalID = -1

// Resolved reports whether the id refers to an actual model object.
func (id GlobalID) Resolved() bool { return id >= 0 }

// Model is the narrow contract the core needs from the geometric object
// store: create objects from numeric witnesses and look witnesses back up.
// Every verification sandbox gets its own independent Model instance.
type Model interface {
	// AddObjects creates one object per witness and returns their ids in
	// the same order.
	AddObjects(ws []geom.Witness) []GlobalID

	// Witness returns the current numeric witness of an object, or false
	// if the id is unknown or unresolved.
	Witness(id GlobalID) (geom.Witness, bool)
}

// Capability is the interface all construction tools implement.
type Capability interface {
	// Name returns the unique identifier of this tool.
	Name() string

	// Kind returns the declared tool kind.
	Kind() Kind

	// ArgTypes returns the ordered input type signature.
	ArgTypes() []geom.Type

	// OutTypes returns the ordered output type signature.
	OutTypes() []geom.Type

	// Run executes the tool against the model. On success it returns
	// exactly len(OutTypes()) new object ids; predicates, which produce
	// no objects, return an empty slice. Failures are typed errors that
	// satisfy errors.As for *Error.
	Run(ctx context.Context, hyper []HyperParam, args []GlobalID, m Model, strictness Strictness) ([]GlobalID, error)
}
