// Package composite implements reusable construction macros. A composite
// tool packages an assumptions script, an implications script, an optional
// proof script, and a result projection. Running it replays assumptions and
// implications against the caller's model; checking it replays the proof in
// an isolated sandbox and re-derives the implications from the assumptions
// alone.
package composite

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/scape1989/geo-logic/internal/geom"
	"github.com/scape1989/geo-logic/internal/model"
	"github.com/scape1989/geo-logic/internal/step"
	"github.com/scape1989/geo-logic/internal/tool"
)

// Obligation is the contract a proof checker needs from a tool under
// verification: an identity, a scheduling weight, and the verification
// entry point itself. *Tool implements it.
type Obligation interface {
	// Name identifies the tool in logs and traces.
	Name() string

	// DeepLenProof is the obligation's scheduling weight: 1 for the
	// tool's own proof plus the count of nested obligations reachable
	// from it. 0 when the tool has no proof.
	DeepLenProof() int

	// ProofCheck verifies the tool against concrete numeric witnesses in
	// an isolated sandbox.
	ProofCheck(ctx context.Context, numArgs []geom.Witness) error
}

// ProofChecker receives proof obligations discovered during checked
// execution. Submissions may be verified now or later, inline or on a
// background worker; only a synchronous checker surfaces failures to the
// submitting call.
type ProofChecker interface {
	Submit(ctx context.Context, o Obligation, numArgs []geom.Witness) error
}

// Definition describes a composite tool to New.
type Definition struct {
	Name     string
	ArgTypes []geom.Type
	OutTypes []geom.Type

	// Assumptions construct the tool's precondition state from its
	// arguments. Implications state the claimed consequences; they are
	// always applied optimistically during Run and only re-derived under
	// verification. Proof, when present, is replayed in a sandbox to
	// justify the implications.
	Assumptions  []*step.Step
	Implications []*step.Step
	Proof        []*step.Step

	// Result selects which local bindings become the tool's outputs.
	Result []int

	// ProofTools is the catalogue of primitives available inside the
	// proof sandbox. Proofs see only this catalogue, never the ambient
	// one, so a proof's validity cannot depend on anything beyond its
	// declared primitives.
	ProofTools *tool.Registry

	// Checker receives this tool's proof obligations. A nil checker
	// verifies synchronously in the submitting call.
	Checker ProofChecker
}

// Tool is a named, reusable macro behaving as a tool capability.
// Immutable after construction.
type Tool struct {
	name         string
	argTypes     []geom.Type
	outTypes     []geom.Type
	assumptions  []*step.Step
	implications []*step.Step
	proof        []*step.Step
	result       []int
	proofTools   *tool.Registry
	checker      ProofChecker

	deepLenAll   int
	deepLenProof int

	mu   sync.Mutex
	memo map[string][]tool.GlobalID
}

// New builds a composite tool and precomputes its verification-cost
// weights with a bottom-up fold over the nested composite tools of its
// scripts.
func New(def Definition) (*Tool, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, tool.ErrEmptyToolName
	}
	if len(def.Result) != len(def.OutTypes) {
		return nil, fmt.Errorf("%w: %s projects %d results, declares %d outputs", tool.ErrArity, def.Name, len(def.Result), len(def.OutTypes))
	}

	t := &Tool{
		name:         def.Name,
		argTypes:     append([]geom.Type(nil), def.ArgTypes...),
		outTypes:     append([]geom.Type(nil), def.OutTypes...),
		assumptions:  def.Assumptions,
		implications: def.Implications,
		proof:        def.Proof,
		result:       append([]int(nil), def.Result...),
		proofTools:   def.ProofTools,
		checker:      def.Checker,
		memo:         make(map[string][]tool.GlobalID),
	}

	for _, s := range t.assumptions {
		t.deepLenAll += step.DeepWeight(s.Tool)
	}
	if t.proof != nil {
		t.deepLenProof = 1
		for _, s := range t.implications {
			t.deepLenProof += step.DeepWeight(s.Tool)
		}
		for _, s := range t.proof {
			t.deepLenProof += step.DeepWeight(s.Tool)
		}
		t.deepLenAll += t.deepLenProof
	}
	return t, nil
}

// Name returns the macro's name.
func (t *Tool) Name() string { return t.name }

// Kind returns tool.KindComposite.
func (t *Tool) Kind() tool.Kind { return tool.KindComposite }

// ArgTypes returns the input type signature.
func (t *Tool) ArgTypes() []geom.Type { return t.argTypes }

// OutTypes returns the output type signature.
func (t *Tool) OutTypes() []geom.Type { return t.outTypes }

// HasProof reports whether the tool declares a proof.
func (t *Tool) HasProof() bool { return t.proof != nil }

// DeepLenAll is the total count of nested verification obligations
// reachable through this tool.
func (t *Tool) DeepLenAll() int { return t.deepLenAll }

// DeepLenProof is 1 plus the nested obligation count of proof and
// implications, or 0 when no proof exists.
func (t *Tool) DeepLenProof() int { return t.deepLenProof }

// Run executes the macro against the caller's model. Assumptions run at the
// caller's strictness; when that is Check and a proof exists, a proof
// obligation carrying the current numeric witnesses is submitted to the
// checker. Implications always run at Postulate — their correctness is the
// proof obligation's responsibility, not this execution path's.
//
// Results are memoized per (model, hyper-parameters, argument tuple):
// repeated invocation with identical inputs executes the scripts at most
// once.
func (t *Tool) Run(ctx context.Context, hyper []tool.HyperParam, args []tool.GlobalID, m tool.Model, strictness tool.Strictness) ([]tool.GlobalID, error) {
	key := memoKey(m, hyper, args)
	t.mu.Lock()
	if cached, ok := t.memo[key]; ok {
		t.mu.Unlock()
		return append([]tool.GlobalID(nil), cached...), nil
	}
	t.mu.Unlock()

	env := step.NewEnv(m, args...)
	if err := env.Run(ctx, t.assumptions, strictness); err != nil {
		return nil, err
	}

	if strictness == tool.Check && t.proof != nil {
		numArgs, err := t.collectWitnesses(env, m)
		if err != nil {
			return nil, err
		}
		if err := t.submit(ctx, numArgs); err != nil {
			return nil, err
		}
	}

	if err := env.Run(ctx, t.implications, tool.Postulate); err != nil {
		return nil, err
	}

	out := make([]tool.GlobalID, len(t.result))
	for i, li := range t.result {
		id, ok := env.Local(li)
		if !ok {
			return nil, tool.AsError(fmt.Errorf("%w: result %d of %s", tool.ErrLocalIndex, li, t.name))
		}
		out[i] = id
	}

	t.mu.Lock()
	t.memo[key] = append([]tool.GlobalID(nil), out...)
	t.mu.Unlock()
	return out, nil
}

// collectWitnesses looks up the numeric witness of every binding
// accumulated so far, in local-index order.
func (t *Tool) collectWitnesses(env *step.Env, m tool.Model) ([]geom.Witness, error) {
	locals := env.Locals()
	ws := make([]geom.Witness, len(locals))
	for i, id := range locals {
		w, ok := m.Witness(id)
		if !ok {
			return nil, tool.AsError(fmt.Errorf("%w: local %d of %s has no witness", tool.ErrUnresolved, i, t.name))
		}
		ws[i] = w
	}
	return ws, nil
}

func (t *Tool) submit(ctx context.Context, numArgs []geom.Witness) error {
	if t.checker != nil {
		return t.checker.Submit(ctx, t, numArgs)
	}
	return t.ProofCheck(ctx, numArgs)
}

// ProofCheck verifies the tool against the supplied numeric witnesses.
// Invoked only by a proof checker, never for a tool without a proof.
//
// A brand-new model is built, scoped to the tool's own primitive catalogue,
// and seeded with the witnesses of the tool's declared arguments. The
// assumptions replay at Postulate to reconstruct the precondition state;
// the proof replays at Check; then the translation table is rolled back and
// the implications replay at Check against the assumption bindings alone.
// A failure in that last stage means the implications do not actually
// follow from the assumptions even though the proof executed.
func (t *Tool) ProofCheck(ctx context.Context, numArgs []geom.Witness) error {
	if t.proof == nil {
		return tool.AsError(fmt.Errorf("%w: %s", tool.ErrNoProof, t.name))
	}
	n := len(t.argTypes)
	if len(numArgs) < n {
		return tool.AsError(fmt.Errorf("%w: %s got %d witnesses, needs at least %d", tool.ErrArity, t.name, len(numArgs), n))
	}

	sandbox := model.New(t.proofTools)
	args := sandbox.AddObjects(numArgs[:n])
	env := step.NewEnv(sandbox, args...)

	err := func() error {
		if err := env.Run(ctx, t.assumptions, tool.Postulate); err != nil {
			return err
		}
		snap := env.Snapshot()
		if err := env.Run(ctx, t.proof, tool.Check); err != nil {
			return err
		}
		env.Restore(snap)
		return env.Run(ctx, t.implications, tool.Check)
	}()
	if err != nil {
		terr := tool.AsError(err)
		terr.Push(fmt.Sprintf("failed proof: %s %s", t.name, formatWitnesses(numArgs[:n])))
		return terr
	}
	return nil
}

func formatWitnesses(ws []geom.Witness) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// memoKey builds the memoization key. The model's identity is part of the
// key: a cached binding is only meaningful inside the model that produced
// it, and verification sandboxes must never observe ambient bindings.
func memoKey(m tool.Model, hyper []tool.HyperParam, args []tool.GlobalID) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%p", m)
	for _, h := range hyper {
		sb.WriteByte('|')
		sb.WriteString(h.String())
	}
	sb.WriteByte(';')
	for _, a := range args {
		fmt.Fprintf(&sb, "|%d", a)
	}
	return sb.String()
}
