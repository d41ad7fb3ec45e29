package composite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scape1989/geo-logic/internal/basic"
	"github.com/scape1989/geo-logic/internal/geom"
	"github.com/scape1989/geo-logic/internal/model"
	"github.com/scape1989/geo-logic/internal/step"
	"github.com/scape1989/geo-logic/internal/tool"
)

// recordingChecker captures submissions without verifying anything.
type recordingChecker struct {
	calls []struct {
		obligation Obligation
		numArgs    []geom.Witness
	}
}

func (r *recordingChecker) Submit(_ context.Context, o Obligation, numArgs []geom.Witness) error {
	r.calls = append(r.calls, struct {
		obligation Obligation
		numArgs    []geom.Witness
	}{o, numArgs})
	return nil
}

func mustStep(t *testing.T, reg *tool.Registry, name string, hyper []any, args []int, startOut int) *step.Step {
	t.Helper()
	c, err := reg.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	s, err := step.New(c, hyper, args, startOut, "")
	if err != nil {
		t.Fatalf("step.New(%s): %v", name, err)
	}
	return s
}

// plainMidpoint is a Midpoint(A, B) -> M macro: one assumption
// step, no proof, no implications.
func plainMidpoint(t *testing.T, prims *tool.Registry, chk ProofChecker) *Tool {
	t.Helper()
	ct, err := New(Definition{
		Name:        "plain_midpoint",
		ArgTypes:    []geom.Type{geom.TypePoint, geom.TypePoint},
		OutTypes:    []geom.Type{geom.TypePoint},
		Assumptions: []*step.Step{mustStep(t, prims, "midpoint", nil, []int{0, 1}, 2)},
		Result:      []int{2},
		ProofTools:  prims,
		Checker:     chk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ct
}

// provedMidpoint declares eq_dist(A,M,M,B) as its implication and proves it
// by computing both distances and comparing them.
func provedMidpoint(t *testing.T, prims *tool.Registry, chk ProofChecker) *Tool {
	t.Helper()
	ct, err := New(Definition{
		Name:     "proved_midpoint",
		ArgTypes: []geom.Type{geom.TypePoint, geom.TypePoint},
		OutTypes: []geom.Type{geom.TypePoint},
		Assumptions: []*step.Step{
			mustStep(t, prims, "midpoint", nil, []int{0, 1}, 2),
		},
		Implications: []*step.Step{
			mustStep(t, prims, "eq_dist", nil, []int{0, 2, 2, 1}, -1),
		},
		Proof: []*step.Step{
			mustStep(t, prims, "dist", []any{1}, []int{0, 2}, 3),
			mustStep(t, prims, "dist", []any{1}, []int{2, 1}, 4),
			mustStep(t, prims, "eq_measure", nil, []int{3, 4}, -1),
		},
		Result:     []int{2},
		ProofTools: prims,
		Checker:    chk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ct
}

// inconsistentTool has a proof that superficially executes while its
// implication (the arguments coincide) does not follow from the
// assumptions.
func inconsistentTool(t *testing.T, prims *tool.Registry, chk ProofChecker) *Tool {
	t.Helper()
	ct, err := New(Definition{
		Name:     "bogus_coincide",
		ArgTypes: []geom.Type{geom.TypePoint, geom.TypePoint},
		OutTypes: []geom.Type{geom.TypePoint},
		Assumptions: []*step.Step{
			mustStep(t, prims, "midpoint", nil, []int{0, 1}, 2),
		},
		Implications: []*step.Step{
			mustStep(t, prims, "coincide", nil, []int{0, 2}, -1),
		},
		Proof: []*step.Step{
			mustStep(t, prims, "midpoint", nil, []int{0, 1}, 3),
		},
		Result:     []int{2},
		ProofTools: prims,
		Checker:    chk,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ct
}

func TestRun_MidpointScenario(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	chk := &recordingChecker{}
	ct := plainMidpoint(t, prims, chk)

	m := model.New(prims)
	ids := m.AddObjects([]geom.Witness{geom.Point(0, 0), geom.Point(2, 4)})
	before := m.Len()

	out, err := ct.Run(context.Background(), nil, ids, m, tool.Check)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d outputs, want 1", len(out))
	}
	w, _ := m.Witness(out[0])
	if !w.Equal(geom.Point(1, 2)) {
		t.Fatalf("midpoint = %v, want point(1, 2)", w)
	}
	if m.Len() != before+1 {
		t.Fatalf("model gained %d objects, want 1", m.Len()-before)
	}
	// No proof, so no obligation is submitted even at strictness Check.
	if len(chk.calls) != 0 {
		t.Fatalf("proof-less tool submitted %d obligations", len(chk.calls))
	}
}

func TestRun_SubmitsObligationAtCheck(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	chk := &recordingChecker{}
	ct := provedMidpoint(t, prims, chk)

	m := model.New(prims)
	ids := m.AddObjects([]geom.Witness{geom.Point(0, 0), geom.Point(4, 0)})

	if _, err := ct.Run(context.Background(), nil, ids, m, tool.Check); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chk.calls) != 1 {
		t.Fatalf("got %d submissions, want 1", len(chk.calls))
	}
	// Witnesses cover every binding accumulated by the assumptions:
	// the two arguments plus the midpoint.
	if len(chk.calls[0].numArgs) != 3 {
		t.Fatalf("obligation carries %d witnesses, want 3", len(chk.calls[0].numArgs))
	}
}

func TestRun_NoSubmissionAtPostulate(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	chk := &recordingChecker{}
	ct := provedMidpoint(t, prims, chk)

	m := model.New(prims)
	ids := m.AddObjects([]geom.Witness{geom.Point(0, 0), geom.Point(4, 0)})

	if _, err := ct.Run(context.Background(), nil, ids, m, tool.Postulate); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chk.calls) != 0 {
		t.Fatalf("postulated run submitted %d obligations", len(chk.calls))
	}
}

func TestRun_Memoized(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	counting := &countingTool{}
	reg := prims.Clone()
	if err := reg.Register(counting); err != nil {
		t.Fatalf("register: %v", err)
	}

	ct, err := New(Definition{
		Name:        "counted",
		ArgTypes:    []geom.Type{geom.TypePoint},
		OutTypes:    []geom.Type{geom.TypeMeasure},
		Assumptions: []*step.Step{mustStep(t, reg, "counting", nil, []int{0}, 1)},
		Result:      []int{1},
		ProofTools:  prims,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m := model.New(prims)
	id := m.AddObject(geom.Point(1, 1))

	first, err := ct.Run(context.Background(), nil, []tool.GlobalID{id}, m, tool.Postulate)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := ct.Run(context.Background(), nil, []tool.GlobalID{id}, m, tool.Postulate)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if counting.runs != 1 {
		t.Fatalf("underlying steps ran %d times, want 1", counting.runs)
	}
	if first[0] != second[0] {
		t.Fatalf("memoized results differ: %v vs %v", first, second)
	}

	// A different argument tuple is a fresh computation.
	other := m.AddObject(geom.Point(2, 2))
	if _, err := ct.Run(context.Background(), nil, []tool.GlobalID{other}, m, tool.Postulate); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if counting.runs != 2 {
		t.Fatalf("distinct arguments must re-run: runs = %d", counting.runs)
	}
}

func TestDeepLens(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()

	plain := plainMidpoint(t, prims, nil)
	if plain.DeepLenAll() != 0 || plain.DeepLenProof() != 0 {
		t.Fatalf("plain tool weights = %d/%d, want 0/0", plain.DeepLenAll(), plain.DeepLenProof())
	}

	proved := provedMidpoint(t, prims, nil)
	if proved.DeepLenProof() != 1 {
		t.Fatalf("proved tool DeepLenProof = %d, want 1", proved.DeepLenProof())
	}
	if proved.DeepLenAll() != 1 {
		t.Fatalf("proved tool DeepLenAll = %d, want 1", proved.DeepLenAll())
	}

	// A tool using the proved macro in its assumptions and its proof.
	reg := prims.Clone()
	if err := reg.Register(proved); err != nil {
		t.Fatalf("register: %v", err)
	}
	outer, err := New(Definition{
		Name:     "outer",
		ArgTypes: []geom.Type{geom.TypePoint, geom.TypePoint},
		OutTypes: []geom.Type{geom.TypePoint},
		Assumptions: []*step.Step{
			mustStep(t, reg, "proved_midpoint", nil, []int{0, 1}, 2),
		},
		Implications: []*step.Step{
			mustStep(t, reg, "eq_dist", nil, []int{0, 2, 2, 1}, -1),
		},
		Proof: []*step.Step{
			mustStep(t, reg, "proved_midpoint", nil, []int{0, 1}, 3),
			mustStep(t, reg, "coincide", nil, []int{2, 3}, -1),
		},
		Result:     []int{2},
		ProofTools: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Assumptions contribute 1; own proof contributes 1 + 1 nested.
	if outer.DeepLenProof() != 2 {
		t.Fatalf("outer DeepLenProof = %d, want 2", outer.DeepLenProof())
	}
	if outer.DeepLenAll() != 3 {
		t.Fatalf("outer DeepLenAll = %d, want 3", outer.DeepLenAll())
	}
}

func TestProofCheck_Valid(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	ct := provedMidpoint(t, prims, nil)

	numArgs := []geom.Witness{geom.Point(0, 0), geom.Point(4, 0), geom.Point(2, 0)}
	if err := ct.ProofCheck(context.Background(), numArgs); err != nil {
		t.Fatalf("ProofCheck: %v", err)
	}
}

func TestProofCheck_DoesNotTouchAmbientModel(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	chk := &recordingChecker{}
	ct := provedMidpoint(t, prims, chk)

	ambient := model.New(prims)
	ids := ambient.AddObjects([]geom.Witness{geom.Point(0, 0), geom.Point(4, 0)})
	if _, err := ct.Run(context.Background(), nil, ids, ambient, tool.Check); err != nil {
		t.Fatalf("Run: %v", err)
	}

	before := ambient.Witnesses()
	if err := ct.ProofCheck(context.Background(), chk.calls[0].numArgs); err != nil {
		t.Fatalf("ProofCheck: %v", err)
	}
	after := ambient.Witnesses()

	if len(before) != len(after) {
		t.Fatalf("ambient model grew from %d to %d objects", len(before), len(after))
	}
	for i := range before {
		if !before[i].Equal(after[i]) {
			t.Fatalf("ambient witness %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestProofCheck_InconsistentImplications(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	// Nil checker: verification runs synchronously in the submitting call.
	ct := inconsistentTool(t, prims, nil)

	m := model.New(prims)
	ids := m.AddObjects([]geom.Witness{geom.Point(0, 0), geom.Point(4, 0)})

	_, err := ct.Run(context.Background(), nil, ids, m, tool.Check)
	if !errors.Is(err, tool.ErrNotSatisfied) {
		t.Fatalf("expected ErrNotSatisfied, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed proof: bogus_coincide") {
		t.Fatalf("verification failure must name the tool: %v", err)
	}
}

func TestProofCheck_NestedRecursion(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	proved := provedMidpoint(t, prims, nil)
	reg := prims.Clone()
	if err := reg.Register(proved); err != nil {
		t.Fatalf("register: %v", err)
	}

	// The outer proof invokes the proved macro; with a nil checker the
	// nested obligation verifies synchronously inside the outer check.
	outer, err := New(Definition{
		Name:     "nested",
		ArgTypes: []geom.Type{geom.TypePoint, geom.TypePoint},
		OutTypes: []geom.Type{geom.TypePoint},
		Assumptions: []*step.Step{
			mustStep(t, reg, "midpoint", nil, []int{0, 1}, 2),
		},
		Implications: []*step.Step{
			mustStep(t, reg, "eq_dist", nil, []int{0, 2, 2, 1}, -1),
		},
		Proof: []*step.Step{
			mustStep(t, reg, "proved_midpoint", nil, []int{0, 1}, 3),
			mustStep(t, reg, "coincide", nil, []int{2, 3}, -1),
		},
		Result:     []int{2},
		ProofTools: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	numArgs := []geom.Witness{geom.Point(0, 0), geom.Point(4, 0), geom.Point(2, 0)}
	if err := outer.ProofCheck(context.Background(), numArgs); err != nil {
		t.Fatalf("nested ProofCheck: %v", err)
	}
}

func TestProofCheck_NoProof(t *testing.T) {
	t.Parallel()

	prims := basic.Registry()
	ct := plainMidpoint(t, prims, nil)

	err := ct.ProofCheck(context.Background(), []geom.Witness{geom.Point(0, 0), geom.Point(1, 1)})
	if !errors.Is(err, tool.ErrNoProof) {
		t.Fatalf("expected ErrNoProof, got %v", err)
	}
}

// countingTool counts executions; used for memoization tests.
type countingTool struct {
	runs int
}

func (c *countingTool) Name() string          { return "counting" }
func (c *countingTool) Kind() tool.Kind       { return tool.KindConstruction }
func (c *countingTool) ArgTypes() []geom.Type { return []geom.Type{geom.TypePoint} }
func (c *countingTool) OutTypes() []geom.Type { return []geom.Type{geom.TypeMeasure} }

func (c *countingTool) Run(_ context.Context, _ []tool.HyperParam, _ []tool.GlobalID, m tool.Model, _ tool.Strictness) ([]tool.GlobalID, error) {
	c.runs++
	return m.AddObjects([]geom.Witness{geom.Measure(float64(c.runs))}), nil
}
