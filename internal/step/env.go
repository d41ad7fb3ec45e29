package step

import (
	"context"
	"fmt"

	"github.com/scape1989/geo-logic/internal/tool"
)

// Env executes tool steps against a model, maintaining the append-only
// translation from local indices to global ones. The invariant is strict
// positional alignment: every executed step appends exactly as many entries
// as its tool declares outputs, and a step skipped because of unresolved
// inputs appends the same number of unresolved placeholders, so later
// steps' local indices stay valid either way.
type Env struct {
	model  tool.Model
	locals []tool.GlobalID
}

// NewEnv creates an environment over the model, seeded with the given
// global ids as the first local indices.
func NewEnv(m tool.Model, init ...tool.GlobalID) *Env {
	return &Env{model: m, locals: append([]tool.GlobalID(nil), init...)}
}

// RunOption configures a single Run call.
type RunOption func(*runConfig)

type runConfig struct {
	catchErrors bool
}

// CatchErrors makes Run tolerate step failures: a failed step is marked
// unsuccessful, placeholders keep the table aligned, and execution
// continues. Used by exploratory construction that must keep partial state
// visible after a failed step.
func CatchErrors() RunOption {
	return func(c *runConfig) { c.catchErrors = true }
}

// Run executes the steps in order at the given strictness.
//
// For each step the local argument indices are resolved through the
// translation table. If any resolved argument is an unresolved placeholder
// the step is skipped (success = false) and placeholder outputs are
// appended. Otherwise the capability runs; on success its outputs are
// appended, on failure the step's label is pushed onto the error trace and
// the typed error is returned — or swallowed under CatchErrors.
func (e *Env) Run(ctx context.Context, steps []*Step, strictness tool.Strictness, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setSuccess(false)
		outTypes := len(s.Tool.OutTypes())

		args := make([]tool.GlobalID, len(s.Args))
		resolved := true
		for i, li := range s.Args {
			if li < 0 || li >= len(e.locals) {
				err := tool.AsError(fmt.Errorf("%w: %d (table has %d entries)", tool.ErrLocalIndex, li, len(e.locals)))
				if s.Label != "" {
					err.Push(s.Label)
				}
				if cfg.catchErrors {
					resolved = false
					break
				}
				return err
			}
			args[i] = e.locals[li]
			if !args[i].Resolved() {
				resolved = false
			}
		}

		if !resolved {
			e.appendPlaceholders(outTypes)
			continue
		}

		outs, err := s.Tool.Run(ctx, s.Hyper, args, e.model, strictness)
		if err != nil {
			terr := tool.AsError(err)
			if s.Label != "" {
				terr.Push(s.Label)
			}
			if cfg.catchErrors {
				e.appendPlaceholders(outTypes)
				continue
			}
			return terr
		}
		if len(outs) != outTypes {
			return tool.AsError(fmt.Errorf("%w: %s returned %d outputs, want %d", tool.ErrArity, s.Tool.Name(), len(outs), outTypes))
		}

		s.setSuccess(true)
		e.locals = append(e.locals, outs...)
	}
	return nil
}

func (e *Env) appendPlaceholders(n int) {
	for range n {
		e.locals = append(e.locals, tool.Unresolved)
	}
}

// Local returns the global id bound at a local index.
func (e *Env) Local(i int) (tool.GlobalID, bool) {
	if i < 0 || i >= len(e.locals) {
		return tool.Unresolved, false
	}
	return e.locals[i], true
}

// Locals returns a copy of the translation table.
func (e *Env) Locals() []tool.GlobalID {
	return append([]tool.GlobalID(nil), e.locals...)
}

// Len returns the current size of the translation table.
func (e *Env) Len() int { return len(e.locals) }

// Snapshot captures the translation table for a later Restore.
func (e *Env) Snapshot() []tool.GlobalID {
	return e.Locals()
}

// Restore rolls the translation table back to a snapshot, discarding every
// binding appended since. The model itself is append-only and untouched;
// only the local view shrinks. Used to discard proof-script bindings before
// re-running implications under verification.
func (e *Env) Restore(snap []tool.GlobalID) {
	e.locals = append(e.locals[:0:0], snap...)
}
