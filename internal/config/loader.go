package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/scape1989/geo-logic/internal/basic"
	"github.com/scape1989/geo-logic/internal/composite"
	"github.com/scape1989/geo-logic/internal/geom"
	"github.com/scape1989/geo-logic/internal/step"
	"github.com/scape1989/geo-logic/internal/tool"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Loaded is a resolved catalogue: the composite tools in declaration
// order and a registry holding the primitives plus all of them.
type Loaded struct {
	Tools    []*composite.Tool
	Registry *tool.Registry
}

// Load reads a YAML catalogue file, expands environment variables, and
// resolves it against the primitive registry. Proof obligations of the
// loaded tools go to pc; a nil pc verifies synchronously.
func Load(path string, pc composite.ProofChecker) (*Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	loaded, err := Parse(raw, pc)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return loaded, nil
}

// Parse resolves a YAML catalogue from raw bytes.
func Parse(raw []byte, pc composite.ProofChecker) (*Loaded, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var cat Catalogue
	if err := yaml.Unmarshal(expanded, &cat); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	if cat.Version == "" {
		return nil, errors.New("version field is required")
	}
	if cat.Version != "1" {
		return nil, fmt.Errorf("unsupported version %q (supported: \"1\")", cat.Version)
	}

	// Proofs only ever see the primitives, not the growing catalogue.
	primitives := basic.Registry()
	registry := primitives.Clone()

	loaded := &Loaded{Registry: registry}
	for i, def := range cat.Tools {
		t, err := resolveTool(def, registry, primitives, pc)
		if err != nil {
			return nil, fmt.Errorf("tool %d (%q): %w", i, def.Name, err)
		}
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
		loaded.Tools = append(loaded.Tools, t)
	}

	return loaded, nil
}

// local is a resolved named binding inside a definition.
type local struct {
	index int
	typ   geom.Type
}

// scope maps local names to bindings. Branching a scope lets the proof
// and the implications each extend the post-assumption bindings without
// seeing each other's: both scripts replay from the same snapshot, so
// their outputs occupy the same index range.
type scope struct {
	names map[string]local
	next  int
}

func (s *scope) bind(name string, typ geom.Type) error {
	if name != "" {
		if _, dup := s.names[name]; dup {
			return fmt.Errorf("duplicate local %q", name)
		}
		s.names[name] = local{index: s.next, typ: typ}
	}
	s.next++
	return nil
}

func (s *scope) branch() *scope {
	names := make(map[string]local, len(s.names))
	for k, v := range s.names {
		names[k] = v
	}
	return &scope{names: names, next: s.next}
}

func resolveTool(def ToolDef, registry, primitives *tool.Registry, pc composite.ProofChecker) (*composite.Tool, error) {
	base := &scope{names: make(map[string]local)}

	argTypes := make([]geom.Type, 0, len(def.Args))
	for _, arg := range def.Args {
		typ, err := geom.ParseType(arg.Type)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", arg.Name, err)
		}
		if arg.Name == "" {
			return nil, fmt.Errorf("arg %d: name is required", len(argTypes))
		}
		if err := base.bind(arg.Name, typ); err != nil {
			return nil, err
		}
		argTypes = append(argTypes, typ)
	}

	assumptions, err := resolveScript("assumptions", def.Assumptions, base, registry)
	if err != nil {
		return nil, err
	}

	proofScope := base.branch()
	proof, err := resolveScript("proof", def.Proof, proofScope, primitives)
	if err != nil {
		return nil, err
	}

	implScope := base.branch()
	implications, err := resolveScript("implications", def.Implications, implScope, registry)
	if err != nil {
		return nil, err
	}

	result := make([]int, 0, len(def.Result))
	outTypes := make([]geom.Type, 0, len(def.Result))
	for _, name := range def.Result {
		l, ok := implScope.names[name]
		if !ok {
			return nil, fmt.Errorf("result: unknown local %q", name)
		}
		result = append(result, l.index)
		outTypes = append(outTypes, l.typ)
	}

	return composite.New(composite.Definition{
		Name:         def.Name,
		ArgTypes:     argTypes,
		OutTypes:     outTypes,
		Assumptions:  assumptions,
		Implications: implications,
		Proof:        proof,
		Result:       result,
		ProofTools:   primitives,
		Checker:      pc,
	})
}

func resolveScript(section string, defs []StepDef, sc *scope, registry *tool.Registry) ([]*step.Step, error) {
	steps := make([]*step.Step, 0, len(defs))
	for i, def := range defs {
		s, err := resolveStep(def, sc, registry)
		if err != nil {
			return nil, fmt.Errorf("%s step %d: %w", section, i, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func resolveStep(def StepDef, sc *scope, registry *tool.Registry) (*step.Step, error) {
	c, err := registry.Get(def.Tool)
	if err != nil {
		return nil, err
	}

	argTypes := c.ArgTypes()
	if len(def.With) != len(argTypes) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", tool.ErrArity, def.Tool, len(argTypes), len(def.With))
	}
	args := make([]int, 0, len(def.With))
	for i, name := range def.With {
		l, ok := sc.names[name]
		if !ok {
			return nil, fmt.Errorf("unknown local %q", name)
		}
		if l.typ != argTypes[i] {
			return nil, fmt.Errorf("%w: argument %d of %s wants %s, local %q is %s", tool.ErrTypeMismatch, i, def.Tool, argTypes[i], name, l.typ)
		}
		args = append(args, l.index)
	}

	outTypes := c.OutTypes()
	if len(def.Out) != 0 && len(def.Out) != len(outTypes) {
		return nil, fmt.Errorf("%w: %s yields %d outputs, %d named", tool.ErrArity, def.Tool, len(outTypes), len(def.Out))
	}

	label := def.Label
	if label == "" {
		label = def.Tool
	}

	s, err := step.New(c, def.Hyper, args, sc.next, label)
	if err != nil {
		return nil, err
	}

	for i, typ := range outTypes {
		name := ""
		if len(def.Out) != 0 {
			name = def.Out[i]
		}
		if err := sc.bind(name, typ); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML
// bytes. Returns an error listing all unresolved variables.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil
		defaultVal := ""
		if hasDefault {
			defaultVal = string(subs[2])
		}

		value, ok := os.LookupEnv(name)
		if ok {
			return []byte(value)
		}

		if hasDefault {
			return []byte(defaultVal)
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
