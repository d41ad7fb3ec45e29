// Package config loads tool catalogues from YAML: composite tool
// definitions with named locals, resolved against the primitive registry
// and against each other in declaration order.
package config

// Catalogue is the top-level catalogue structure.
type Catalogue struct {
	// Version is the catalogue format version. Currently only "1" is
	// supported.
	Version string `yaml:"version"`

	// Tools are composite tool definitions, resolved in order: a tool
	// may use any tool declared before it.
	Tools []ToolDef `yaml:"tools"`
}

// ToolDef is one composite tool definition.
type ToolDef struct {
	Name string `yaml:"name"`

	// Args declares the tool's inputs, each with a local name and a
	// geometric type.
	Args []ArgDef `yaml:"args"`

	// Assumptions construct the tool's outputs from its inputs. They run
	// at the caller's strictness.
	Assumptions []StepDef `yaml:"assumptions"`

	// Proof derives the implications from the assumptions using only
	// primitive tools. Omitted for axiomatic tools.
	Proof []StepDef `yaml:"proof,omitempty"`

	// Implications are postulated facts about the constructed objects.
	Implications []StepDef `yaml:"implications,omitempty"`

	// Result names the locals projected as the tool's outputs.
	Result []string `yaml:"result"`
}

// ArgDef is a named, typed tool input.
type ArgDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// StepDef is one tool invocation inside a definition.
type StepDef struct {
	// Tool names the capability to invoke.
	Tool string `yaml:"tool"`

	// With lists the local names passed as arguments.
	With []string `yaml:"with"`

	// Out binds local names to the step's outputs. Either empty (outputs
	// stay anonymous) or one name per declared output.
	Out []string `yaml:"out,omitempty"`

	// Hyper holds the step's hyper-parameters; numeric ones are parsed
	// as exact rationals.
	Hyper []any `yaml:"hyper,omitempty"`

	// Label overrides the step's display label; defaults to the tool
	// name.
	Label string `yaml:"label,omitempty"`
}
