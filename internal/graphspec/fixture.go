// Package graphspec describes circuits as named-gate fixtures and compiles
// them to *ir.Circuit.
//
// Fixtures are written in YAML or CUE. Gates refer to each other by name, in
// any order, so loops can be written without placeholders. Root gates are
// implicit: the names "entry" and "depend_entry" denote STATE_ENTRY and
// DEPEND_ENTRY, and "_" leaves an input unset.
//
// YAML files hold one fixture per document:
//
//	name: diamond
//	gates:
//	  - {name: a, op: ARG, type: int}
//	  - {name: cond, op: ICMP, bitfield: 2, value: [a, three]}
//	  - ...
//
// CUE files hold any number of fixtures under a top-level "fixture" struct:
//
//	fixture: diamond: gates: [...]
package graphspec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Reserved gate names.
const (
	EntryName       = "entry"
	DependEntryName = "depend_entry"
	UnsetName       = "_"
)

// Fixture is one named circuit.
type Fixture struct {
	Name        string     `yaml:"name" json:"name,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Gates       []GateSpec `yaml:"gates" json:"gates"`
}

// GateSpec describes one gate. Machine and Type default from the opcode and
// the constant payload when omitted.
type GateSpec struct {
	Name     string `yaml:"name" json:"name"`
	Op       string `yaml:"op" json:"op"`
	Machine  string `yaml:"machine,omitempty" json:"machine,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	BitField uint64 `yaml:"bitfield,omitempty" json:"bitfield,omitempty"`

	// Constant payloads. At most one may be set, and only on CONSTANT.
	Int   *int32   `yaml:"int,omitempty" json:"int,omitempty"`
	Float *float64 `yaml:"float,omitempty" json:"float,omitempty"`
	Bool  *bool    `yaml:"bool,omitempty" json:"bool,omitempty"`

	// Convert names the ConvertKind of a CONVERT or CHECK_AND_CONVERT gate.
	Convert string `yaml:"convert,omitempty" json:"convert,omitempty"`

	Typed *TypedSpec `yaml:"typed,omitempty" json:"typed,omitempty"`

	State  []string `yaml:"state,omitempty" json:"state,omitempty"`
	Depend []string `yaml:"depend,omitempty" json:"depend,omitempty"`
	Value  []string `yaml:"value,omitempty" json:"value,omitempty"`
}

// TypedSpec is the operator payload of TYPED_BINARY_OP and TYPED_UNARY_OP.
// Left and Right default to the static types of the operands.
type TypedSpec struct {
	Op    string `yaml:"op" json:"op"`
	Left  string `yaml:"left,omitempty" json:"left,omitempty"`
	Right string `yaml:"right,omitempty" json:"right,omitempty"`
}

// FixtureError reports a malformed fixture.
type FixtureError struct {
	Fixture string
	Gate    string
	Message string
	Pos     string
}

func (e *FixtureError) Error() string {
	var prefix string
	if e.Pos != "" {
		prefix = e.Pos + ": "
	}
	switch {
	case e.Fixture != "" && e.Gate != "":
		return fmt.Sprintf("%sfixture %s: gate %s: %s", prefix, e.Fixture, e.Gate, e.Message)
	case e.Fixture != "":
		return fmt.Sprintf("%sfixture %s: %s", prefix, e.Fixture, e.Message)
	default:
		return prefix + e.Message
	}
}

// ParseYAML decodes every document of a YAML stream. Unknown keys are errors.
func ParseYAML(r io.Reader) ([]*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []*Fixture
	for {
		var f Fixture
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FixtureError{Message: fmt.Sprintf("decode yaml: %v", err)}
		}
		out = append(out, &f)
	}
	if len(out) == 0 {
		return nil, &FixtureError{Message: "no fixtures in yaml input"}
	}
	return out, nil
}

// ParseCUE evaluates CUE source and decodes every field of its top-level
// "fixture" struct. A fixture without a name takes its field label.
func ParseCUE(filename string, src []byte) ([]*Fixture, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	root := v.LookupPath(cue.ParsePath("fixture"))
	if !root.Exists() {
		return nil, &FixtureError{Pos: filename, Message: `no top-level "fixture" struct`}
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, cueError(err)
	}
	var out []*Fixture
	for iter.Next() {
		var f Fixture
		if err := iter.Value().Decode(&f); err != nil {
			return nil, cueError(err)
		}
		if f.Name == "" {
			f.Name = iter.Label()
		}
		out = append(out, &f)
	}
	if len(out) == 0 {
		return nil, &FixtureError{Pos: filename, Message: "no fixtures defined"}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// cueError keeps the first error and its source position.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	fe := &FixtureError{Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		fe.Pos = pos[0].String()
	}
	return fe
}

// LoadFile reads fixtures from a .yaml, .yml or .cue file.
func LoadFile(path string) ([]*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(bytes.NewReader(data))
	case ".cue":
		return ParseCUE(path, data)
	}
	return nil, &FixtureError{Pos: path, Message: "unsupported fixture extension (want .yaml, .yml or .cue)"}
}

// LoadOne reads a file that must hold exactly one fixture, or selects the
// fixture called name when name is not empty.
func LoadOne(path, name string) (*Fixture, error) {
	all, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(all) != 1 {
			return nil, &FixtureError{Pos: path, Message: fmt.Sprintf("%d fixtures in file, name one", len(all))}
		}
		return all[0], nil
	}
	for _, f := range all {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, &FixtureError{Pos: path, Fixture: name, Message: "not found"}
}
