package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSuite is wrapped by every suite validation error.
var ErrInvalidSuite = errors.New("scenario: invalid suite")

// Suite is a named list of scenarios, as stored in YAML:
//
//	name: reorders
//	scenarios:
//	  - name: reverse
//	    old: "a b c"
//	    new: "c b a"
//	    expect:
//	      moves: 2
type Suite struct {
	// Name identifies the suite in reports.
	Name string `yaml:"name"`

	// Scenarios run in file order.
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one reconciliation from Old to New, both in tree notation.
type Scenario struct {
	Name   string `yaml:"name"`
	Old    string `yaml:"old"`
	New    string `yaml:"new"`
	Expect Expect `yaml:"expect,omitempty"`
}

// Expect holds the primitive counts a scenario must produce. Nil fields are
// not checked.
type Expect struct {
	Created *int `yaml:"created,omitempty"`
	Inserts *int `yaml:"inserts,omitempty"`
	Moves   *int `yaml:"moves,omitempty"`
	Removes *int `yaml:"removes,omitempty"`
	Updates *int `yaml:"updates,omitempty"`
}

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the suite compiled into the binary.
func Builtin() *Suite {
	s, err := Decode(bytes.NewReader(builtinYAML))
	if err != nil {
		panic("scenario: builtin suite: " + err.Error())
	}
	return s
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a suite. Unknown fields are rejected so typos
// like "expects:" do not silently disable checks.
func Decode(r io.Reader) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSuite, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks required fields and that both trees of every scenario
// parse.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSuite)
	}
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("%w: %s: scenarios list is empty", ErrInvalidSuite, s.Name)
	}
	seen := make(map[string]bool, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if sc.Name == "" {
			return fmt.Errorf("%w: scenario %d: name is required", ErrInvalidSuite, i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("%w: duplicate scenario %q", ErrInvalidSuite, sc.Name)
		}
		seen[sc.Name] = true
		if _, err := Parse(sc.Old); err != nil {
			return fmt.Errorf("%w: %s: old: %w", ErrInvalidSuite, sc.Name, err)
		}
		if _, err := Parse(sc.New); err != nil {
			return fmt.Errorf("%w: %s: new: %w", ErrInvalidSuite, sc.Name, err)
		}
	}
	return nil
}

// Marshal encodes the suite back to YAML.
func (s *Suite) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
