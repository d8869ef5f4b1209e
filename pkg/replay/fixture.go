// Package replay implements a fixture-driven engine.Engine that answers wire
// commands from pre-recorded responses. It never matches patterns: step
// names are looked up verbatim and step ids are looked up by value.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

// Status is the recorded outcome of a step invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusFailure Status = "failure"
)

// Fixture is a replay file: the matches, invocation results and snippet
// template an engine would produce for one feature suite.
type Fixture struct {
	// Matches maps exact step text to the step definitions it matches.
	Matches map[string][]engine.SingleStepMatch `yaml:"matches,omitempty" json:"matches,omitempty"`
	// Steps maps a step id to its candidate results, tried in order.
	Steps map[engine.StepID][]StepResult `yaml:"steps,omitempty" json:"steps,omitempty"`
	// SnippetTemplate is a Go text/template rendered for snippet_text.
	SnippetTemplate string `yaml:"snippet_template,omitempty" json:"snippet_template,omitempty"`
}

// StepResult is one recorded outcome for a step id. When, if set, is an
// expr-lang condition over the invocation (args, table, columns, tags,
// scenario, call); the first result whose condition holds is returned.
type StepResult struct {
	Status  Status `yaml:"status"            json:"status" jsonschema:"enum=success,enum=pending,enum=failure"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
	When    string `yaml:"when,omitempty"    json:"when,omitempty"`
}

// LoadFixtureFile reads, decodes and validates a fixture file.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	fx, err := LoadFixture(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

// LoadFixture decodes a fixture and rejects it if validation reports errors.
func LoadFixture(r io.Reader) (*Fixture, error) {
	fx, err := DecodeFixture(r)
	if err != nil {
		return nil, err
	}
	for _, e := range ValidateFixture(fx) {
		if e.Severity == SeverityError {
			return nil, e
		}
	}
	return fx, nil
}

// DecodeFixture strictly decodes fixture YAML; unknown fields are errors.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		if err == io.EOF {
			return &fx, nil
		}
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &fx, nil
}

// GenerateFixtureJSONSchema produces the JSON Schema (Draft 2020-12) of a
// replay fixture document.
func GenerateFixtureJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Fixture{})
	s.ID = "https://github.com/ormasoftchile/cukewire/schemas/fixture-v0.json"
	s.Title = "cukewire replay fixture"
	s.Description = "Pre-recorded step matches, invocation results and snippet template"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal fixture schema: %w", err)
	}
	return data, nil
}
