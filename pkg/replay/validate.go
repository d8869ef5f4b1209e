package replay

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

// Validation severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError is a single fixture finding with its location.
type ValidationError struct {
	Phase    string `json:"phase"` // semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFixture runs schema validation followed by domain rules and
// returns every finding, errors and warnings alike.
func ValidateFixture(fx *Fixture) []*ValidationError {
	errs := validateSemantic(fx)
	return append(errs, validateDomain(fx)...)
}

// HasErrors reports whether any finding is an error.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

func semanticError(format string, args ...any) []*ValidationError {
	return []*ValidationError{{
		Phase:    "semantic",
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	}}
}

// validateSemantic checks the fixture against its generated JSON Schema.
func validateSemantic(fx *Fixture) []*ValidationError {
	data, err := json.Marshal(fx)
	if err != nil {
		return semanticError("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateFixtureJSONSchema()
	if err != nil {
		return semanticError("generate schema: %v", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semanticError("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("fixture-v0.json", schemaDoc); err != nil {
		return semanticError("add schema resource: %v", err)
	}
	sch, err := c.Compile("fixture-v0.json")
	if err != nil {
		return semanticError("compile schema: %v", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return semanticError("unmarshal document: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semanticError("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: SeverityError,
			})
		}
		return errs
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// validateDomain applies the rules a schema cannot express.
func validateDomain(fx *Fixture) []*ValidationError {
	var errs []*ValidationError
	add := func(severity, path, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if len(fx.Matches) == 0 && len(fx.Steps) == 0 {
		add(SeverityWarning, "", "fixture has no matches and no steps")
	}

	for _, id := range slices.Sorted(maps.Keys(fx.Steps)) {
		results := fx.Steps[id]
		if len(results) == 0 {
			add(SeverityError, fmt.Sprintf("steps/%s", id), "step has no results")
		}
		for i, r := range results {
			path := fmt.Sprintf("steps/%s/%d", id, i)
			if r.Status == StatusFailure && r.Message == "" {
				add(SeverityError, path, "failure result requires a message")
			}
			if r.When != "" {
				if _, err := compileCondition(r.When); err != nil {
					add(SeverityError, path+"/when", "%v", err)
				}
			} else if i < len(results)-1 {
				add(SeverityWarning, path, "unconditional result hides %d later result(s)", len(results)-1-i)
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(fx.Matches)) {
		for i, m := range fx.Matches[name] {
			if _, ok := fx.Steps[m.ID]; !ok {
				add(SeverityWarning, fmt.Sprintf("matches/%s/%d", name, i),
					"step %s has no recorded results; invoking it will fail", m.ID)
			}
		}
	}

	if fx.SnippetTemplate != "" {
		if _, err := parseSnippetTemplate(fx.SnippetTemplate); err != nil {
			add(SeverityError, "snippet_template", "%v", err)
		}
	}
	return errs
}

// conditionEnv is the expression environment of a step result condition.
func conditionEnv(args *engine.InvokeArgs, tags []string, inScenario bool, call int) map[string]any {
	env := map[string]any{
		"args":     []string{},
		"table":    []map[string]string{},
		"columns":  []string{},
		"tags":     []string{},
		"scenario": inScenario,
		"call":     call,
	}
	if args != nil {
		env["args"] = args.Strings()
		if t := args.Table(); t != nil {
			env["table"] = t.Hashes()
			env["columns"] = append([]string{}, t.Columns()...)
		}
	}
	if tags != nil {
		env["tags"] = tags
	}
	return env
}

func compileCondition(when string) (*condition, error) {
	program, err := expr.Compile(when, expr.Env(conditionEnv(nil, nil, false, 0)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", when, err)
	}
	return &condition{source: when, program: program}, nil
}
