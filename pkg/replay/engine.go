package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

// ErrUnknownStep is returned when invoking a step id the fixture does not record.
var ErrUnknownStep = errors.New("replay: unknown step")

// DefaultSnippetTemplate renders a pending step definition for an undefined step.
const DefaultSnippetTemplate = `{{upper .Keyword}}("{{.Regex}}") {
    pending();
}
`

// snippetFuncMap provides template functions available in snippet templates.
var snippetFuncMap = template.FuncMap{
	"upper":      strings.ToUpper,
	"lower":      strings.ToLower,
	"trim":       strings.TrimSpace,
	"quoteRegex": regexp.QuoteMeta,
}

// SnippetData is the template data of a snippet template.
type SnippetData struct {
	Keyword string // step keyword, trimmed ("Given")
	Name    string // step text as written
	Regex   string // anchored, escaped regular expression for Name
}

type condition struct {
	source  string
	program *vm.Program
}

type compiledResult struct {
	result engine.InvokeResult
	when   *condition
}

// Engine answers wire commands from a fixture.
type Engine struct {
	matches map[string][]engine.SingleStepMatch
	steps   map[engine.StepID][]compiledResult
	snippet *template.Template

	tags       []string
	inScenario bool
	calls      map[engine.StepID]int
}

var _ engine.Engine = (*Engine)(nil)

// New compiles a fixture into an engine. Conditions and the snippet
// template are compiled up front so bad fixtures fail at startup.
func New(fx *Fixture) (*Engine, error) {
	e := &Engine{
		matches: fx.Matches,
		steps:   make(map[engine.StepID][]compiledResult, len(fx.Steps)),
		calls:   make(map[engine.StepID]int),
	}
	for id, results := range fx.Steps {
		compiled := make([]compiledResult, 0, len(results))
		for i, r := range results {
			cr := compiledResult{result: toInvokeResult(r)}
			if r.When != "" {
				cond, err := compileCondition(r.When)
				if err != nil {
					return nil, fmt.Errorf("step %s result %d: %w", id, i, err)
				}
				cr.when = cond
			}
			compiled = append(compiled, cr)
		}
		e.steps[id] = compiled
	}

	tmpl := fx.SnippetTemplate
	if tmpl == "" {
		tmpl = DefaultSnippetTemplate
	}
	snippet, err := parseSnippetTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	e.snippet = snippet
	return e, nil
}

func parseSnippetTemplate(text string) (*template.Template, error) {
	t, err := template.New("snippet").Funcs(snippetFuncMap).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse snippet template: %w", err)
	}
	return t, nil
}

func toInvokeResult(r StepResult) engine.InvokeResult {
	switch r.Status {
	case StatusPending:
		return engine.Pending(r.Message)
	case StatusFailure:
		return engine.Failure(r.Message)
	default:
		return engine.Success()
	}
}

// BeginScenario records the scenario's tags for use in conditions.
func (e *Engine) BeginScenario(_ context.Context, tags []string) error {
	e.tags = append([]string{}, tags...)
	e.inScenario = true
	return nil
}

// EndScenario clears scenario state.
func (e *Engine) EndScenario(context.Context) error {
	e.tags = nil
	e.inScenario = false
	return nil
}

// StepMatches returns the recorded matches for name, or none.
func (e *Engine) StepMatches(_ context.Context, name string) (engine.MatchResult, error) {
	recorded := e.matches[name]
	matches := make([]engine.SingleStepMatch, len(recorded))
	copy(matches, recorded)
	return engine.MatchResult{Matches: matches}, nil
}

// SnippetText renders the snippet template.
func (e *Engine) SnippetText(_ context.Context, keyword, name string) (string, error) {
	data := SnippetData{
		Keyword: strings.TrimSpace(keyword),
		Name:    name,
		Regex:   "^" + escapeSnippetRegex(name) + "$",
	}
	var buf bytes.Buffer
	if err := e.snippet.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render snippet: %w", err)
	}
	return buf.String(), nil
}

// escapeSnippetRegex escapes regex metacharacters and double quotes so the
// expression can sit inside a string literal.
func escapeSnippetRegex(s string) string {
	return strings.ReplaceAll(regexp.QuoteMeta(s), `"`, `\"`)
}

// Invoke returns the first recorded result for id whose condition holds.
func (e *Engine) Invoke(_ context.Context, id engine.StepID, args *engine.InvokeArgs) (engine.InvokeResult, error) {
	results, ok := e.steps[id]
	if !ok {
		return engine.InvokeResult{}, fmt.Errorf("%w: %s", ErrUnknownStep, id)
	}
	e.calls[id]++
	env := conditionEnv(args, e.tags, e.inScenario, e.calls[id])
	for i, r := range results {
		if r.when == nil {
			return r.result, nil
		}
		out, err := expr.Run(r.when.program, env)
		if err != nil {
			return engine.InvokeResult{}, fmt.Errorf("step %s result %d: eval condition %q: %w", id, i, r.when.source, err)
		}
		if matched, _ := out.(bool); matched {
			return r.result, nil
		}
	}
	return engine.InvokeResult{}, fmt.Errorf("step %s: no recorded result applies", id)
}

// Calls returns how many times id has been invoked.
func (e *Engine) Calls(id engine.StepID) int {
	return e.calls[id]
}
