package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

// Command names understood by the dispatcher.
const (
	CommandBeginScenario = "begin_scenario"
	CommandEndScenario   = "end_scenario"
	CommandStepMatches   = "step_matches"
	CommandInvoke        = "invoke"
	CommandSnippetText   = "snippet_text"
)

// Command runs one wire command against its decoded argument. arg is nil
// when the request carried no argument.
type Command interface {
	Run(ctx context.Context, arg json.RawMessage) (Response, error)
}

// ─── begin_scenario ─────────────────────────────────────────────────

// BeginScenario forwards scenario start, with its tags, to the engine.
type BeginScenario struct {
	Engine engine.Engine
}

// Run decodes the optional {"tags": [...]} argument and starts the scenario.
func (c *BeginScenario) Run(ctx context.Context, arg json.RawMessage) (Response, error) {
	tags := []string{}
	if !isNull(arg) {
		req, err := decodeObject(arg)
		if err != nil {
			return nil, err
		}
		if tags, err = decodeStrings("tags", req["tags"]); err != nil {
			return nil, err
		}
	}
	if err := c.Engine.BeginScenario(ctx, tags); err != nil {
		return nil, fmt.Errorf("begin scenario: %w", err)
	}
	return successResponse(), nil
}

// ─── end_scenario ───────────────────────────────────────────────────

// EndScenario forwards scenario end to the engine. A request carrying a
// non-null "tags" field is refused.
type EndScenario struct {
	Engine engine.Engine
}

// Run ends the scenario unless the argument carries non-null tags.
func (c *EndScenario) Run(ctx context.Context, arg json.RawMessage) (Response, error) {
	if !isNull(arg) {
		req, err := decodeObject(arg)
		if err != nil {
			return nil, err
		}
		if !isNull(req["tags"]) {
			return failResponse(), nil
		}
	}
	if err := c.Engine.EndScenario(ctx); err != nil {
		return nil, fmt.Errorf("end scenario: %w", err)
	}
	return successResponse(), nil
}

// ─── step_matches ───────────────────────────────────────────────────

// StepMatches asks the engine which step definitions match a step name.
type StepMatches struct {
	Engine engine.Engine
}

type stepMatch struct {
	ID     string     `json:"id"`
	Args   []matchArg `json:"args"`
	Source string     `json:"source"`
}

type matchArg struct {
	Val string `json:"val"`
	Pos int    `json:"pos"`
}

// Run looks up the step definitions matching "name_to_match".
func (c *StepMatches) Run(ctx context.Context, arg json.RawMessage) (Response, error) {
	req, err := decodeObject(arg)
	if err != nil {
		return nil, err
	}
	name, err := req.requireString("name_to_match")
	if err != nil {
		return nil, err
	}
	result, err := c.Engine.StepMatches(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("step matches: %w", err)
	}
	return successResponse(formatMatches(result)), nil
}

func formatMatches(result engine.MatchResult) []stepMatch {
	matches := make([]stepMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		args := make([]matchArg, 0, len(m.SubMatches))
		for _, sm := range m.SubMatches {
			args = append(args, matchArg{Val: sm.Value, Pos: sm.Position})
		}
		matches = append(matches, stepMatch{
			ID:     m.ID.String(),
			Args:   args,
			Source: m.Source,
		})
	}
	return matches
}

// ─── snippet_text ───────────────────────────────────────────────────

// SnippetText asks the engine for skeleton code for an undefined step.
type SnippetText struct {
	Engine engine.Engine
}

// Run renders a snippet for "step_keyword" and "step_name".
func (c *SnippetText) Run(ctx context.Context, arg json.RawMessage) (Response, error) {
	req, err := decodeObject(arg)
	if err != nil {
		return nil, err
	}
	keyword, err := req.requireString("step_keyword")
	if err != nil {
		return nil, err
	}
	name, err := req.requireString("step_name")
	if err != nil {
		return nil, err
	}
	text, err := c.Engine.SnippetText(ctx, keyword, name)
	if err != nil {
		return nil, fmt.Errorf("snippet text: %w", err)
	}
	return successResponse(text), nil
}

// ─── invoke ─────────────────────────────────────────────────────────

// Invoke runs a step by id with its positional and table arguments.
type Invoke struct {
	Engine engine.Engine
}

// Run invokes step "id" with "args" and maps the result to a response.
func (c *Invoke) Run(ctx context.Context, arg json.RawMessage) (Response, error) {
	req, err := decodeObject(arg)
	if err != nil {
		return nil, err
	}
	idText, err := req.requireString("id")
	if err != nil {
		return nil, err
	}
	id, err := engine.ParseStepID(idText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	args, err := decodeInvokeArgs(req["args"])
	if err != nil {
		return nil, err
	}
	result, err := c.Engine.Invoke(ctx, id, args)
	if err != nil {
		return nil, fmt.Errorf("invoke step %s: %w", id, err)
	}
	return formatInvokeResult(result), nil
}

// decodeInvokeArgs builds the positional arguments of an invocation. Strings
// are plain arguments; arrays are table rows, all collected into one table.
func decodeInvokeArgs(raw json.RawMessage) (*engine.InvokeArgs, error) {
	if k := kindOf(raw); k != kindArray {
		return nil, fmt.Errorf("%w: args: want array, got %s", ErrInvalidArgument, k)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: args: %v", ErrInvalidArgument, err)
	}
	args := &engine.InvokeArgs{}
	for i, elem := range elems {
		switch k := kindOf(elem); k {
		case kindString:
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				return nil, fmt.Errorf("%w: args[%d]: %v", ErrInvalidArgument, i, err)
			}
			args.AddArg(s)
		case kindArray:
			if err := fillTable(args.TableArg(), elem); err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("%w: args[%d]: want string or table, got %s", ErrInvalidArgument, i, k)
		}
	}
	return args, nil
}

// fillTable appends a table argument: the first row is the header, the
// rest are data rows.
func fillTable(table *engine.Table, raw json.RawMessage) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("%w: table: %v", ErrInvalidArgument, err)
	}
	for i, row := range rows {
		cells, err := decodeStrings(fmt.Sprintf("table row %d", i), row)
		if err != nil {
			return err
		}
		if i == 0 {
			for _, col := range cells {
				table.AddColumn(col)
			}
			continue
		}
		table.AddRow(cells)
	}
	return nil
}

func formatInvokeResult(result engine.InvokeResult) Response {
	switch result.Status {
	case engine.StatusSuccess:
		return successResponse()
	case engine.StatusPending:
		if result.Description == "" {
			return pendingResponse()
		}
		return pendingResponse(result.Description)
	default:
		return failResponse(map[string]string{"message": result.Description})
	}
}

// decodeStrings decodes a JSON array whose elements must all be strings.
func decodeStrings(field string, raw json.RawMessage) ([]string, error) {
	if k := kindOf(raw); k != kindArray {
		return nil, fmt.Errorf("%w: %s: want array, got %s", ErrInvalidArgument, field, k)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, field, err)
	}
	out := make([]string, 0, len(elems))
	for i, elem := range elems {
		if k := kindOf(elem); k != kindString {
			return nil, fmt.Errorf("%w: %s[%d]: want string, got %s", ErrInvalidArgument, field, i, k)
		}
		var s string
		if err := json.Unmarshal(elem, &s); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidArgument, field, i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
