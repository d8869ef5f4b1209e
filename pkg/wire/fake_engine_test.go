package wire

import (
	"context"
	"errors"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

var errUnknownStep = errors.New("unknown step")

// fakeEngine records every call and answers from canned results.
type fakeEngine struct {
	beginTags  [][]string
	endCalls   int
	matchNames []string
	matches    map[string]engine.MatchResult
	snippets   []string
	results    map[engine.StepID]engine.InvokeResult
	invoked    []engine.StepID
	lastArgs   *engine.InvokeArgs
	panicOn    string
	beginErr   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		matches: make(map[string]engine.MatchResult),
		results: make(map[engine.StepID]engine.InvokeResult),
	}
}

func (f *fakeEngine) BeginScenario(_ context.Context, tags []string) error {
	f.beginTags = append(f.beginTags, tags)
	return f.beginErr
}

func (f *fakeEngine) EndScenario(context.Context) error {
	f.endCalls++
	return nil
}

func (f *fakeEngine) StepMatches(_ context.Context, name string) (engine.MatchResult, error) {
	if name == f.panicOn {
		panic("step matcher exploded")
	}
	f.matchNames = append(f.matchNames, name)
	return f.matches[name], nil
}

func (f *fakeEngine) SnippetText(_ context.Context, keyword, name string) (string, error) {
	f.snippets = append(f.snippets, keyword+"|"+name)
	return keyword + "(\"^" + name + "$\") { pending() }", nil
}

func (f *fakeEngine) Invoke(_ context.Context, id engine.StepID, args *engine.InvokeArgs) (engine.InvokeResult, error) {
	f.invoked = append(f.invoked, id)
	f.lastArgs = args
	r, ok := f.results[id]
	if !ok {
		return engine.InvokeResult{}, errUnknownStep
	}
	return r, nil
}
