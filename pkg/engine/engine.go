// Package engine defines the narrow interface between the wire protocol and a
// step-execution engine, together with the value types that cross it.
package engine

import (
	"context"
	"fmt"
	"strconv"
)

// Engine is the step-execution collaborator driven by wire commands.
// Calls are synchronous; the wire server never issues two at once.
type Engine interface {
	BeginScenario(ctx context.Context, tags []string) error
	EndScenario(ctx context.Context) error
	StepMatches(ctx context.Context, name string) (MatchResult, error)
	SnippetText(ctx context.Context, keyword, name string) (string, error)
	Invoke(ctx context.Context, id StepID, args *InvokeArgs) (InvokeResult, error)
}

// StepID identifies a step definition. On the wire it travels as a decimal string.
type StepID uint32

// ParseStepID parses the wire form of a step id.
func ParseStepID(s string) (StepID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse step id %q: %w", s, err)
	}
	return StepID(n), nil
}

func (id StepID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SubMatch is one captured substring of a step name and its offset.
type SubMatch struct {
	Value    string `yaml:"val"  json:"val"`
	Position int    `yaml:"pos"  json:"pos"`
}

// SingleStepMatch is one step definition matching a step name.
type SingleStepMatch struct {
	ID         StepID     `yaml:"id"                json:"id"`
	SubMatches []SubMatch `yaml:"args,omitempty"    json:"args,omitempty"`
	Source     string     `yaml:"source,omitempty"  json:"source,omitempty"`
}

// MatchResult holds every step definition that matched, in engine order.
type MatchResult struct {
	Matches []SingleStepMatch
}

// Len returns the number of matches.
func (r MatchResult) Len() int { return len(r.Matches) }
