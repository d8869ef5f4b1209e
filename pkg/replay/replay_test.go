package replay

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

func loadCalculator(t *testing.T) *Engine {
	t.Helper()
	fx, err := LoadFixtureFile(filepath.Join("testdata", "calculator.yaml"))
	if err != nil {
		t.Fatalf("LoadFixtureFile() error: %v", err)
	}
	e, err := New(fx)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func stringArgs(vals ...string) *engine.InvokeArgs {
	args := &engine.InvokeArgs{}
	for _, v := range vals {
		args.AddArg(v)
	}
	return args
}

// ─── fixture loading ────────────────────────────────────────────────

func TestLoadFixtureFile(t *testing.T) {
	fx, err := LoadFixtureFile(filepath.Join("testdata", "calculator.yaml"))
	if err != nil {
		t.Fatalf("LoadFixtureFile() error: %v", err)
	}
	if len(fx.Matches) != 4 {
		t.Errorf("expected 4 matches, got %d", len(fx.Matches))
	}
	if len(fx.Steps) != 4 {
		t.Errorf("expected 4 steps, got %d", len(fx.Steps))
	}
	m := fx.Matches["I have entered 50 into the calculator"][0]
	if m.ID != 1 || m.Source != "steps/calculator.go:21" || m.SubMatches[0].Position != 15 {
		t.Errorf("unexpected match: %+v", m)
	}
}

func TestLoadFixtureRejectsUnknownFields(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("steps:\n  1:\n    - status: success\n      exit_code: 0\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFixtureRejectsInvalidYAML(t *testing.T) {
	if _, err := LoadFixture(strings.NewReader(`{{{invalid`)); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadFixtureRejectsBadStatus(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("steps:\n  1:\n    - status: skipped\n"))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.Phase != "semantic" {
		t.Errorf("phase = %q, want semantic", ve.Phase)
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixtureFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// ─── validation ─────────────────────────────────────────────────────

func TestValidateFixtureDomainRules(t *testing.T) {
	fx := &Fixture{
		Matches: map[string][]engine.SingleStepMatch{
			"orphan": {{ID: 99}},
		},
		Steps: map[engine.StepID][]StepResult{
			1: {{Status: StatusFailure}},
			2: {{Status: StatusSuccess}, {Status: StatusPending}},
			3: {{Status: StatusSuccess, When: "args[0] =="}},
			4: {},
		},
		SnippetTemplate: "{{.Keyword",
	}
	errs := ValidateFixture(fx)
	if !HasErrors(errs) {
		t.Fatal("expected errors")
	}

	want := map[string]string{
		"steps/1/0":        SeverityError,
		"steps/2/0":        SeverityWarning,
		"steps/3/0/when":   SeverityError,
		"steps/4":          SeverityError,
		"matches/orphan/0": SeverityWarning,
		"snippet_template": SeverityError,
	}
	got := make(map[string]string)
	for _, e := range errs {
		if e.Phase == "domain" {
			got[e.Path] = e.Severity
		}
	}
	for path, sev := range want {
		if got[path] != sev {
			t.Errorf("%s: severity = %q, want %q (all: %v)", path, got[path], sev, got)
		}
	}
}

func TestValidateFixtureEmptyIsWarning(t *testing.T) {
	errs := ValidateFixture(&Fixture{})
	if HasErrors(errs) {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(errs) != 1 || errs[0].Severity != SeverityWarning {
		t.Errorf("errs = %v", errs)
	}
}

func TestGenerateFixtureJSONSchema(t *testing.T) {
	data, err := GenerateFixtureJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"matches"`, `"steps"`, `"snippet_template"`, `"failure"`} {
		if !strings.Contains(s, want) {
			t.Errorf("schema missing %s", want)
		}
	}
}

// ─── engine ─────────────────────────────────────────────────────────

func TestEngineStepMatches(t *testing.T) {
	e := loadCalculator(t)
	ctx := context.Background()

	res, err := e.StepMatches(ctx, "I press add")
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 1 || res.Matches[0].ID != 2 {
		t.Errorf("matches = %+v", res.Matches)
	}

	res, err = e.StepMatches(ctx, "I press subtract")
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 0 {
		t.Errorf("expected no matches, got %+v", res.Matches)
	}
}

func TestEngineInvokeConditions(t *testing.T) {
	e := loadCalculator(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   engine.StepID
		args *engine.InvokeArgs
		want engine.InvokeResult
	}{
		{"unconditional", 1, stringArgs("50"), engine.Success()},
		{"first condition holds", 2, stringArgs("divide"), engine.Pending("division is not implemented")},
		{"falls through", 2, stringArgs("add"), engine.Success()},
		{"failure", 3, stringArgs("119"), engine.Failure("expected 120")},
		{"expected value", 3, stringArgs("120"), engine.Success()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Invoke(ctx, tt.id, tt.args)
			if err != nil {
				t.Fatalf("Invoke() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Invoke() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEngineInvokeTable(t *testing.T) {
	e := loadCalculator(t)
	ctx := context.Background()

	args := &engine.InvokeArgs{}
	table := args.TableArg()
	table.AddColumn("number")
	table.AddRow([]string{"50"})
	table.AddRow([]string{"70"})

	got, err := e.Invoke(ctx, 4, args)
	if err != nil {
		t.Fatal(err)
	}
	if got != engine.Success() {
		t.Errorf("Invoke() = %+v", got)
	}

	got, err = e.Invoke(ctx, 4, &engine.InvokeArgs{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != engine.StatusFailure {
		t.Errorf("Invoke() without table = %+v, want failure", got)
	}
}

func TestEngineInvokeUnknownStep(t *testing.T) {
	e := loadCalculator(t)
	_, err := e.Invoke(context.Background(), 42, nil)
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("err = %v, want ErrUnknownStep", err)
	}
}

func TestEngineConditionsSeeScenario(t *testing.T) {
	fx := &Fixture{Steps: map[engine.StepID][]StepResult{
		7: {
			{Status: StatusPending, Message: "wip", When: `"@wip" in tags`},
			{Status: StatusFailure, Message: "outside scenario", When: "!scenario"},
			{Status: StatusSuccess, When: "call > 1"},
			{Status: StatusFailure, Message: "first call"},
		},
	}}
	e, err := New(fx)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if got, _ := e.Invoke(ctx, 7, nil); got != engine.Failure("outside scenario") {
		t.Errorf("outside scenario: %+v", got)
	}
	e.BeginScenario(ctx, []string{"@wip"})
	if got, _ := e.Invoke(ctx, 7, nil); got != engine.Pending("wip") {
		t.Errorf("wip scenario: %+v", got)
	}
	e.EndScenario(ctx)
	e.BeginScenario(ctx, nil)
	if got, _ := e.Invoke(ctx, 7, nil); got != engine.Success() {
		t.Errorf("third call: %+v", got)
	}
	if e.Calls(7) != 3 {
		t.Errorf("Calls(7) = %d, want 3", e.Calls(7))
	}
}

func TestEngineNoApplicableResult(t *testing.T) {
	e, err := New(&Fixture{Steps: map[engine.StepID][]StepResult{
		1: {{Status: StatusSuccess, When: "false"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Invoke(context.Background(), 1, nil); err == nil {
		t.Fatal("expected error when no result applies")
	}
}

func TestNewRejectsBadCondition(t *testing.T) {
	_, err := New(&Fixture{Steps: map[engine.StepID][]StepResult{
		1: {{Status: StatusSuccess, When: "nosuchvar == 1"}},
	}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}

func TestEngineSnippetText(t *testing.T) {
	e, err := New(&Fixture{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.SnippetText(context.Background(), "Given ", `I have "5" cukes (fresh)`)
	if err != nil {
		t.Fatal(err)
	}
	want := "GIVEN(\"^I have \\\"5\\\" cukes \\(fresh\\)$\") {\n    pending();\n}\n"
	if got != want {
		t.Errorf("SnippetText() =\n%q\nwant\n%q", got, want)
	}
}

func TestEngineCustomSnippetTemplate(t *testing.T) {
	e, err := New(&Fixture{SnippetTemplate: "{{lower .Keyword}}: {{.Name}}"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.SnippetText(context.Background(), "Then", "it works")
	if err != nil {
		t.Fatal(err)
	}
	if got != "then: it works" {
		t.Errorf("SnippetText() = %q", got)
	}
}

func TestEngineSnippetTemplateFuncs(t *testing.T) {
	e, err := New(&Fixture{SnippetTemplate: `{{.Name | trim | lower}} /{{quoteRegex (trim .Name)}}/`})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.SnippetText(context.Background(), "When", "  I Pay $5 (now)  ")
	if err != nil {
		t.Fatal(err)
	}
	want := `i pay $5 (now) /I Pay \$5 \(now\)/`
	if got != want {
		t.Errorf("SnippetText() = %q, want %q", got, want)
	}
}
