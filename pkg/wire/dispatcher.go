package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ormasoftchile/cukewire/pkg/engine"
)

const tracerName = "github.com/ormasoftchile/cukewire/pkg/wire"

// Dispatcher maps command names to commands and turns every request into
// exactly one response. Nothing a request does escapes as an error.
type Dispatcher struct {
	commands map[string]Command
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewDispatcher builds the command table for eng. The table is fixed for the
// life of the dispatcher. A nil logger discards log output.
func NewDispatcher(eng engine.Engine, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		commands: map[string]Command{
			CommandBeginScenario: &BeginScenario{Engine: eng},
			CommandEndScenario:   &EndScenario{Engine: eng},
			CommandStepMatches:   &StepMatches{Engine: eng},
			CommandInvoke:        &Invoke{Engine: eng},
			CommandSnippetText:   &SnippetText{Engine: eng},
		},
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Commands returns the registered command names.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	return names
}

// Dispatch decodes one request, runs its command and returns the response.
// Malformed requests, unknown commands, argument errors, engine errors and
// panics all yield the bare ["fail"] response.
func (d *Dispatcher) Dispatch(ctx context.Context, request json.RawMessage) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("command panicked", "panic", fmt.Sprint(r))
			resp = failResponse()
		}
	}()

	name, arg, err := parseRequest(request)
	if err != nil {
		d.logger.Warn("rejected request", "error", err)
		return failResponse()
	}
	cmd, ok := d.commands[name]
	if !ok {
		d.logger.Warn("rejected request", "command", name, "error", ErrUnknownCommand)
		return failResponse()
	}

	ctx, span := d.tracer.Start(ctx, "wire."+name,
		trace.WithAttributes(attribute.String("wire.command", name)))
	defer span.End()

	resp, err = d.run(ctx, cmd, arg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("command failed", "command", name, "error", err)
		return failResponse()
	}
	span.SetAttributes(attribute.String("wire.status", resp.Status()))
	d.logger.Debug("command completed", "command", name, "status", resp.Status())
	return resp
}

// run converts a command panic into an error so it is recorded on the span.
func (d *Dispatcher) run(ctx context.Context, cmd Command, arg json.RawMessage) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%w: %v", ErrCommandPanic, r)
		}
	}()
	return cmd.Run(ctx, arg)
}
