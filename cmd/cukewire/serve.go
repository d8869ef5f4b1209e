package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/cukewire/pkg/config"
	"github.com/ormasoftchile/cukewire/pkg/logger"
	"github.com/ormasoftchile/cukewire/pkg/replay"
	"github.com/ormasoftchile/cukewire/pkg/telemetry"
	"github.com/ormasoftchile/cukewire/pkg/trace"
	"github.com/ormasoftchile/cukewire/pkg/wire"
)

var (
	serveConfig     string
	serveFixture    string
	serveTranscript string
	serveLogLevel   string
	serveLogFormat  string
	serveTraceFile  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wire protocol on stdin/stdout",
	Long: `Reads one JSON request per value from stdin and writes one JSON response
line per request to stdout. Logs go to stderr.

Settings come from cukewire.yaml (found by walking up from the working
directory, or given with --config); flags override the file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(serveConfig)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("fixture") {
		cfg.Fixture = serveFixture
	} else {
		cfg.Fixture = cfg.Resolve(cfg.Fixture)
	}
	if flags.Changed("transcript") {
		cfg.Transcript = serveTranscript
	} else {
		cfg.Transcript = cfg.Resolve(cfg.Transcript)
	}
	if flags.Changed("trace-file") {
		cfg.Telemetry.TraceFile = serveTraceFile
	} else {
		cfg.Telemetry.TraceFile = cfg.Resolve(cfg.Telemetry.TraceFile)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = serveLogFormat
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
}

// loadConfig reads an explicit manifest, or discovers one from the working
// directory, falling back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Discover(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// serve runs one wire session with paths in cfg already resolved.
func serve(ctx context.Context, cfg *config.Config, in io.Reader, out, logOut io.Writer) (err error) {
	log, err := logger.New(logOut, cfg.LogLevel(), cfg.Log.Format)
	if err != nil {
		return err
	}
	if cfg.Fixture == "" {
		return errors.New("no fixture configured: set fixture in cukewire.yaml or pass --fixture")
	}

	shutdown, err := telemetry.Init(cfg.Telemetry.ServiceName, cfg.Telemetry.TraceFile)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn("telemetry shutdown", "error", serr)
		}
	}()

	fx, err := replay.LoadFixtureFile(cfg.Fixture)
	if err != nil {
		return err
	}
	eng, err := replay.New(fx)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Fixture, err)
	}

	dispatcher := wire.NewDispatcher(eng, log)
	server := wire.NewServer(dispatcher, log)

	if cfg.Transcript != "" {
		tw, terr := trace.NewFileWriter(cfg.Transcript, "")
		if terr != nil {
			return terr
		}
		defer tw.Close()
		log = log.With("session", tw.SessionID())
		if serr := tw.EmitSessionStart(map[string]any{
			"fixture": cfg.Fixture,
			"version": version,
		}); serr != nil {
			log.Warn("record session start", "error", serr)
		}
		defer func() {
			if terr := tw.EmitSessionEnd(err); terr != nil {
				log.Warn("record session end", "error", terr)
			}
		}()
		server.Recorder = tw
	}

	log.Info("serving", "fixture", cfg.Fixture, "transcript", cfg.Transcript,
		slog.Any("commands", dispatcher.Commands()))
	err = server.Serve(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		log.Info("session ended", "reason", "interrupted")
		return nil
	}
	if err != nil {
		log.Error("session ended", "error", err)
		return err
	}
	log.Info("session ended")
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to cukewire.yaml (default: discovered)")
	serveCmd.Flags().StringVar(&serveFixture, "fixture", "", "Replay fixture YAML")
	serveCmd.Flags().StringVar(&serveTranscript, "transcript", "", "Append a hash-chained session transcript to this JSONL file")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "", "Log format: json or text")
	serveCmd.Flags().StringVar(&serveTraceFile, "trace-file", "", "Export OpenTelemetry spans to this file")
}
