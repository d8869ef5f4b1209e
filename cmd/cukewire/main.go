// Package main provides the cukewire CLI entrypoint:
//
//	cukewire serve               (wire protocol on stdin/stdout)
//	cukewire validate <fixture>
//	cukewire schema              (exports fixture JSON Schema)
//	cukewire transcript verify <file>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/cukewire/pkg/replay"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "cukewire",
	Short:        "Cucumber wire protocol server",
	SilenceUsage: true,
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cukewire %s (%s)\n", version, commit)
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [fixture.yaml]",
	Short: "Validate a replay fixture (schema + domain rules)",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	fx, err := replay.DecodeFixture(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var errs, warnings []*replay.ValidationError
	for _, e := range replay.ValidateFixture(fx) {
		if e.Severity == replay.SeverityWarning {
			warnings = append(warnings, e)
		} else {
			errs = append(errs, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(errOut, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(errOut, "    at: %s\n", w.Path)
		}
	}
	if len(errs) > 0 {
		fmt.Fprintf(errOut, "Validation failed: %d error(s)\n\n", len(errs))
		for i, e := range errs {
			fmt.Fprintf(errOut, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(errOut, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	fmt.Fprintf(out, "✓ %s is valid (%d step texts, %d steps)\n", path, len(fx.Matches), len(fx.Steps))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the replay fixture JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := replay.GenerateFixtureJSONSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(versionCmd)
}
