package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/cukewire/pkg/trace"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Session transcript operations",
}

var transcriptVerifyCmd = &cobra.Command{
	Use:   "verify [transcript.jsonl]",
	Short: "Verify transcript integrity (hash chain + request/response pairing)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscriptVerify,
}

func runTranscriptVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	result, err := trace.VerifyFile(args[0])
	if err != nil {
		return err
	}
	if !result.Valid {
		fmt.Fprintf(out, "✗ Chain broken at event %d\n", result.BrokenAt)
		if result.Error != "" {
			fmt.Fprintf(out, "  %s\n", result.Error)
		}
		return fmt.Errorf("transcript verification failed")
	}

	fmt.Fprintf(out, "✓ Chain integrity: %d events, no breaks\n", result.EventCount)
	fmt.Fprintf(out, "  %d session(s), %d request(s), %d response(s)\n",
		result.Sessions, result.Requests, result.Responses)
	return nil
}

func init() {
	transcriptCmd.AddCommand(transcriptVerifyCmd)
}
