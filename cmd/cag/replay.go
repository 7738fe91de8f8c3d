package main

import (
	"fmt"

	"github.com/danielpatrickdp/cag-verifier/internal/replay"
	"github.com/spf13/cobra"
)

func newReplayCmd(flags *rootFlags) *cobra.Command {
	var fixture string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a fixture against scripted model output and report drift",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := flags.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			f, err := replay.LoadFixture(fixture)
			if err != nil {
				return err
			}
			results := replay.Run(cmd.Context(), f, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-36s  %-9s  %6s  %s\n", "Case", "Decision", "Conf", "Status")
			fmt.Fprintf(out, "%-36s+-%-9s+-%6s+-%s\n", "------------------------------------", "---------", "------", "------")
			for _, r := range results {
				status := "ok"
				switch {
				case r.Err != nil:
					status = "error: " + r.Err.Error()
				case r.Nondeterministic:
					status = "NONDETERMINISTIC"
				case len(r.Mismatches) > 0:
					status = "FAIL: " + r.Mismatches[0]
				}
				fmt.Fprintf(out, "%-36s  %-9s  %6.2f  %s\n", r.Name, r.Result.Decision, r.Result.Confidence, status)
			}

			s := replay.Summarize(results)
			fmt.Fprintf(out, "\n%d cases, %d passed, %d failed, %d nondeterministic\n", s.Total, s.Passed, s.Failed, s.Nondeterministic)
			if s.Failed > 0 {
				return fmt.Errorf("%d of %d cases failed", s.Failed, s.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "path to fixture JSON")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}
