package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/spf13/cobra"
)

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	var (
		in       string
		generate bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one request read from a JSON file and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			var req pipeline.Request
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse request %s: %w", in, err)
			}

			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			gen, closeGen, err := newGenerator(cfg, logger)
			if err != nil {
				return err
			}
			defer closeGen() //nolint:errcheck

			p := newPipeline(cfg, gen, nil, logger)
			run := p.Verify
			if generate {
				run = p.Answer
			}
			res, err := run(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "path to request JSON")
	cmd.Flags().BoolVar(&generate, "generate", false, "draft the answer with the generator instead of using the request's draft")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
