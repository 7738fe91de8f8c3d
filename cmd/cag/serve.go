package main

import (
	"github.com/danielpatrickdp/cag-verifier/internal/audit"
	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/danielpatrickdp/cag-verifier/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the verification API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if addr != "" {
				cfg.Server.Addr = addr
			}

			gen, closeGen, err := newGenerator(cfg, logger)
			if err != nil {
				return err
			}
			defer closeGen() //nolint:errcheck

			var rec pipeline.Recorder
			if cfg.Storage.DBPath != "" {
				store, err := audit.Open(cfg.Storage.DBPath, logger)
				if err != nil {
					return err
				}
				defer store.Close()
				rec = store
			}

			logger.Info("starting",
				zap.String("addr", cfg.Server.Addr),
				zap.String("generator", cfg.Generator.Provider),
				zap.String("db", cfg.Storage.DBPath),
				zap.Duration("timeout", cfg.Timeout))

			p := newPipeline(cfg, gen, rec, logger)
			return server.New(p, logger).Run(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
