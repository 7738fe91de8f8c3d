package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// newStubGeneratorCmd serves scripted replies over the generator gRPC
// contract, for running the API locally without a model.
func newStubGeneratorCmd(flags *rootFlags) *cobra.Command {
	var (
		addr    string
		replies string
	)
	cmd := &cobra.Command{
		Use:   "stub-generator",
		Short: "Serve scripted generator replies over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := flags.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			data, err := os.ReadFile(replies)
			if err != nil {
				return fmt.Errorf("read replies: %w", err)
			}
			var rs []generate.Reply
			if err := json.Unmarshal(data, &rs); err != nil {
				return fmt.Errorf("parse replies %s: %w", replies, err)
			}

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			srv := grpc.NewServer()
			generate.RegisterGRPCServer(srv, generate.NewScript(rs...))

			go func() {
				<-cmd.Context().Done()
				srv.GracefulStop()
			}()
			logger.Info("stub generator listening", zap.String("addr", lis.Addr().String()), zap.Int("replies", len(rs)))
			return srv.Serve(lis)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "listen address")
	cmd.Flags().StringVar(&replies, "replies", "", "path to a JSON array of replies")
	_ = cmd.MarkFlagRequired("replies")
	return cmd
}
