package generate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region wire
// The generator service exchanges google.protobuf.Struct messages:
//
//	request:  {"prompt": string, "context": string}
//	response: {"text": string}
const (
	generatorService = "cag.v1.Generator"
	generateMethod   = "/" + generatorService + "/Generate"
)

// #endregion wire

// #region client

// GRPCClient calls a remote inference service's Generate RPC.
type GRPCClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// NewGRPCClient connects to addr. With no options the connection is insecure,
// for sidecar inference services on localhost.
func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, cc: conn}, nil
}

// NewGRPCClientWithConn wraps an existing connection.
func NewGRPCClientWithConn(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Close shuts down a connection opened by NewGRPCClient.
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Generate sends prompt and context and returns the response text.
func (c *GRPCClient) Generate(ctx context.Context, prompt, evidence string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"prompt":  prompt,
		"context": evidence,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, generateMethod, req, resp); err != nil {
		return "", fmt.Errorf("generate rpc: %w", err)
	}
	text := strings.TrimSpace(resp.GetFields()["text"].GetStringValue())
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// #endregion client

// #region server

var generatorServiceDesc = grpc.ServiceDesc{
	ServiceName: generatorService,
	HandlerType: (*Generator)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cag/v1/generator.proto",
}

// RegisterGRPCServer exposes g as the Generator service on s.
func RegisterGRPCServer(s *grpc.Server, g Generator) {
	s.RegisterService(&generatorServiceDesc, g)
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		fields := req.(*structpb.Struct).GetFields()
		text, err := srv.(Generator).Generate(ctx, fields["prompt"].GetStringValue(), fields["context"].GetStringValue())
		if err != nil {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		out, err := structpb.NewStruct(map[string]any{"text": text})
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	return interceptor(ctx, in, info, call)
}

// #endregion server
