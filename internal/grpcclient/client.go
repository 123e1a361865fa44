package grpcclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/agrilens/internal/logging"
	"github.com/example/agrilens/internal/outcome"
)

// SelectMethod is the full gRPC method name of the remote analyzer.
const SelectMethod = "/agrilens.v1.Analyzer/Select"

const dialTimeout = 5 * time.Second

// ErrMissingLabel is returned when the analyzer answers without a label.
var ErrMissingLabel = errors.New("analyzer response has no label")

// Analyzer is an outcome.Selector backed by a remote gRPC service.
type Analyzer struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

var _ outcome.Selector = (*Analyzer)(nil)

// Dial connects to the analyzer at addr and blocks until the connection is up.
func Dial(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Analyzer, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_analyzer", "", err)
		logger.Error("failed to dial analyzer", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &Analyzer{conn: conn, logger: logger.Named("analyzer")}, nil
}

// Close releases the underlying connection.
func (a *Analyzer) Close() error {
	return a.conn.Close()
}

// Ping reports whether the analyzer is serving according to the gRPC health service.
func (a *Analyzer) Ping(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(a.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return logging.NewOperationError("grpcclient.ping", "", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return logging.NewOperationError("grpcclient.ping", "", fmt.Errorf("analyzer status %s", resp.GetStatus()))
	}
	return nil
}

// Select asks the analyzer for a label and resolves it to the canned outcome.
func (a *Analyzer) Select(ctx context.Context, req outcome.Request) (*outcome.Outcome, error) {
	fields := map[string]any{"kind": string(req.Kind)}
	assetID := ""
	if req.Asset != nil {
		assetID = req.Asset.ID
		fields["media_type"] = req.Asset.MediaType
		fields["sha1"] = req.Asset.SHA1
		fields["image"] = base64.StdEncoding.EncodeToString(req.Asset.Data)
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.select", assetID, err)
	}

	out := &structpb.Struct{}
	if err := a.conn.Invoke(ctx, SelectMethod, in, out); err != nil {
		wrapped := logging.NewOperationError("grpcclient.select", assetID, err)
		a.logger.Error("analyzer call failed", zap.Error(wrapped), zap.String("kind", string(req.Kind)))
		return nil, wrapped
	}

	label := out.GetFields()["label"].GetStringValue()
	if label == "" {
		return nil, logging.NewOperationError("grpcclient.select", assetID, ErrMissingLabel)
	}
	result, err := outcome.Lookup(req.Kind, label)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.select", assetID, err)
	}
	return result, nil
}
