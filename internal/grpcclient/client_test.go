package grpcclient

import (
	"context"
	"errors"
	"net"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/agrilens/internal/intake"
	"github.com/example/agrilens/internal/outcome"
)

// startAnalyzer serves reply for every Select call and records the last request.
func startAnalyzer(t *testing.T, reply func(*structpb.Struct) (*structpb.Struct, error)) (*Analyzer, *health.Server) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	healthSrv := health.NewServer()
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		if method != SelectMethod {
			return status.Errorf(codes.Unimplemented, "unknown method %s", method)
		}
		in := &structpb.Struct{}
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		out, err := reply(in)
		if err != nil {
			return err
		}
		return stream.SendMsg(out)
	}))
	healthpb.RegisterHealthServer(srv, healthSrv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	analyzer, err := Dial(context.Background(), "bufnet", zap.NewNop(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = analyzer.Close() })
	return analyzer, healthSrv
}

func labelReply(label string) func(*structpb.Struct) (*structpb.Struct, error) {
	return func(*structpb.Struct) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]any{"label": label})
	}
}

func TestSelectSendsAssetAndMapsLabel(t *testing.T) {
	var got *structpb.Struct
	analyzer, _ := startAnalyzer(t, func(in *structpb.Struct) (*structpb.Struct, error) {
		got = in
		return structpb.NewStruct(map[string]any{"label": "B"})
	})

	asset := &intake.Asset{ID: "asset-1", MediaType: "image/png", SHA1: "abc", Data: []byte{1, 2, 3}}
	result, err := analyzer.Select(context.Background(), outcome.Request{Kind: outcome.KindGrade, Asset: asset})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if result.Label() != "B" || result.Grade.PriceMultiplier != 1.15 {
		t.Fatalf("unexpected outcome: %+v", result.Grade)
	}

	fields := got.GetFields()
	if fields["kind"].GetStringValue() != "grade" || fields["sha1"].GetStringValue() != "abc" {
		t.Fatalf("unexpected request: %v", fields)
	}
	if fields["image"].GetStringValue() != "AQID" {
		t.Fatalf("expected base64 image, got %q", fields["image"].GetStringValue())
	}
}

func TestSelectRejectsUnknownLabel(t *testing.T) {
	analyzer, _ := startAnalyzer(t, labelReply("Late Blight"))
	_, err := analyzer.Select(context.Background(), outcome.Request{Kind: outcome.KindDisease})
	if !errors.Is(err, outcome.ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestSelectRejectsMissingLabel(t *testing.T) {
	analyzer, _ := startAnalyzer(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	})
	_, err := analyzer.Select(context.Background(), outcome.Request{Kind: outcome.KindDisease})
	if !errors.Is(err, ErrMissingLabel) {
		t.Fatalf("expected ErrMissingLabel, got %v", err)
	}
}

func TestSelectPropagatesServerError(t *testing.T) {
	analyzer, _ := startAnalyzer(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "model warming up")
	})
	_, err := analyzer.Select(context.Background(), outcome.Request{Kind: outcome.KindDisease})
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestPing(t *testing.T) {
	analyzer, healthSrv := startAnalyzer(t, labelReply("Healthy"))
	if err := analyzer.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := analyzer.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail when not serving")
	}
}
