package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-call-transcriber/internal/observability/metrics"
)

func TestUnaryClientInterceptor_PassesThroughAndRecords(t *testing.T) {
	m := metrics.DefaultMetrics
	method := "/google.cloud.speech.v1.Speech/Recognize"
	before := testutil.CollectAndCount(m.RPCLatency)

	wantErr := status.Error(codes.Unauthenticated, "bad token")
	called := false
	invoker := func(ctx context.Context, m string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		called = true
		if m != method {
			t.Errorf("expected method %s, got %s", method, m)
		}
		return wantErr
	}

	err := UnaryClientInterceptor(m)(context.Background(), method, nil, nil, nil, invoker)
	if err != wantErr {
		t.Errorf("expected invoker error to pass through, got %v", err)
	}
	if !called {
		t.Error("expected invoker to be called")
	}
	if after := testutil.CollectAndCount(m.RPCLatency); after < before || after == 0 {
		t.Errorf("expected rpc latency series to be recorded, got %d", after)
	}
}
