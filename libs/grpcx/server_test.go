package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func startBufServer(t *testing.T) (*Server, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx, lis)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := NewClient("passthrough:///bufnet", ClientOptions{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func TestHealthServing(t *testing.T) {
	srv, conn := startBufServer(t)
	client := healthpb.NewHealthClient(conn)

	srv.SetServing(true, "availability")
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "availability"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	srv.SetServing(false, "availability")
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestRequestIDEchoed(t *testing.T) {
	srv, conn := startBufServer(t)
	srv.SetServing(true)

	ctx := WithRequestID(context.Background(), "req-42")
	var header metadata.MD
	_, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(RequestIDMetadataKey))
}

func TestCheckHealth(t *testing.T) {
	srv, conn := startBufServer(t)

	srv.SetServing(true, "availability")
	require.NoError(t, CheckHealth(context.Background(), conn, "availability", time.Second))

	srv.SetServing(false, "availability")
	err := CheckHealth(context.Background(), conn, "availability", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SERVING")
}

func TestRecoveryInterceptor(t *testing.T) {
	icpt := UnaryServerRecoveryInterceptor(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Error(t, err)
}
