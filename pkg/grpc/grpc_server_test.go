package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/iot"
	_ "liyu1981.xyz/home-state-monitor/pkg/testing"
)

const bufSize = 1024 * 1024

type fakeIngress struct {
	mu    sync.Mutex
	state iot.IngressState
}

func (f *fakeIngress) State() iot.IngressState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeIngress) set(s iot.IngressState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

type brokenStore struct{}

func (brokenStore) Ping(context.Context) error { return fmt.Errorf("database is closed") }

func startTestServer(t *testing.T, hs *HealthServer) healthpb.HealthClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)

	interceptor := hs.CreateRateLimitInterceptor([]proto.Message{
		&healthpb.HealthCheckRequest{},
	})
	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	hs.Register(server)

	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, s string) (net.Conn, error) {
			return listener.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(db.UseNamedMemorySqliteDialector(uuid.NewString()))
	require.NoError(t, err)
	return store
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealth_StoreAndIngress(t *testing.T) {
	common.SetTestLoggerNop()

	ingress := &fakeIngress{state: iot.IngressReconciling}
	hs := NewHealthServer(openStore(t), ingress)
	client := startTestServer(t, hs)

	hs.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceStore))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceIngress))

	ingress.set(iot.IngressRegistered)
	hs.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceIngress))

	ingress.set(iot.IngressFailed)
	hs.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceIngress))
}

func TestHealth_EdgeCases(t *testing.T) {
	common.SetTestLoggerNop()

	{
		// push disabled: ingress is always serving
		hs := NewHealthServer(openStore(t), nil)
		client := startTestServer(t, hs)
		hs.Refresh(context.Background())
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceIngress))
	}

	{
		hs := NewHealthServer(brokenStore{}, nil)
		client := startTestServer(t, hs)
		hs.Refresh(context.Background())
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceStore))
	}

	{
		hs := NewHealthServer(openStore(t), nil)
		client := startTestServer(t, hs)
		hs.Refresh(context.Background())
		_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "unknown"})
		require.Error(t, err)
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.NotFound, st.Code())
	}
}

func TestHealth_WatchStopsOnCancel(t *testing.T) {
	common.SetTestLoggerNop()

	hs := NewHealthServer(openStore(t), nil)
	client := startTestServer(t, hs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hs.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceStore})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}

	// shutdown flips everything to NOT_SERVING
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceStore))
}

func TestRateLimitInterceptor(t *testing.T) {
	common.SetTestLoggerNop()

	hs := NewHealthServer(openStore(t), nil)
	hs.RateLimiterStore = iot.NewRateLimiterStore(0.001, 2)
	client := startTestServer(t, hs)
	hs.Refresh(context.Background())

	// first 2 requests pass on the burst
	for i := range 2 {
		_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		require.NoError(t, err, "expected request %d to pass", i+1)
	}

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.Error(t, err, "expected third request to be rate limited")

	st, ok := status.FromError(err)
	require.True(t, ok, "expected gRPC status error")
	require.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestCheckLimiter_NoStore(t *testing.T) {
	hs := NewHealthServer(nil, nil)
	assert.Nil(t, hs.GetLimiter("any"))
	for range 10 {
		assert.True(t, hs.CheckLimiter("any"))
	}
}
