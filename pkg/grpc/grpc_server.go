package grpc

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/iot"
)

const (
	ServiceStore   = "store"
	ServiceIngress = "ingress"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type IngressStater interface {
	State() iot.IngressState
}

// HealthServer publishes store and ingress readiness through the standard
// grpc health service. The overall status ("") follows the store.
type HealthServer struct {
	Store            Pinger
	Ingress          IngressStater
	RateLimiterStore *iot.RateLimiterStore

	health *health.Server
}

// NewHealthServer builds the health service. A nil ingress means push
// delivery is disabled.
func NewHealthServer(store Pinger, ingress IngressStater) *HealthServer {
	return &HealthServer{
		Store:   store,
		Ingress: ingress,
		health:  health.NewServer(),
	}
}

func (hs *HealthServer) GetLimiter(key string) *rate.Limiter {
	if hs.RateLimiterStore == nil {
		return nil
	} else {
		return hs.RateLimiterStore.GetLimiter(key)
	}
}

func (hs *HealthServer) CheckLimiter(key string) bool {
	limiter := hs.GetLimiter(key)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (hs *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, hs.health)
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Refresh re-evaluates every service status once.
func (hs *HealthServer) Refresh(ctx context.Context) {
	storeOK := hs.Store != nil && hs.Store.Ping(ctx) == nil
	hs.health.SetServingStatus(ServiceStore, servingStatus(storeOK))
	hs.health.SetServingStatus("", servingStatus(storeOK))

	ingressOK := hs.Ingress == nil || hs.Ingress.State() == iot.IngressRegistered
	hs.health.SetServingStatus(ServiceIngress, servingStatus(ingressOK))
}

// Watch refreshes on every tick until ctx is done, then reports NOT_SERVING
// for all services.
func (hs *HealthServer) Watch(ctx context.Context, every time.Duration) {
	logger := common.GetLoggerWith(common.LoggerNameGrpcServer)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	hs.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			hs.health.Shutdown()
			logger.Info("Health watch stopped")
			return
		case <-ticker.C:
			hs.Refresh(ctx)
		}
	}
}
