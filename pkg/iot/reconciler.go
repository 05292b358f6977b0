package iot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

type IngressState string

const (
	IngressUnregistered IngressState = "unregistered"
	IngressTunnelReady  IngressState = "tunnel_ready"
	IngressReconciling  IngressState = "reconciling"
	IngressRegistered   IngressState = "registered"
	IngressFailed       IngressState = "failed"
)

var ingressStates = []string{
	string(IngressUnregistered),
	string(IngressTunnelReady),
	string(IngressReconciling),
	string(IngressRegistered),
	string(IngressFailed),
}

type RegistrationStore interface {
	RecordPushRegistration(url string, at time.Time) error
	LatestPushRegistration() (*models.PushEndpointRegistration, error)
}

// Reconciler makes the vendor's push registration match this run's tunnel URL.
// It runs once per process start and always retires URLs from earlier runs.
type Reconciler struct {
	Tunnel    Tunnel
	Registrar PushRegistrar
	Store     RegistrationStore
	PushPath  string
	Wait      time.Duration
	PollEvery time.Duration
	Mandatory bool

	mu    sync.RWMutex
	state IngressState
}

func (r *Reconciler) State() IngressState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == "" {
		return IngressUnregistered
	}
	return r.state
}

func (r *Reconciler) setState(s IngressState) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()

	common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryIngress),
	).Info("Ingress state changed", zap.String("from", string(prev)), zap.String("to", string(s)))
	metrics.SetIngressState(string(s), ingressStates)
}

func (r *Reconciler) Run(ctx context.Context) error {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryIngress),
	)

	r.setState(IngressUnregistered)

	tunnelURL, err := r.waitForTunnel(ctx)
	if err != nil {
		if r.Mandatory {
			r.setState(IngressFailed)
			return err
		}
		logger.Warn("Push delivery unavailable, continuing with polling only", zap.Error(err))
		return nil
	}
	r.setState(IngressTunnelReady)

	endpoint := JoinPushURL(tunnelURL, r.PushPath)

	if previous, err := r.Store.LatestPushRegistration(); err == nil {
		r.setState(IngressReconciling)
		logger.Info("Found previous push registration",
			zap.String("previous", previous.URL),
			zap.String("current", endpoint))
	} else if !errors.Is(err, db.ErrNotFound) {
		logger.Warn("Failed to read previous push registration", zap.Error(err))
	}

	existing, err := r.Registrar.QueryPushURLs(ctx)
	if err != nil {
		return r.fail(logger, fmt.Errorf("query push registrations: %w", err))
	}

	alreadyRegistered := false
	for _, u := range existing {
		if u == endpoint {
			alreadyRegistered = true
			continue
		}
		logger.Info("Deregistering stale push endpoint", zap.String("url", u))
		if err := r.Registrar.DeregisterPushURL(ctx, u); err != nil {
			return r.fail(logger, fmt.Errorf("deregister %s: %w", u, err))
		}
	}

	if !alreadyRegistered {
		logger.Info("Registering push endpoint", zap.String("url", endpoint))
		if err := r.Registrar.RegisterPushURL(ctx, endpoint); err != nil {
			return r.fail(logger, fmt.Errorf("register %s: %w", endpoint, err))
		}
	}

	if err := r.Store.RecordPushRegistration(endpoint, time.Now()); err != nil {
		logger.Warn("Failed to record push registration", zap.Error(err))
	}

	r.setState(IngressRegistered)
	return nil
}

// fail marks ingress failed. The error only reaches the caller when push
// delivery is mandatory; otherwise polling carries on alone.
func (r *Reconciler) fail(logger *zap.Logger, err error) error {
	r.setState(IngressFailed)
	if r.Mandatory {
		return err
	}
	logger.Warn("Push registration failed, continuing with polling only", zap.Error(err))
	return nil
}

func (r *Reconciler) waitForTunnel(ctx context.Context) (string, error) {
	if url, ok := r.Tunnel.PublicURL(); ok {
		return url, nil
	}

	wait := r.Wait
	if wait <= 0 {
		wait = 30 * time.Second
	}
	every := r.PollEvery
	if every <= 0 {
		every = 500 * time.Millisecond
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTunnelNotReady, ctx.Err())
		case <-deadline.C:
			return "", fmt.Errorf("%w after %s", ErrTunnelNotReady, wait)
		case <-ticker.C:
			if url, ok := r.Tunnel.PublicURL(); ok {
				return url, nil
			}
		}
	}
}

func JoinPushURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
