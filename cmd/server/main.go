package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/proto"

	"liyu1981.xyz/home-state-monitor/pkg/chart"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/config"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/delivery"
	monitorGrpc "liyu1981.xyz/home-state-monitor/pkg/grpc"
	monitorHttp "liyu1981.xyz/home-state-monitor/pkg/http"
	"liyu1981.xyz/home-state-monitor/pkg/iot"
	"liyu1981.xyz/home-state-monitor/pkg/metrics"
	"liyu1981.xyz/home-state-monitor/pkg/models"
	"liyu1981.xyz/home-state-monitor/pkg/netatmo"
	"liyu1981.xyz/home-state-monitor/pkg/switchbot"
	"liyu1981.xyz/home-state-monitor/pkg/tunnel"
)

const (
	dispatchQueueSize = 256
	shutdownTimeout   = 20 * time.Second
	healthInterval    = 15 * time.Second
)

// localURL turns a listen address like ":1080" into a URL the tunnel can reach.
func localURL(hostPort string) string {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "http://localhost:1080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		log.Fatal(err)
	}

	logger := common.GetLogger()

	var dbInstance *db.DB
	switch cfg.DBType {
	case "file":
		dbInstance = db.GetInstance(db.UseSqliteDialector())
	case "memory":
		dbInstance = db.GetInstance(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown MONITOR_DB_TYPE: " + cfg.DBType)
	}

	metrics.Init(dbInstance)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules := iot.NewRulesStore(cfg.Rules)
	if cfg.RulesFile != "" {
		go watchRulesReload(ctx, cfg.RulesFile, rules)
	}

	slack := delivery.NewSlack(cfg.Slack.SecurityWebhookURL, cfg.Slack.UpdateWebhookURL)
	dispatcher := iot.NewDispatcher(slack, dispatchQueueSize)

	iotCore := &iot.IOT{
		Db:         *dbInstance,
		Rules:      rules,
		Router:     iot.NewRouter(cfg.Locale, rules),
		Dispatcher: dispatcher,
	}
	iotCore.WithServices(iot.ServiceOpts{
		Ingest:   iotCore.GetIIngest(),
		State:    iotCore.GetIState(),
		Notifier: iotCore.GetINotifier(),
	})

	if cfg.MQTT.Enabled() {
		publisher, err := delivery.NewMQTTPublisher(delivery.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err != nil {
			logger.Warn("MQTT mirror disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			iotCore.Mirror = iot.NewMirror(publisher, dispatchQueueSize)
			go iotCore.Mirror.Run(ctx)
		}
	}

	switchbotClient, err := switchbot.NewClient(cfg.SwitchBot.Token, cfg.SwitchBot.Secret,
		switchbot.WithDailyQuota(cfg.SwitchBot.DailyQuota))
	if err != nil {
		log.Fatal(err)
	}

	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatchDone)
	}()

	g, gctx := errgroup.WithContext(ctx)

	// HTTP: push listener, read API, metrics
	pushPath := ""
	if cfg.PushEnabled {
		pushPath = cfg.PushPath
	}
	rs := &monitorHttp.RestfulServer{
		Server:           gin.Default(),
		Iot:              iotCore,
		RateLimiterStore: iot.NewRateLimiterStore(rate.Limit(cfg.DefaultRate), cfg.DefaultBurst),
		PushPath:         pushPath,
	}
	rs.Setup()
	httpServer := &http.Server{Addr: cfg.HTTPHostPort, Handler: rs.Server}

	logger.Info("http server created with:",
		zap.String("default_limiter",
			fmt.Sprintf("{\"default_rate\": %v, \"default_burst\": %v}", cfg.DefaultRate, cfg.DefaultBurst)),
		zap.String("push_path", pushPath))

	g.Go(func() error {
		logger.Info("Starting HTTP server on: " + cfg.HTTPHostPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// in-flight requests finish their snapshot
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Ingress: tunnel + push endpoint reconciliation
	var reconciler *iot.Reconciler
	if cfg.PushEnabled {
		manager := tunnel.New(localURL(cfg.HTTPHostPort), cfg.TunnelHostname)
		if err := manager.Start(gctx); err != nil {
			if cfg.PushMandatory {
				log.Fatal("Push delivery is mandatory but the tunnel cannot start: ", err)
			}
			logger.Warn("Tunnel not started, continuing with polling only", zap.Error(err))
		} else {
			reconciler = &iot.Reconciler{
				Tunnel:    manager,
				Registrar: switchbotClient,
				Store:     dbInstance,
				PushPath:  cfg.PushPath,
				Wait:      cfg.TunnelWait,
				Mandatory: cfg.PushMandatory,
			}
			g.Go(func() error {
				if err := reconciler.Run(gctx); err != nil {
					return fmt.Errorf("push endpoint reconciliation: %w", err)
				}
				return nil
			})
		}
	}

	// gRPC health
	if cfg.GRPCHostPort != "" {
		var ingress monitorGrpc.IngressStater
		if reconciler != nil {
			ingress = reconciler
		}
		healthServer := monitorGrpc.NewHealthServer(dbInstance, ingress)
		healthServer.RateLimiterStore = iot.NewRateLimiterStore(rate.Limit(cfg.DefaultRate), cfg.DefaultBurst)
		interceptor := healthServer.CreateRateLimitInterceptor([]proto.Message{
			&healthpb.HealthCheckRequest{},
		})
		s := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
		healthServer.Register(s)

		listener, err := net.Listen("tcp", cfg.GRPCHostPort)
		if err != nil {
			log.Fatalf("failed to listen: %v", err)
		}

		g.Go(func() error {
			healthServer.Watch(gctx, healthInterval)
			return nil
		})
		g.Go(func() error {
			logger.Info("start gRPC server on " + cfg.GRPCHostPort)
			if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server failed to serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			s.GracefulStop()
			return nil
		})
	}

	reporter := &iot.Reporter{
		Store:    dbInstance,
		Renderer: chart.New(cfg.QuickChartURL),
		Poster:   slack,
		Location: cfg.Location(),
		Interval: cfg.ReportInterval,
		Daily:    cfg.ReportDaily,
		Bucket:   cfg.ChartBucket,
		Locale:   cfg.Locale,
	}

	// Timers
	jobs := []iot.Job{
		{
			Name:       "switchbot_poll",
			Interval:   cfg.SwitchBotInterval,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := (&iot.SwitchBotPoller{
					Fetcher:   switchbotClient,
					Directory: dbInstance,
					Ingest:    iotCore.Ingest,
					Rules:     rules,
				}).Poll(ctx)
				return err
			},
		},
		{
			Name:     "report",
			Interval: cfg.ReportInterval,
			Run: func(ctx context.Context) error {
				return reporter.RunTick(ctx, time.Now())
			},
		},
		{
			Name:       "prune",
			Interval:   cfg.PruneInterval,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := (&iot.Pruner{
					Store:           dbInstance,
					HistoryDays:     cfg.HistoryDays,
					SensorDataDays:  cfg.SensorDataDays,
					NetatmoDataDays: cfg.NetatmoDataDays,
				}).Prune(time.Now())
				return err
			},
		},
	}

	if cfg.Netatmo.Enabled() {
		netatmoClient, err := netatmo.NewClient(netatmo.Credentials{
			ClientID:     cfg.Netatmo.ClientID,
			ClientSecret: cfg.Netatmo.ClientSecret,
			RefreshToken: cfg.Netatmo.RefreshToken,
		}, netatmo.WithOnRotate(func(token string) {
			if err := config.PersistEnv(".env", common.EnvKeyNetatmoRefreshToken, token); err != nil {
				logger.Warn("Failed to persist rotated Netatmo refresh token", zap.Error(err))
			}
		}))
		if err != nil {
			log.Fatal(err)
		}
		poller := &iot.NetatmoPoller{Fetcher: netatmoClient, Directory: dbInstance, Ingest: iotCore.Ingest}
		jobs = append(jobs, iot.Job{
			Name:       "netatmo_poll",
			Interval:   cfg.NetatmoInterval,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := poller.Poll(ctx)
				return err
			},
		})
	} else {
		logger.Info("Netatmo disabled, credentials not set")
	}

	g.Go(func() error {
		return (&iot.Scheduler{Jobs: jobs}).Run(gctx)
	})

	g.Go(func() error {
		notifyStartup(gctx, switchbotClient, slack, cfg)
		return nil
	})

	waitErr := g.Wait()
	if waitErr != nil {
		logger.Error("Shutting down after failure", zap.Error(waitErr))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		logger.Warn("Pending notifications dropped on shutdown", zap.Error(err))
	}
	<-dispatchDone
	if iotCore.Mirror != nil {
		if err := iotCore.Mirror.Drain(drainCtx); err != nil {
			logger.Warn("Pending mirrored events dropped on shutdown", zap.Error(err))
		}
	}

	logger.Info("Stopped")
	_ = logger.Sync()

	if waitErr != nil {
		os.Exit(1)
	}
}

func notifyStartup(ctx context.Context, devices iot.StatusFetcher, poster iot.Poster, cfg config.Config) {
	logger := common.GetLogger()

	list, err := devices.ListDevices(ctx)
	if err != nil {
		logger.Warn("Failed to count devices for startup notification", zap.Error(err))
		return
	}

	msg := iot.StartupMessage(len(list), time.Now().In(cfg.Location()), cfg.Locale)
	if err := poster.Post(ctx, models.ChannelUpdate, msg); err != nil {
		logger.Warn("Failed to post startup notification", zap.Error(err))
	}
}

// watchRulesReload re-reads the rules file on SIGHUP. A bad file keeps the
// current rules.
func watchRulesReload(ctx context.Context, path string, rules *iot.RulesStore) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryConfig),
	)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := config.LoadRules(path)
			if err != nil {
				logger.Warn("Rules reload failed, keeping current rules", zap.Error(err))
				continue
			}
			rules.Set(next)
			logger.Info("Rules reloaded", zap.String("path", path))
		}
	}
}
