// Command avatarchat runs the avatar chat service: WebRTC signaling, the
// handler pipeline, the administrative HTTP surface, and a Prometheus
// metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/NimbusAI/avatarchat/config"
	"github.com/NimbusAI/avatarchat/engine"
	"github.com/NimbusAI/avatarchat/handlers/dialogue"
	"github.com/NimbusAI/avatarchat/handlers/rtcclient"
	"github.com/NimbusAI/avatarchat/history"
	"github.com/NimbusAI/avatarchat/httpapi"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/metrics/prometheus"
	"github.com/NimbusAI/avatarchat/relay"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to the configuration file")
		metricsAddr = flag.String("metrics-addr", ":9090", "listen address of the metrics endpoint, empty disables")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()
	logger.SetVerbose(*verbose)

	if err := run(*configPath, *metricsAddr); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := historyStore(cfg)
	if err != nil {
		return err
	}

	rtcHandler := rtcclient.New()
	e := engine.New(&cfg.Engine, rtcHandler, dialogue.New(store))
	if err := e.Initialize(); err != nil {
		return err
	}

	rtcConfig, provider := relay.DefaultRegistry().Negotiate(cfg.Engine.TurnConfig)
	if provider == "" {
		logger.Info("running without a relay provider")
	}

	opts := []httpapi.Option{
		httpapi.WithAddress(fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.Port)),
		httpapi.WithRoute(rtcclient.SignalingPath, rtcclient.NewSignaling(e, rtcHandler, rtcConfig)),
		httpapi.WithRoute("GET "+rtcclient.ConfigPath, rtcclient.NewConfigEndpoint(rtcConfig)),
	}
	if cfg.Service.CertFile != "" {
		opts = append(opts, httpapi.WithTLS(cfg.Service.CertFile, cfg.Service.KeyFile))
	}
	server := httpapi.NewServer(e, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)

	var exporter *prometheus.Exporter
	if metricsAddr != "" {
		exporter = prometheus.NewExporter(metricsAddr)
		g.Go(exporter.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sdCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(sdCtx); err != nil {
			logger.Warn("http server shutdown", "error", err)
		}
		if exporter != nil {
			if err := exporter.Shutdown(sdCtx); err != nil {
				logger.Warn("metrics exporter shutdown", "error", err)
			}
		}
		return e.Shutdown(sdCtx)
	})

	return g.Wait()
}

// historyStore builds the conversation history backend from the dialogue
// handler's configuration. Without a redis address it falls back to an
// in-process store.
func historyStore(cfg *config.Config) (history.Store, error) {
	var hcfg config.HandlerConfig
	for _, entry := range cfg.Engine.Handlers {
		if entry.Name == dialogue.Name {
			hcfg = entry.Config
			break
		}
	}

	addr := hcfg.GetString("redis_addr", "")
	if addr == "" {
		return history.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: hcfg.GetString("redis_password", ""),
		DB:       hcfg.GetInt("redis_db", 0),
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable at %s: %w", addr, err)
	}
	logger.Info("history store", "backend", "redis", "addr", addr)
	return history.NewRedisStore(client), nil
}
