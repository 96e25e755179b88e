package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veesix-networks/netbind/internal/binding"
	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/component"
	"github.com/veesix-networks/netbind/pkg/config"
	"github.com/veesix-networks/netbind/pkg/events/local"
	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/pkg/platform/linuxnet"
	"github.com/veesix-networks/netbind/pkg/platform/sim"
	_ "github.com/veesix-networks/netbind/plugins/all"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Configure(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Components)

	mainLog := logger.Get(logger.Main)
	mainLog.Info("Starting netbindd", "driver", cfg.Platform.Driver, "transport", cfg.Platform.Transport)

	platform, closer, err := newPlatform(cfg.Platform)
	if err != nil {
		log.Fatalf("Failed to create %s platform: %v", cfg.Platform.Driver, err)
	}

	eventBus := local.NewBus(
		local.WithBufferSize(cfg.Events.BufferSize),
		local.WithDebug(cfg.Events.Debug),
	)

	deps := component.Dependencies{
		EventBus: eventBus,
		Config:   cfg,
	}

	binderComp, err := binding.New(deps, platform)
	if err != nil {
		log.Fatalf("Failed to create binder component: %v", err)
	}
	deps.Coordinator = binderComp.Coordinator()

	orch := component.NewOrchestrator()
	orch.Register(binderComp)

	pluginComponents, err := component.LoadAll(deps)
	if err != nil {
		log.Fatalf("Failed to load plugin components: %v", err)
	}
	for _, comp := range pluginComponents {
		mainLog.Info("Loaded plugin component", "name", comp.Name())
		orch.Register(comp)
	}

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start components: %v", err)
	}

	mainLog.Info("netbindd started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	mainLog.Info("Shutting down netbindd...")

	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := orch.Stop(stopCtx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}

	if err := eventBus.Close(); err != nil {
		mainLog.Error("Error closing event bus", "error", err)
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			mainLog.Error("Error closing platform", "error", err)
		}
	}

	mainLog.Info("netbindd stopped")
}

func newPlatform(cfg config.PlatformConfig) (binder.Platform, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverSim:
		return sim.New(cfg.Networks), nil, nil
	default:
		p, err := linuxnet.New(linuxnet.Config{
			Strategy:     linuxnet.Strategy(cfg.Strategy),
			Namespace:    cfg.Namespace,
			Interfaces:   cfg.Interfaces,
			PollInterval: cfg.PollInterval,
			RouteMetric:  cfg.RouteMetric,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	}
}
