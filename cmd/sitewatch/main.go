package main

//	@title			SiteWatch API
//	@version		0.1.0
//	@description	HTTP endpoint availability monitoring and alerting API.
//	@BasePath		/api/v1

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HollowOak/sitewatch/internal/config"
	"github.com/HollowOak/sitewatch/internal/event"
	"github.com/HollowOak/sitewatch/internal/notify"
	"github.com/HollowOak/sitewatch/internal/registry"
	"github.com/HollowOak/sitewatch/internal/server"
	"github.com/HollowOak/sitewatch/internal/version"
	"github.com/HollowOak/sitewatch/internal/watch"
	"github.com/HollowOak/sitewatch/internal/ws"
	"github.com/HollowOak/sitewatch/pkg/plugin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownGrace = 10 * time.Second

func main() {
	// "sitewatch version" works without flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sitewatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	viperCfg, err := server.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("SiteWatch starting", zap.String("version", version.Short()))
	if file := viperCfg.ConfigFileUsed(); file != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", file),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Plugins are composed at compile time. Optional ones can still be
	// switched off per deployment via plugins.<name>.enabled.
	watchMod := watch.New()
	for _, mod := range []plugin.Plugin{watchMod, notify.New()} {
		info := mod.Info()
		if !info.Required && !viperCfg.GetBool("plugins."+info.Name+".enabled") {
			logger.Info("plugin disabled in configuration, skipping",
				zap.String("name", info.Name),
			)
			continue
		}
		if err := reg.Register(mod); err != nil {
			return fmt.Errorf("registering plugin %q: %w", info.Name, err)
		}
	}

	if err := reg.Validate(); err != nil {
		return fmt.Errorf("validating plugins: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	depsFor := func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Bus:     bus,
			Plugins: reg,
		}
	}
	if err := reg.InitAll(ctx, depsFor); err != nil {
		return fmt.Errorf("initializing plugins: %w", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("starting plugins: %w", err)
	}

	wsHandler := ws.NewHandler(bus, logger.Named("ws"))

	srvCfg := server.ConfigFromViper(viperCfg)
	srv := server.New(srvCfg.Addr(), reg, logger,
		server.ReadinessChecker(watchMod.Ready),
		srvCfg.DevMode, srvCfg.DemoMode,
		wsHandler,
	)

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	logger.Info("SiteWatch ready", zap.String("addr", srvCfg.Addr()))
	printBanner(viperCfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveFailure error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		serveFailure = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	if serveFailure != nil {
		return serveFailure
	}
	logger.Info("SiteWatch stopped")
	return nil
}

// printBanner writes a short startup notice for humans tailing the process
// output. Structured logs carry the same information for machines.
func printBanner(v *viper.Viper) {
	port := v.GetString("server.port")
	if port == "" {
		port = "8080"
	}
	fmt.Fprintf(os.Stderr, "\n  SiteWatch %s is ready!\n  Watching %s\n  Status: http://localhost:%s/api/v1/watch/status\n\n",
		version.Short(), v.GetString("plugins.watch.url"), port)
}
