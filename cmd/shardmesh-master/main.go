package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/yndnr/shardmesh-go/internal/discovery"
	"github.com/yndnr/shardmesh-go/internal/handshake"
	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/shardmesh-go/internal/infra/confloader"
	"github.com/yndnr/shardmesh-go/internal/infra/shutdown"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
	"github.com/yndnr/shardmesh-go/internal/server/config"
	"github.com/yndnr/shardmesh-go/internal/server/httpserver"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
	"github.com/yndnr/shardmesh-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		hashSecret  = flag.String("hash-secret", "", "Print the auth.secret_hash for a shared secret and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Banner("shardmesh-master"))
		return nil
	}
	if *hashSecret != "" {
		hash, err := handshake.HashSecret(*hashSecret)
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		fmt.Println(hash)
		return nil
	}

	loader, cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogLogger := log.Slog()
	for _, key := range loader.Unused() {
		log.Warn("unknown configuration key", "key", key)
	}

	log.Info("starting shardmesh-master",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.SanitizeMaster(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(slogLogger))

	// TLS
	tlsCfg, certs, err := config.MasterTLS(&cfg.TLS, slogLogger)
	if err != nil {
		return fmt.Errorf("init tls: %w", err)
	}
	if certs != nil {
		certs.StartAsync()
		shutdownHandler.OnShutdown("tls watcher", func(context.Context) error {
			certs.Stop()
			return nil
		})
	}

	// Cluster master
	metrics := metric.NewRegistry()
	opts, err := config.ToMasterOptions(cfg, slogLogger, tlsCfg)
	if err != nil {
		return err
	}
	opts.Metrics = metrics
	opts.Hooks = clusterserver.Hooks{
		OnAuthFailed: func(n clusterserver.NodeInfo, err error) {
			log.Warn("node rejected", "node_id", n.ID, "name", n.Name, "remote_addr", n.RemoteAddress, "error", err)
		},
	}

	master := clusterserver.New(opts)
	metrics.MustRegister(metric.NewCollector(master))

	if err := master.Start(context.Background()); err != nil {
		return fmt.Errorf("start master: %w", err)
	}
	shutdownHandler.OnShutdown("cluster master", func(ctx context.Context) error {
		log.Info("stopping cluster master")
		return master.Shutdown(ctx)
	})
	log.Info("cluster master listening", "addr", master.Addr().String())

	// Gossip discovery
	if cfg.Discovery.Enabled {
		agent, err := startDiscovery(cfg, master.Addr())
		if err != nil {
			_ = master.Stop()
			return fmt.Errorf("start discovery: %w", err)
		}
		shutdownHandler.OnShutdown("discovery", func(context.Context) error {
			_ = agent.Leave(time.Second)
			return agent.Shutdown()
		})
	}

	// Admin HTTP API
	if cfg.Admin.Addr != "" {
		adminServer := httpserver.New(cfg.Admin.Addr, httpserver.NewRouter(httpserver.RouterConfig{
			Cluster:   master,
			Metrics:   metrics,
			Logger:    slogLogger,
			AllowList: cfg.Admin.AllowList,
			RateLimit: cfg.Admin.RateLimit,
		}))
		if err := adminServer.Listen(); err != nil {
			shutdownHandler.Trigger()
			_ = shutdownHandler.Wait()
			return fmt.Errorf("admin listen: %w", err)
		}
		shutdownHandler.OnShutdown("admin api", func(ctx context.Context) error {
			log.Info("shutting down admin HTTP server")
			return adminServer.Shutdown(ctx)
		})

		go func() {
			log.Info("admin HTTP server listening", "addr", adminServer.Addr().String())
			if err := adminServer.Serve(); err != nil {
				log.Error("admin HTTP server error", "error", err)
				shutdownHandler.Trigger()
			}
		}()
	}

	// Config hot reload
	if *configFile != "" {
		watcher, err := watchConfig(*configFile, loader, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("master started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("master stopped gracefully")
	return nil
}

// loadConfig layers the YAML file and SHARDMESH_* environment over the
// defaults, then verifies the result.
func loadConfig(configFile string) (*confloader.Loader, *config.MasterConfig, error) {
	cfg := config.DefaultMaster()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.VerifyMaster(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return loader, cfg, nil
}

func startDiscovery(cfg *config.MasterConfig, clusterAddr net.Addr) (*discovery.Agent, error) {
	port := 0
	if tcp, ok := clusterAddr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	return discovery.New(discovery.Config{
		Name:     cfg.Master.Name,
		BindAddr: cfg.Discovery.BindAddr,
		BindPort: cfg.Discovery.BindPort,
		Seeds:    cfg.Discovery.Seeds,
		Meta: discovery.Meta{
			Role: discovery.RoleMaster,
			Addr: config.AdvertiseAddr(cfg, port),
		},
		Logger: logger.Default().Slog(),
	})
}

// watchConfig re-reads the config file on change and applies log.level.
// Every other setting needs a restart.
func watchConfig(path string, loader *confloader.Loader, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(string) {
		next := config.DefaultMaster()
		if err := loader.Load(next); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		for _, key := range loader.Unused() {
			log.Warn("unknown configuration key", "key", key)
		}
		if !logger.ValidLevel(next.Log.Level) {
			log.Warn("config reload ignored invalid log level", "level", next.Log.Level)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
