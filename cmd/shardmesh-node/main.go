package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yndnr/shardmesh-go/internal/discovery"
	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/shardmesh-go/internal/infra/confloader"
	"github.com/yndnr/shardmesh-go/internal/infra/shutdown"
	"github.com/yndnr/shardmesh-go/internal/nodeclient"
	"github.com/yndnr/shardmesh-go/internal/server/config"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
)

const shutdownTimeout = 10 * time.Second

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
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Banner("shardmesh-node"))
		return nil
	}

	loader, cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Node.Name == "" {
		if cfg.Node.Name, err = os.Hostname(); err != nil {
			return fmt.Errorf("node.name not set and hostname unavailable: %w", err)
		}
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

	log.Info("starting shardmesh-node",
		"version", buildinfo.Version,
		"name", cfg.Node.Name,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.SanitizeNode(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(slogLogger))

	tlsCfg, certs, err := config.NodeTLS(&cfg.TLS, slogLogger)
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

	opts := config.ToNodeOptions(cfg, slogLogger, tlsCfg)
	opts.Handlers = nodeclient.Builtins(nodeclient.BuiltinInfo{
		Name:    cfg.Node.Name,
		Version: buildinfo.Version,
		Started: time.Now(),
	})

	if cfg.Discovery.Enabled {
		agent, err := discovery.New(discovery.Config{
			Name:     cfg.Node.Name,
			BindAddr: cfg.Discovery.BindAddr,
			BindPort: cfg.Discovery.BindPort,
			Seeds:    cfg.Discovery.Seeds,
			Meta:     discovery.Meta{Role: discovery.RoleNode},
			Logger:   slogLogger,
		})
		if err != nil {
			return fmt.Errorf("start discovery: %w", err)
		}
		opts.Resolve = agent.WaitMaster
		shutdownHandler.OnShutdown("discovery", func(context.Context) error {
			_ = agent.Leave(time.Second)
			return agent.Shutdown()
		})
	}

	client := nodeclient.New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		connectLoop(ctx, client, cfg.Node.ReconnectInterval, log)
		shutdownHandler.Trigger()
	}()

	shutdownHandler.OnShutdown("node client", func(ctx context.Context) error {
		log.Info("disconnecting from master")
		cancel()
		err := client.Disconnect()
		select {
		case <-stopped:
		case <-ctx.Done():
		}
		return err
	})

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("node stopped gracefully")
	return nil
}

func loadConfig(configFile string) (*confloader.Loader, *config.NodeConfig, error) {
	cfg := config.DefaultNode()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.VerifyNode(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return loader, cfg, nil
}

// connectLoop keeps the client connected until ctx ends. A zero interval
// gives up after the first failure or disconnect.
func connectLoop(ctx context.Context, client *nodeclient.Client, interval time.Duration, log logger.Logger) {
	for {
		if err := client.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("connect to master failed", "error", err, "retry_in", interval)
		} else {
			log.Info("connected to master")
			select {
			case <-client.Done():
				if err := client.Err(); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("disconnected from master", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}

		if interval <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
