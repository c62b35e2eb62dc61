package config

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/yndnr/shardmesh-go/internal/core/ring"
	"github.com/yndnr/shardmesh-go/internal/handshake"
	"github.com/yndnr/shardmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/shardmesh-go/internal/nodeclient"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
)

// ToMasterOptions converts the configuration to clusterserver.Config.
// Handlers, hooks and metrics are left for the caller.
func ToMasterOptions(cfg *MasterConfig, logger *slog.Logger, tlsCfg *tls.Config) (clusterserver.Config, error) {
	hasher, err := ring.HasherByName(cfg.Master.RingHash)
	if err != nil {
		return clusterserver.Config{}, fmt.Errorf("master.ring_hash: %w", err)
	}

	return clusterserver.Config{
		Host:             cfg.Master.Host,
		Port:             cfg.Master.Port,
		Name:             cfg.Master.Name,
		Auth:             authPayload(cfg.Auth.Payload),
		Verify:           verifier(cfg.Auth.SecretHash),
		RequestTimeout:   cfg.Master.RequestTimeout,
		ReplicaCount:     cfg.Master.ReplicaCount,
		Hasher:           hasher,
		MaxFrameSize:     cfg.Master.MaxFrameSize,
		MessageRateLimit: cfg.Master.MessageRateLimit,
		WriteTimeout:     cfg.Master.WriteTimeout,
		KeepMalformed:    !cfg.Master.CloseOnMalformed,
		TLSConfig:        tlsCfg,
		Logger:           logger,
	}, nil
}

// ToNodeOptions converts the configuration to nodeclient.Config.
func ToNodeOptions(cfg *NodeConfig, logger *slog.Logger, tlsCfg *tls.Config) nodeclient.Config {
	return nodeclient.Config{
		Host:         cfg.Node.Host,
		Port:         cfg.Node.Port,
		Name:         cfg.Node.Name,
		Auth:         authPayload(cfg.Auth.Payload),
		Verify:       verifier(cfg.Auth.SecretHash),
		DialTimeout:  cfg.Node.DialTimeout,
		MaxFrameSize: cfg.Node.MaxFrameSize,
		TLSConfig:    tlsCfg,
		Logger:       logger,
	}
}

// AdvertiseAddr returns the cluster address the master publishes through
// discovery.
func AdvertiseAddr(cfg *MasterConfig, boundPort int) string {
	if cfg.Discovery.AdvertiseAddr != "" {
		return cfg.Discovery.AdvertiseAddr
	}
	host := cfg.Master.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(boundPort))
}

// MasterTLS builds the listener TLS config. It returns nil values when TLS
// is disabled. The returned watcher reloads the key pair and must be
// stopped by the caller.
func MasterTLS(t *TLSSection, logger *slog.Logger) (*tls.Config, *tlsroots.Watcher, error) {
	if !t.Enabled {
		return nil, nil, nil
	}

	certs, err := tlsroots.NewWatcher(t.CertFile, t.KeyFile, tlsroots.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	var clientCAs *tlsroots.Pool
	if t.CAFile != "" {
		if clientCAs, err = tlsroots.LoadPool(t.CAFile); err != nil {
			return nil, nil, err
		}
	}

	tlsCfg, err := tlsroots.ServerTLS(certs, clientCAs)
	if err != nil {
		return nil, nil, err
	}
	return tlsCfg, certs, nil
}

// NodeTLS builds the dialer TLS config. The watcher is nil unless a
// client certificate is configured.
func NodeTLS(t *TLSSection, logger *slog.Logger) (*tls.Config, *tlsroots.Watcher, error) {
	if !t.Enabled {
		return nil, nil, nil
	}

	roots, err := tlsroots.LoadPool(t.CAFile)
	if err != nil {
		return nil, nil, err
	}

	var certs *tlsroots.Watcher
	if t.CertFile != "" {
		if certs, err = tlsroots.NewWatcher(t.CertFile, t.KeyFile, tlsroots.WithLogger(logger)); err != nil {
			return nil, nil, err
		}
	}
	return tlsroots.ClientTLS(roots, certs, t.ServerName), certs, nil
}

func authPayload(payload string) any {
	if payload == "" {
		return nil
	}
	return map[string]any{"secret": payload}
}

func verifier(secretHash string) handshake.Verifier {
	if secretHash == "" {
		return nil
	}
	return handshake.SecretVerifier(secretHash)
}
