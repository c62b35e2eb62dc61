package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/shardmesh-go/internal/core/ring"
	"github.com/yndnr/shardmesh-go/internal/handshake"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
)

// VerifyMaster validates the master configuration.
func VerifyMaster(cfg *MasterConfig) error {
	if err := verifyMasterSection(&cfg.Master); err != nil {
		return err
	}
	if cfg.Admin.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Admin.Addr); err != nil {
			return fmt.Errorf("admin.addr: %w", err)
		}
	}
	for _, entry := range cfg.Admin.AllowList {
		if !validACLEntry(entry) {
			return fmt.Errorf("admin.allow_list: %q is not an IP or CIDR", entry)
		}
	}
	if cfg.Admin.RateLimit < 0 {
		return errors.New("admin.rate_limit must not be negative")
	}
	if err := verifyAuth(&cfg.Auth); err != nil {
		return err
	}
	if err := verifyTLS(&cfg.TLS, true); err != nil {
		return err
	}
	if err := verifyDiscovery(&cfg.Discovery); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

// VerifyNode validates the node configuration.
func VerifyNode(cfg *NodeConfig) error {
	n := &cfg.Node
	if !cfg.Discovery.Enabled {
		if n.Host == "" {
			return errors.New("node.host is required")
		}
		if n.Port < 1 || n.Port > 65535 {
			return fmt.Errorf("node.port %d out of range", n.Port)
		}
	}
	if n.DialTimeout < 0 {
		return errors.New("node.dial_timeout must not be negative")
	}
	if n.MaxFrameSize < 0 {
		return errors.New("node.max_frame_size must not be negative")
	}
	if n.ReconnectInterval < 0 {
		return errors.New("node.reconnect_interval must not be negative")
	}
	if err := verifyAuth(&cfg.Auth); err != nil {
		return err
	}
	if err := verifyTLS(&cfg.TLS, false); err != nil {
		return err
	}
	if err := verifyDiscovery(&cfg.Discovery); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyMasterSection(m *MasterSection) error {
	if m.Port < 0 || m.Port > 65535 {
		return fmt.Errorf("master.port %d out of range", m.Port)
	}
	if m.ReplicaCount < 1 {
		return errors.New("master.replica_count must be at least 1")
	}
	if _, err := ring.HasherByName(m.RingHash); err != nil {
		return fmt.Errorf("master.ring_hash: %w", err)
	}
	if m.MaxFrameSize < 0 {
		return errors.New("master.max_frame_size must not be negative")
	}
	if m.MessageRateLimit < 0 {
		return errors.New("master.message_rate_limit must not be negative")
	}
	if m.WriteTimeout < 0 {
		return errors.New("master.write_timeout must not be negative")
	}
	return nil
}

func validACLEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, _, err := net.ParseCIDR(entry)
		return err == nil
	}
	return net.ParseIP(entry) != nil
}

func verifyAuth(a *AuthSection) error {
	if a.SecretHash == "" {
		return nil
	}
	if err := handshake.ValidSecretHash(a.SecretHash); err != nil {
		return fmt.Errorf("auth.secret_hash: %w", err)
	}
	return nil
}

func verifyTLS(t *TLSSection, server bool) error {
	if !t.Enabled {
		return nil
	}
	if server && (t.CertFile == "" || t.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file are required when tls is enabled")
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}
	for key, path := range map[string]string{
		"tls.cert_file": t.CertFile,
		"tls.key_file":  t.KeyFile,
		"tls.ca_file":   t.CAFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func verifyDiscovery(d *DiscoverySection) error {
	if !d.Enabled {
		return nil
	}
	if d.BindPort < 0 || d.BindPort > 65535 {
		return fmt.Errorf("discovery.bind_port %d out of range", d.BindPort)
	}
	if d.AdvertiseAddr != "" {
		if _, _, err := net.SplitHostPort(d.AdvertiseAddr); err != nil {
			return fmt.Errorf("discovery.advertise_addr: %w", err)
		}
	}
	return nil
}

func verifyLog(l *LogSection) error {
	if !logger.ValidLevel(l.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", l.Level)
	}
	switch l.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format %q is not one of json, text", l.Format)
	}
}
