package config

import (
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/ring"
	"github.com/yndnr/shardmesh-go/internal/wire"
)

// Default configuration values.
const (
	DefaultMasterHost     = "0.0.0.0"
	DefaultNodeHost       = "127.0.0.1"
	DefaultPort           = 5134
	DefaultMasterName     = "shardmesh-master"
	DefaultRequestTimeout = 5 * time.Second
	DefaultRingHash       = "crc32"
	DefaultWriteTimeout   = 10 * time.Second

	DefaultAdminAddr = "127.0.0.1:5135"

	DefaultDialTimeout       = 5 * time.Second
	DefaultReconnectInterval = 2 * time.Second

	DefaultGossipAddr = "0.0.0.0"
	DefaultGossipPort = 5136

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultMaster returns the default master configuration.
func DefaultMaster() *MasterConfig {
	return &MasterConfig{
		Master: MasterSection{
			Host:             DefaultMasterHost,
			Port:             DefaultPort,
			Name:             DefaultMasterName,
			RequestTimeout:   DefaultRequestTimeout,
			ReplicaCount:     ring.DefaultReplicaCount,
			RingHash:         DefaultRingHash,
			MaxFrameSize:     wire.DefaultMaxFrameSize,
			WriteTimeout:     DefaultWriteTimeout,
			CloseOnMalformed: true,
		},
		Admin: AdminSection{
			Addr: DefaultAdminAddr,
		},
		Discovery: DiscoverySection{
			BindAddr: DefaultGossipAddr,
			BindPort: DefaultGossipPort,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// DefaultNode returns the default node configuration.
func DefaultNode() *NodeConfig {
	return &NodeConfig{
		Node: NodeSection{
			Host:              DefaultNodeHost,
			Port:              DefaultPort,
			DialTimeout:       DefaultDialTimeout,
			MaxFrameSize:      wire.DefaultMaxFrameSize,
			ReconnectInterval: DefaultReconnectInterval,
		},
		Discovery: DiscoverySection{
			BindAddr: DefaultGossipAddr,
			BindPort: DefaultGossipPort,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
