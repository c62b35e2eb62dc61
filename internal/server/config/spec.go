package config

import "time"

// MasterConfig is the root configuration for shardmesh-master.
type MasterConfig struct {
	Master    MasterSection    `koanf:"master"`
	Admin     AdminSection     `koanf:"admin"`
	Auth      AuthSection      `koanf:"auth"`
	TLS       TLSSection       `koanf:"tls"`
	Discovery DiscoverySection `koanf:"discovery"`
	Log       LogSection       `koanf:"log"`
}

// NodeConfig is the root configuration for shardmesh-node.
type NodeConfig struct {
	Node      NodeSection      `koanf:"node"`
	Auth      AuthSection      `koanf:"auth"`
	TLS       TLSSection       `koanf:"tls"`
	Discovery DiscoverySection `koanf:"discovery"`
	Log       LogSection       `koanf:"log"`
}

// MasterSection configures the cluster listener.
type MasterSection struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Name is announced to nodes in the handshake.
	Name string `koanf:"name"`

	// RequestTimeout is the default request deadline. Negative disables it.
	// Like every duration here it takes a unit string ("5s") or a bare
	// number of milliseconds (5000, -1).
	RequestTimeout time.Duration `koanf:"request_timeout"`

	ReplicaCount int `koanf:"replica_count"`

	// RingHash selects the ring hash function: crc32 or murmur3.
	RingHash string `koanf:"ring_hash"`

	MaxFrameSize int `koanf:"max_frame_size"`

	// MessageRateLimit caps inbound frames per second per node. Zero
	// disables the limit.
	MessageRateLimit float64 `koanf:"message_rate_limit"`

	WriteTimeout time.Duration `koanf:"write_timeout"`

	CloseOnMalformed bool `koanf:"close_on_malformed"`
}

// NodeSection configures the connection to the master.
type NodeSection struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Name is announced to the master. Empty uses the hostname.
	Name string `koanf:"name"`

	DialTimeout  time.Duration `koanf:"dial_timeout"`
	MaxFrameSize int           `koanf:"max_frame_size"`

	// ReconnectInterval is the delay between connection attempts after
	// the master goes away. Zero exits instead.
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
}

// AdminSection configures the master's admin HTTP API.
type AdminSection struct {
	// Addr is the listen address. Empty disables the API.
	Addr string `koanf:"addr"`

	// AllowList restricts callers to these IPs or CIDRs. Empty allows all.
	AllowList []string `koanf:"allow_list"`

	// RateLimit caps requests per second per client IP. Zero disables it.
	RateLimit int `koanf:"rate_limit"`
}

// AuthSection configures the handshake.
type AuthSection struct {
	// Payload is offered as the auth value in our welcome.
	Payload string `koanf:"payload"`

	// SecretHash, when set, is an argon2id hash the peer's auth payload
	// must match.
	SecretHash string `koanf:"secret_hash"`
}

// TLSSection configures TLS on the cluster connection.
type TLSSection struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// CAFile is the trust root. On the master it also makes client
	// certificates mandatory.
	CAFile string `koanf:"ca_file"`

	// ServerName overrides the name nodes verify the master against.
	ServerName string `koanf:"server_name"`
}

// DiscoverySection configures gossip discovery.
type DiscoverySection struct {
	Enabled  bool     `koanf:"enabled"`
	BindAddr string   `koanf:"bind_addr"`
	BindPort int      `koanf:"bind_port"`
	Seeds    []string `koanf:"seeds"`

	// AdvertiseAddr is the cluster address the master publishes. Empty
	// uses master.host and master.port.
	AdvertiseAddr string `koanf:"advertise_addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
