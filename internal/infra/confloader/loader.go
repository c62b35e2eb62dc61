package confloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "SHARDMESH_"

// Loader layers a YAML file, the environment and explicit overrides over
// the defaults already held by a target struct. Every Load starts from a
// clean slate, so reloading after the file changed needs no reset.
type Loader struct {
	envPrefix string
	filePath  string
	overrides map[string]any
	unused    []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file. Without one only the environment and
// overrides apply.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadMap records overrides applied on top of the file and environment by
// every later Load. Keys may be dotted ("master.port") or nested maps.
func (l *Loader) LoadMap(data map[string]any) {
	if l.overrides == nil {
		l.overrides = make(map[string]any, len(data))
	}
	for k, v := range data {
		l.overrides[k] = v
	}
}

// Load reads every source and decodes the merged result into target using
// koanf struct tags. Fields no source sets keep their value. Durations
// accept a unit string ("5s") or bare milliseconds.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	var md mapstructure.Metadata
	if err := k.UnmarshalWithConf("", target, unmarshalConf(target, &md)); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	sort.Strings(md.Unused)
	l.unused = md.Unused
	return nil
}

// Unused returns the keys the last Load found in a source but could not
// map to any field, usually a typo.
func (l *Loader) Unused() []string {
	return l.unused
}

// envKey maps SHARDMESH_MASTER_REQUEST_TIMEOUT to master.request_timeout:
// the first underscore after the prefix separates section from key.
func (l *Loader) envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + key
}
