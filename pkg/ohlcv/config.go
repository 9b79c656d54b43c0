package ohlcv

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"chartfeed/pkg/confkit"
)

// Config describes the candle sources available to the service.
type Config struct {
	// CEX names the source handling reference majors and stablecoins.
	CEX string `yaml:"cex"`
	// Order lists on-chain sources in preference order for everything
	// the CEX cannot serve.
	Order []string `yaml:"order"`
	// DefaultQuoteSymbol is the CEX quote currency, e.g. USDT.
	DefaultQuoteSymbol string                   `yaml:"default_quote"`
	Sources            map[string]*SourceConfig `yaml:"sources"`
}

// SourceConfig configures a single source adapter.
type SourceConfig struct {
	Type string `yaml:"type"`

	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`

	// Endpoints holds, per chain id, the indexer endpoint list in
	// priority order. Only subgraph-style sources use it.
	Endpoints map[int64][]string `yaml:"endpoints"`
}

// SourceBuilder constructs a Source from configuration.
type SourceBuilder func(name string, cfg *SourceConfig) (Source, error)

var (
	sourceRegistry   = make(map[string]SourceBuilder)
	sourceRegistryMu sync.RWMutex
)

// RegisterSource registers a source constructor for a config type name.
func RegisterSource(typeName string, builder SourceBuilder) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupSourceBuilder(typeName string) (SourceBuilder, bool) {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	builder, ok := sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads source configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ohlcv config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ohlcv config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal ohlcv config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Sources == nil {
		c.Sources = make(map[string]*SourceConfig)
	}
	if strings.TrimSpace(c.DefaultQuoteSymbol) == "" {
		c.DefaultQuoteSymbol = "USDT"
	}
	for name, source := range c.Sources {
		if source == nil {
			source = &SourceConfig{}
			c.Sources[name] = source
		}
		source.expandEnv()
		if err := source.parseDurations(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceConfig) expandEnv() {
	s.Type = strings.TrimSpace(os.ExpandEnv(s.Type))
	s.BaseURL = strings.TrimSpace(os.ExpandEnv(s.BaseURL))
	s.APIKey = strings.TrimSpace(os.ExpandEnv(s.APIKey))
	s.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(s.TimeoutRaw))
	for chain, endpoints := range s.Endpoints {
		for i, endpoint := range endpoints {
			endpoints[i] = strings.TrimSpace(os.ExpandEnv(endpoint))
		}
		s.Endpoints[chain] = endpoints
	}
}

func (s *SourceConfig) parseDurations(name string) error {
	if s.TimeoutRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(s.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("ohlcv source %s: invalid timeout %q: %w", name, s.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("ohlcv source %s: timeout must be positive, got %s", name, d)
	}
	s.Timeout = d
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("ohlcv config: sources cannot be empty")
	}
	for name, source := range c.Sources {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("ohlcv config: source name cannot be empty")
		}
		if source == nil {
			return fmt.Errorf("ohlcv config: source %s is nil", name)
		}
		if strings.TrimSpace(source.Type) == "" {
			return fmt.Errorf("ohlcv config: source %s must specify type", name)
		}
		if _, ok := lookupSourceBuilder(source.Type); !ok {
			return fmt.Errorf("ohlcv config: source %s has unsupported type %q", name, source.Type)
		}
	}
	if c.CEX != "" {
		if _, ok := c.Sources[c.CEX]; !ok {
			return fmt.Errorf("ohlcv config: cex source %q not defined", c.CEX)
		}
	}
	for _, name := range c.Order {
		if _, ok := c.Sources[name]; !ok {
			return fmt.Errorf("ohlcv config: ordered source %q not defined", name)
		}
	}
	return nil
}

// BuildSources instantiates every configured source adapter.
func (c *Config) BuildSources() (map[string]Source, error) {
	result := make(map[string]Source, len(c.Sources))
	for name, sourceCfg := range c.Sources {
		builder, ok := lookupSourceBuilder(sourceCfg.Type)
		if !ok {
			return nil, fmt.Errorf("ohlcv source %s: unsupported type %q", name, sourceCfg.Type)
		}
		source, err := builder(name, sourceCfg)
		if err != nil {
			return nil, fmt.Errorf("ohlcv source %s: %w", name, err)
		}
		result[name] = source
	}
	return result, nil
}
