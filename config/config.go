package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is used when neither the config file nor the environment
// names a backend.
const DefaultBaseURL = "http://localhost:5000/api"

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Backend   BackendConfig   `yaml:"backend"`
	Agent     AgentConfig     `yaml:"agent"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Messaging MessagingConfig `yaml:"messaging"`
}

type BackendConfig struct {
	BaseURL  string        `yaml:"base_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AgentConfig struct {
	Source    string        `yaml:"source"` // "mock" or "proxy"
	Delay     time.Duration `yaml:"delay"`
	ProxyPath string        `yaml:"proxy_path"`
}

type WebConfig struct {
	Host          string          `yaml:"host"`
	Port          int             `yaml:"port"`
	SessionSecret string          `yaml:"session_secret"`
	SessionIdle   time.Duration   `yaml:"session_idle"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerInterval int           `yaml:"requests_per_interval"`
	Interval            time.Duration `yaml:"interval"`
	TrustedProxies      []string      `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MessagingConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Backend       string      `yaml:"backend"` // "kafka" or "mqtt"
	Kafka         KafkaConfig `yaml:"kafka"`
	MQTT          MQTTConfig  `yaml:"mqtt"`
	AdvisoryTopic string      `yaml:"advisory_topic"`
	StationID     string      `yaml:"station_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

func Defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: DefaultBaseURL,
		},
		Agent: AgentConfig{
			Source:    "mock",
			Delay:     time.Second,
			ProxyPath: "/agents/plan",
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8090,
			SessionSecret: "change-me-in-production",
			SessionIdle:   2 * time.Minute,
			RateLimit: RateLimitConfig{
				RequestsPerInterval: 30,
				Interval:            time.Minute,
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "arogyadash.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "arogyadash",
				User:     "arogyadash",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Enabled: false,
			Address: "localhost:6379",
		},
		Messaging: MessagingConfig{
			Enabled: false,
			Backend: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "arogyadash",
			},
			AdvisoryTopic: "arogya.advisories",
			StationID:     "dashboard",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error. The backend base URL is resolved here and nothing downstream
// reads the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.Backend.BaseURL = ResolveBaseURL(os.Getenv, cfg.Backend.BaseURL)
	return cfg, nil
}

// ResolveBaseURL picks the backend base URL: AGENT_PROXY_BASE, then
// API_BASE, then the configured value, then DefaultBaseURL.
func ResolveBaseURL(getenv func(string) string, configured string) string {
	if _, v, ok := BaseURLOverride(getenv); ok {
		return v
	}
	if configured = strings.TrimSpace(configured); configured != "" {
		return strings.TrimRight(configured, "/")
	}
	return DefaultBaseURL
}

// BaseURLOverride reports the environment variable that pins the backend
// base URL, if any. While one is set, the configured value is ignored.
func BaseURLOverride(getenv func(string) string) (key, value string, ok bool) {
	for _, key := range []string{"AGENT_PROXY_BASE", "API_BASE"} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return key, strings.TrimRight(v, "/"), true
		}
	}
	return "", "", false
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }
