package global

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the single configuration document for the engine. Loaded from
// YAML once at startup; env vars override the connection strings so the same
// file works across environments.
type AppConfig struct {
	HTTP struct {
		Addr string `yaml:"addr"` // default :8080
	} `yaml:"http"`

	Postgres struct {
		URL string `yaml:"url"` // pgx pool DSN
	} `yaml:"postgres"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Nats struct {
		Servers []string `yaml:"servers"`
		Name    string   `yaml:"name"`
	} `yaml:"nats"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
		Bucket   string `yaml:"bucket"` // GridFS bucket for attachments
	} `yaml:"mongo"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"` // domain-event mirror topic
	} `yaml:"kafka"`

	Auth struct {
		JwtSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Gateway struct {
		NodeID         int64         `yaml:"node_id"`
		PresenceTTL    time.Duration `yaml:"presence_ttl"`
		FanoutWorkers  int           `yaml:"fanout_workers"`
		FanoutQueue    int           `yaml:"fanout_queue"`
		PublishTimeout time.Duration `yaml:"publish_timeout"`
	} `yaml:"gateway"`
}

var conf AppConfig

// Load reads the YAML config at path and applies env overrides. Call once
// from main before touching Get().
func Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var c AppConfig
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return err
	}
	applyEnv(&c)
	applyDefaults(&c)
	conf = c
	return nil
}

// LoadDefaults configures without a file (tests, local runs).
func LoadDefaults() {
	var c AppConfig
	applyEnv(&c)
	applyDefaults(&c)
	conf = c
}

func Get() *AppConfig { return &conf }

func GetJwtSecret() []byte {
	return []byte(conf.Auth.JwtSecret)
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Nats.Servers = []string{v}
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JwtSecret = v
	}
}

func applyDefaults(c *AppConfig) {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if len(c.Nats.Servers) == 0 {
		c.Nats.Servers = []string{"nats://127.0.0.1:4222"}
	}
	if c.Nats.Name == "" {
		c.Nats.Name = "pmessenger"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "pmessenger"
	}
	if c.Mongo.Bucket == "" {
		c.Mongo.Bucket = "attachments"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "chat-events"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 2 * time.Hour
	}
	if c.Gateway.NodeID <= 0 {
		c.Gateway.NodeID = 1
	}
	if c.Gateway.PresenceTTL <= 0 {
		c.Gateway.PresenceTTL = 60 * time.Second
	}
	if c.Gateway.FanoutWorkers <= 0 {
		c.Gateway.FanoutWorkers = 8
	}
	if c.Gateway.FanoutQueue <= 0 {
		c.Gateway.FanoutQueue = 1024
	}
	if c.Gateway.PublishTimeout <= 0 {
		c.Gateway.PublishTimeout = 2 * time.Second
	}
}
