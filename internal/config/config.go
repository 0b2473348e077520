package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/cme-data-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/cme-data-etl/internal/domain"
)

// DefaultDONKIURL is the CME analysis endpoint of NASA's DONKI API.
const DefaultDONKIURL = "https://api.nasa.gov/DONKI/CMEAnalysis"

// Config holds all job settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	DONKIBaseURL string
	DONKIAPIKey  string
	DONKITimeout time.Duration

	Warehouse            warehouse.Config
	WarehouseCreateTable bool

	Rules domain.Rules

	// Kafka notification sink; disabled when no brokers are set.
	NotifyKafkaBrokers []string
	NotifyKafkaTopic   string

	// Raw response archive; disabled when MongoURI is empty.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Pushgateway metrics export; disabled when PushgatewayURL is empty.
	PushgatewayURL string
	PushJob        string
}

// Load reads configuration from environment variables, applying defaults where
// unset, and validates it. All four warehouse settings are required.
func Load() (*Config, error) {
	timeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("DONKI_TIMEOUT", "30s"))
	if err != nil || timeout <= 0 {
		return nil, errors.New("invalid DONKI_TIMEOUT")
	}

	rules, err := LoadRules(os.Getenv("RULES_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		DONKIBaseURL: sharedcfg.EnvOrDefault("DONKI_BASE_URL", DefaultDONKIURL),
		DONKIAPIKey:  sharedcfg.EnvOrDefault("DONKI_API_KEY", "DEMO_KEY"),
		DONKITimeout: timeout,

		Warehouse: warehouse.Config{
			URL:      envFirst("WAREHOUSE_URL", "REDSHIFT_URL"),
			Schema:   envFirst("WAREHOUSE_SCHEMA", "REDSHIFT_SCHEMA"),
			User:     envFirst("WAREHOUSE_USER", "REDSHIFT_USER"),
			Password: envFirst("WAREHOUSE_PASSWORD", "REDSHIFT_PASSWORD"),
		},
		WarehouseCreateTable: os.Getenv("WAREHOUSE_CREATE_TABLE") == "true",

		Rules: rules,

		NotifyKafkaTopic: sharedcfg.EnvOrDefault("NOTIFY_KAFKA_TOPIC", "cme-etl-notifications"),

		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   sharedcfg.EnvOrDefault("MONGO_DATABASE", "space_weather"),
		MongoCollection: sharedcfg.EnvOrDefault("MONGO_COLLECTION", "donki_cme_responses"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		PushJob:        sharedcfg.EnvOrDefault("PUSHGATEWAY_JOB", "cme_etl"),
	}
	if brokers := os.Getenv("NOTIFY_KAFKA_BROKERS"); brokers != "" {
		cfg.NotifyKafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.Warehouse.Validate(); err != nil {
		return err
	}
	if c.DONKIBaseURL == "" {
		return errors.New("DONKI_BASE_URL is required")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.LogFormat)
	}
	if len(c.NotifyKafkaBrokers) > 0 && c.NotifyKafkaTopic == "" {
		return errors.New("NOTIFY_KAFKA_TOPIC is required when NOTIFY_KAFKA_BROKERS is set")
	}
	return nil
}

// LoadRules reads plausibility thresholds from a YAML file. An empty path
// returns the defaults; thresholds omitted from the file keep their defaults.
func LoadRules(path string) (domain.Rules, error) {
	rules := domain.DefaultRules()
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Rules{}, fmt.Errorf("read rules file %q: %w", path, err)
	}

	var file struct {
		Rules domain.Rules `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Rules{}, fmt.Errorf("parse rules file %q: %w", path, err)
	}

	if file.Rules.MaxSpeed != 0 {
		rules.MaxSpeed = file.Rules.MaxSpeed
	}
	if file.Rules.MaxHalfAngle != 0 {
		rules.MaxHalfAngle = file.Rules.MaxHalfAngle
	}
	if err := rules.Validate(); err != nil {
		return domain.Rules{}, fmt.Errorf("rules file %q: %w", path, err)
	}
	return rules, nil
}

// envFirst returns the first non-empty value among the given variables.
func envFirst(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
