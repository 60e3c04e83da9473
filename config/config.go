package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	PayTrack  PayTrackConfig  `yaml:"paytrack"`
	Receivers ReceiversConfig `yaml:"receivers"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString returns an empty string when no database host is configured; the
// processes then fall back to the in-memory store.
func (c DatabaseConfig) ConnString() string {
	if c.Host == "" {
		return ""
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	SMSReceivedTopicName     string `yaml:"sms_received_topic_name"`
	SessionVerifiedTopicName string `yaml:"session_verified_topic_name"`
}

func (c KafkaConfig) Brokers() []string {
	if c.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PayTrackConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	LogLevel           string `yaml:"log_level"`

	SessionValiditySeconds   int `yaml:"session_validity_seconds"`
	SessionCacheTTLSeconds   int `yaml:"session_cache_ttl_seconds"`
	SubmitRateLimitPerMinute int `yaml:"submit_rate_limit_per_minute"`

	// Match window around the session lifetime:
	// [created_at - lead, expires_at + grace]. Defaults: 1h lead, 15m grace.
	ReceiptLeadSeconds  int `yaml:"receipt_lead_seconds"`
	ReceiptGraceSeconds int `yaml:"receipt_grace_seconds"`

	// Offset of the wall clock printed in SMS texts, minutes east of UTC.
	SMSTimezoneOffsetMinutes int `yaml:"sms_timezone_offset_minutes"`

	FulfillmentTimeoutSeconds int    `yaml:"fulfillment_timeout_seconds"`
	FulfillmentWebhookURL     string `yaml:"fulfillment_webhook_url"`

	WorkerSweepIntervalSeconds int    `yaml:"worker_sweep_interval_seconds"`
	WorkerBatchSize            int    `yaml:"worker_batch_size"`
	WorkerConcurrency          int    `yaml:"worker_concurrency"`
	WorkerHTTPAddr             string `yaml:"worker_http_addr"`
}

type ReceiversConfig struct {
	// Active receivers are offered to new sessions.
	Active []string `yaml:"active"`
	// Retired receivers no longer back new sessions but their receipts are still accepted.
	Retired []string `yaml:"retired"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
