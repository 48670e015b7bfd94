// Package config provides configuration management for the application.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	WhatsApp   WhatsAppConfig   `mapstructure:"whatsapp"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WhatsAppConfig configures the Cloud API delivery client.
type WhatsAppConfig struct {
	BaseURL        string               `mapstructure:"base_url"`
	PhoneNumberID  string               `mapstructure:"phone_number_id"`
	AccessToken    string               `mapstructure:"access_token"`
	Timeout        int                  `mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

// QueueConfig configures the Redis-backed job queue.
type QueueConfig struct {
	JobList        string  `mapstructure:"job_list"`
	ProcessingList string  `mapstructure:"processing_list"`
	DeadLetterList string  `mapstructure:"dead_letter_list"`
	MaxRetries     int     `mapstructure:"max_retries"`
	RetryBaseDelay int     `mapstructure:"retry_base_delay"`
	RetryMaxDelay  int     `mapstructure:"retry_max_delay"`
	RetryJitter    float64 `mapstructure:"retry_jitter"`
}

type WorkerConfig struct {
	Concurrency         int     `mapstructure:"concurrency"`
	JobTimeout          int     `mapstructure:"job_timeout"`
	MaxBodyParams       int     `mapstructure:"max_body_params"`
	MaxButtonParams     int     `mapstructure:"max_button_params"`
	SendRate            float64 `mapstructure:"send_rate"`
	SendBurst           int     `mapstructure:"send_burst"`
	HealthCheckInterval int     `mapstructure:"health_check_interval"`
	HealthPort          string  `mapstructure:"health_port"`
	UnhealthyThreshold  int     `mapstructure:"unhealthy_threshold"`
}

type WebhookConfig struct {
	VerifyToken        string `mapstructure:"verify_token"`
	AppSecret          string `mapstructure:"app_secret"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
	ProcessorPoolSize  int    `mapstructure:"processor_pool_size"`
	ProcessorQueueSize int    `mapstructure:"processor_queue_size"`
	EventTimeout       int    `mapstructure:"event_timeout"`
	StaleAfterHours    int    `mapstructure:"stale_after_hours"`
}

// SchedulerConfig drives the scheduled-campaign dispatch loop.
type SchedulerConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("whatsapp.base_url", "https://graph.facebook.com/v18.0")
	viper.SetDefault("whatsapp.timeout", 15)
	viper.SetDefault("whatsapp.circuit_breaker.max_requests", 3)
	viper.SetDefault("whatsapp.circuit_breaker.interval", 60)
	viper.SetDefault("whatsapp.circuit_breaker.timeout", 60)
	viper.SetDefault("whatsapp.circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("whatsapp.circuit_breaker.consecutive_fails", 5)
	viper.SetDefault("queue.job_list", "jobs:outbound")
	viper.SetDefault("queue.processing_list", "jobs:processing")
	viper.SetDefault("queue.dead_letter_list", "jobs:dead")
	viper.SetDefault("queue.max_retries", 3)
	viper.SetDefault("queue.retry_base_delay", 2)
	viper.SetDefault("queue.retry_max_delay", 60)
	viper.SetDefault("queue.retry_jitter", 0.2)
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.health_port", "8081")
	viper.SetDefault("worker.job_timeout", 30)
	viper.SetDefault("worker.max_body_params", 10)
	viper.SetDefault("worker.max_button_params", 3)
	viper.SetDefault("worker.send_rate", 20)
	viper.SetDefault("worker.send_burst", 40)
	viper.SetDefault("worker.health_check_interval", 30)
	viper.SetDefault("worker.unhealthy_threshold", 3)
	viper.SetDefault("webhook.default_country_code", "91")
	viper.SetDefault("webhook.processor_pool_size", 8)
	viper.SetDefault("webhook.processor_queue_size", 256)
	viper.SetDefault("webhook.event_timeout", 10)
	viper.SetDefault("webhook.stale_after_hours", 24)
	viper.SetDefault("scheduler.interval_minutes", 1)
	viper.SetDefault("middleware.rate_limit", 100)
	viper.SetDefault("middleware.rate_limit_burst", 1000)
	viper.SetDefault("middleware.enable_cors", true)
	viper.SetDefault("middleware.allowed_origins", []string{"*"})

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}
