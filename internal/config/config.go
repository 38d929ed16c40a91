package config

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Tls struct {
	CertPath string `json:"cert_path" env:"PAY_TLS_CERT_PATH"`
	KeyPath  string `json:"key_path" env:"PAY_TLS_KEY_PATH"`
}

// DatabaseConfig 存储数据库连接信息
type DatabaseConfig struct {
	Driver       string `json:"driver" env:"PAY_DB_DRIVER" env-default:"mysql"` // mysql | postgres
	DSN          string `json:"dsn" env:"PAY_DB_DSN"`                           // overrides the fields below
	Username     string `json:"username" env:"PAY_DB_USERNAME"`
	Password     string `json:"password" env:"PAY_DB_PASSWORD"`
	Host         string `json:"host" env:"PAY_DB_HOST" env-default:"127.0.0.1"`
	Port         string `json:"port" env:"PAY_DB_PORT"`
	DBName       string `json:"dbname" env:"PAY_DB_NAME"`
	MaxOpenConns int    `json:"max_open_conns" env:"PAY_DB_MAX_OPEN_CONNS" env-default:"100"`
	MaxIdleConns int    `json:"max_idle_conns" env:"PAY_DB_MAX_IDLE_CONNS" env-default:"20"`
	SkipMigrate  bool   `json:"skip_migrate" env:"PAY_DB_SKIP_MIGRATE"`
}

// GatewayConfig 支付网关相关参数
type GatewayConfig struct {
	BaseURL        string `json:"base_url" env:"PAY_GATEWAY_BASE_URL" env-default:"https://api.razorpay.com"`
	KeyID          string `json:"key_id" env:"PAY_GATEWAY_KEY_ID"`
	KeySecret      string `json:"key_secret" env:"PAY_GATEWAY_KEY_SECRET"`
	WebhookSecret  string `json:"webhook_secret" env:"PAY_GATEWAY_WEBHOOK_SECRET"`
	Currency       string `json:"currency" env:"PAY_GATEWAY_CURRENCY" env-default:"INR"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"PAY_GATEWAY_TIMEOUT_SECONDS" env-default:"10"`
	MaxQPS         int    `json:"max_qps" env:"PAY_GATEWAY_MAX_QPS" env-default:"20"`
	MaxConcurrency int32  `json:"max_concurrency" env:"PAY_GATEWAY_MAX_CONCURRENCY" env-default:"64"`
}

func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type StorefrontConfig struct {
	BaseURL      string `json:"base_url" env:"PAY_STOREFRONT_BASE_URL"`
	CallbackPath string `json:"callback_path" env:"PAY_STOREFRONT_CALLBACK_PATH" env-default:"/payment-callback"`
}

type AuthConfig struct {
	APIKey     string `json:"api_key" env:"PAY_API_KEY"`
	JwtIssuer  string `json:"jwt_issuer" env:"PAY_JWT_ISSUER"`
	JwtKeyPath string `json:"jwt_key_path" env:"PAY_JWT_KEY_PATH"` // jwt加密密钥路径
	JwtKey     []byte `json:"-"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" env:"PAY_KAFKA_BROKERS" env-separator:","`
	Topic   string   `json:"topic" env:"PAY_KAFKA_TOPIC" env-default:"payment-events"`
}

type Config struct {
	ServerPort int32            `json:"server_port" env:"PAY_SERVER_PORT" env-default:"8080"`
	Tls        Tls              `json:"tls"`
	Database   DatabaseConfig   `json:"database"`
	Gateway    GatewayConfig    `json:"gateway"`
	Storefront StorefrontConfig `json:"storefront"`
	Auth       AuthConfig       `json:"auth"`
	Kafka      KafkaConfig      `json:"kafka"`
	Loglevel   string           `json:"log_level" env:"PAY_LOG_LEVEL" env-default:"info"`
	LogFormat  string           `json:"log_format" env:"PAY_LOG_FORMAT" env-default:"text"`
}

// Load reads the JSON config at path; environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if cfg.Auth.JwtKeyPath != "" {
		pemData, err := os.ReadFile(cfg.Auth.JwtKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read jwt key: %w", err)
		}
		// 解码PEM格式的密钥
		block, _ := pem.Decode(pemData)
		if block == nil {
			return nil, errors.New("jwt key: invalid PEM")
		}
		cfg.Auth.JwtKey = block.Bytes
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs the payment paths cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.KeyID == "" {
		errs = append(errs, errors.New("gateway.key_id is required"))
	}
	if c.Gateway.KeySecret == "" {
		errs = append(errs, errors.New("gateway.key_secret is required"))
	}
	if c.Gateway.WebhookSecret == "" {
		errs = append(errs, errors.New("gateway.webhook_secret is required"))
	}
	if c.Storefront.BaseURL == "" {
		errs = append(errs, errors.New("storefront.base_url is required"))
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// CallbackURL is where the browser is sent after the gateway redirect.
func (c *Config) CallbackURL() string {
	return c.Storefront.BaseURL + c.Storefront.CallbackPath
}
