package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/Daneel-Li/storefront-pay/internal/config"
	"github.com/Daneel-Li/storefront-pay/internal/dao"
	"github.com/Daneel-Li/storefront-pay/internal/dao/migrations"
	"github.com/Daneel-Li/storefront-pay/internal/events"
	"github.com/Daneel-Li/storefront-pay/internal/gateway"
	"github.com/Daneel-Li/storefront-pay/internal/metrics"
	"github.com/Daneel-Li/storefront-pay/internal/services"
	"github.com/Daneel-Li/storefront-pay/internal/services/payment"
	"github.com/Daneel-Li/storefront-pay/pkg/db"
)

const DefaultConfigPath = "config.json"

// LoadConfig loads .env (if any) and then the JSON config. An empty path falls back
// to PAY_CONFIG_PATH, then config.json.
func LoadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env failed", "error", err)
	}
	if path == "" {
		path = os.Getenv("PAY_CONFIG_PATH")
	}
	if path == "" {
		path = DefaultConfigPath
	}
	return config.Load(path)
}

func SetupLogging(level, format string) {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if strings.ToLower(format) == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
}

// OpenDatabase 初始化数据库连接, migrating unless the config says otherwise.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	c := cfg.Database
	gdb, err := db.Open(db.Config{
		Driver:       c.Driver,
		DSN:          c.DSN,
		Username:     c.Username,
		Password:     c.Password,
		Host:         c.Host,
		Port:         c.Port,
		DBName:       c.DBName,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	if c.SkipMigrate {
		return gdb, nil
	}
	if err := migrations.Up(gdb, c.Driver); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

// Components is everything the payment paths need, built from one config.
type Components struct {
	Repo      *dao.GormRepository
	Gateway   *gateway.HTTPClient
	Publisher events.Publisher
	Metrics   *metrics.PaymentMetrics
	Payments  *payment.Service
	JWT       services.JWTService

	closers []func() error
}

// Build 初始化服务容器. reg may be nil, in which case metrics are not registered.
func Build(cfg *config.Config, gdb *gorm.DB, reg prometheus.Registerer) (*Components, error) {
	c := &Components{Repo: dao.NewGormRepository(gdb)}
	if reg != nil {
		c.Metrics = metrics.NewPaymentMetrics(reg)
	}

	gw := cfg.Gateway
	opts := gateway.Options{
		BaseURL:        gw.BaseURL,
		KeyID:          gw.KeyID,
		KeySecret:      gw.KeySecret,
		Timeout:        gw.Timeout(),
		MaxQPS:         gw.MaxQPS,
		MaxConcurrency: gw.MaxConcurrency,
	}
	if c.Metrics != nil {
		opts.Observer = c.Metrics
	}
	c.Gateway = gateway.NewHTTPClient(opts)

	c.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		c.closers = append(c.closers, kp.Close)
		c.Publisher = events.NewAsyncPublisher(kp, 16, 5*time.Second)
		slog.Info("payment events go to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	svc, err := payment.NewService(c.Repo, c.Gateway, c.Publisher, c.Metrics, payment.Options{
		KeyID:         gw.KeyID,
		KeySecret:     gw.KeySecret,
		WebhookSecret: gw.WebhookSecret,
		Currency:      gw.Currency,
	})
	if err != nil {
		return nil, err
	}
	c.Payments = svc
	c.JWT = services.NewJWTService(cfg.Auth.JwtKey, cfg.Auth.JwtIssuer)
	return c, nil
}

func (c *Components) Close() {
	for _, f := range c.closers {
		if err := f(); err != nil {
			slog.Warn("close component failed", "error", err)
		}
	}
}
