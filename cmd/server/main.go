package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Daneel-Li/storefront-pay/internal/app"
	"github.com/Daneel-Li/storefront-pay/internal/config"
	"github.com/Daneel-Li/storefront-pay/internal/handlers"
)

// startServer 启动HTTP服务器, TLS when a certificate is configured
func startServer(srv *http.Server, cfg *config.Config) {
	var err error
	if cfg.Tls.CertPath != "" {
		slog.Info("Starting HTTPS server: " + srv.Addr + "...")
		err = srv.ListenAndServeTLS(cfg.Tls.CertPath, cfg.Tls.KeyPath)
	} else {
		slog.Info("Starting HTTP server: " + srv.Addr + "...")
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// 数据库连接健康检查
func watchDatabase(ctx context.Context, c *app.Components) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := c.Repo.Ping(pctx); err != nil {
				slog.Error("Database connection health check failed", "error", err)
			}
			cancel()
		}
	}
}

func main() {
	configPath := flag.String("config", "", "path to config.json (default $PAY_CONFIG_PATH or ./config.json)")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// 设置日志级别
	app.SetupLogging(cfg.Loglevel, cfg.LogFormat)

	gdb, err := app.OpenDatabase(cfg)
	if err != nil {
		log.Fatal("Could not connect to the database: ", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := app.Build(cfg, gdb, reg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	router := handlers.NewRouter(handlers.NewPaymentHandler(c.Payments, cfg.CallbackURL()), handlers.RouterOptions{
		APIKey:   cfg.Auth.APIKey,
		JWT:      c.JWT,
		Health:   c.Repo,
		Gatherer: reg,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go watchDatabase(ctx, c)
	go startServer(srv, cfg)

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
