// Command gateway is the content-moderation gateway server.
//
// It accepts inbound moderation requests, fans them out to the configured
// set of upstream analyzers (policy, toxicity, bias, pii, secrets,
// jailbreak, brand, format, gibberish), aggregates their verdicts, and
// returns a unified decision plus a sanitized copy of the input text.
//
// Usage:
//
//	# Defaults (reads .env / gateway-config.json if present)
//	./gateway
//
//	# Custom ports, admin API enabled
//	GATEWAY_PORT=8080 ADMIN_PORT=8090 ADMIN_TOKEN=secret ./gateway
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"moderation-gateway/internal/analyzer"
	"moderation-gateway/internal/breaker"
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/executor"
	"moderation-gateway/internal/gateway"
	"moderation-gateway/internal/logger"
	"moderation-gateway/internal/management"
	"moderation-gateway/internal/metrics"
)

func main() {
	cfg := config.Load()
	printBanner(cfg)

	log := logger.New("GATEWAY", cfg.LogLevel)

	m := metrics.New()
	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Window:           cfg.BreakerWindow,
		RatioThreshold:   cfg.BreakerRatioThreshold,
		MinimumSamples:   cfg.BreakerMinimumSamples,
		Cooldown:         cfg.BreakerCooldown,
	})
	client := analyzer.NewClient(logger.New("ANALYZER", cfg.LogLevel))
	exec := executor.New(cfg, breakers, client, m, logger.New("EXECUTOR", cfg.LogLevel))

	srv := gateway.New(cfg, exec, breakers, m, logger.New("HTTP", cfg.LogLevel))
	app := srv.App()

	// Admin introspection API is off unless an AdminPort is configured
	// (spec.md's additive observability surface, never load-bearing for
	// /validate itself).
	if cfg.AdminPort != 0 {
		admin := management.New(cfg, breakers, m, cfg.AdminToken)
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				log.Fatalf("admin_listen_failed", "%v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutdown_signal_received", "draining in-flight requests")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Errorf("shutdown_error", "%v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.GatewayPort)
	log.Infof("listening", "addr=%s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("listen_failed", "%v", err)
	}
}

func printBanner(cfg *config.Config) {
	adminStatus := "disabled"
	if cfg.AdminPort != 0 {
		adminStatus = fmt.Sprintf("enabled on :%d", cfg.AdminPort)
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          Content Moderation Gateway  (Go)             ║
╚══════════════════════════════════════════════════════╝
  Gateway port    : %d
  Admin API       : %s
  Global deadline : %s
  Per-call timeout: %s
  Breaker window  : %d samples, trip at %d failures or ratio > %.2f
  Max text size   : %d bytes

  Check health:
    curl http://localhost:%d/health
`, cfg.GatewayPort, adminStatus, cfg.GlobalDeadline, cfg.PerCallTimeout,
		cfg.BreakerWindow, cfg.BreakerFailureThreshold, cfg.BreakerRatioThreshold,
		cfg.MaxTextBytes, cfg.GatewayPort)
}
