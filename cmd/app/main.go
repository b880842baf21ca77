package main

import (
	"errors"
	"log"
	"os"

	"CryptoAssist/internal/di"
	"CryptoAssist/pkg/config"

	flag "github.com/spf13/pflag"
)

func main() {
	// Parse flags
	configPath := flag.StringP("config", "c", "config/config.yaml", "config file path")
	mode := flag.StringP("mode", "m", "", "run mode: full, agent or api (overrides config)")
	trading := flag.Bool("trading", false, "enable auto trading (paper fills)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn or error")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath, func(c *config.Config) {
		if *mode != "" {
			c.Mode = *mode
		}
		if *trading {
			c.Trading.AutoTrading = true
		}
		if *logLevel != "" {
			c.Log.Level = *logLevel
		}
	})
	if err != nil {
		if errors.Is(err, config.ErrStartupConfig) {
			log.Fatalf("invalid configuration: %v", err)
		}
		log.Fatalf("config load failed: %v", err)
	}

	if cfg.Trading.AutoTrading {
		log.Printf("WARNING: auto trading is enabled; approved signals will be executed")
	}
	log.Printf("env=%s mode=%s", cfg.Environment, cfg.Mode)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
