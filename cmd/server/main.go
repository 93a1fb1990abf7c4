package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mlindgren/callbridge/pkg/datastore"
	"github.com/mlindgren/callbridge/pkg/logging"
	"github.com/mlindgren/callbridge/pkg/server"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (flags override)")
	addr := flag.String("addr", "", "HTTP/WebSocket bind address")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	dbPath := flag.String("db", "", "SQLite database file path")
	staticDir := flag.String("static", "", "Directory of client assets to serve at / (empty to disable)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid config file: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the config file.
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := datastore.NewProviderFactory(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
