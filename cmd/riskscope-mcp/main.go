package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskscope/riskscope/pkg/config"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/mcp"
	"github.com/riskscope/riskscope/pkg/service"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("RISKSCOPE_CONFIG"), "YAML config file")
	flag.Parse()

	logger.Infof("starting riskscope MCP server %s", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	alerts := &mcp.Alerts{}
	svc, err := service.New(ctx, cfg, alerts)
	if err != nil {
		logger.Errorf("failed to start service: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	mcpServer, err := mcp.NewMCPServer(svc, alerts, version)
	if err != nil {
		logger.Errorf("failed to create MCP server: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := mcpServer.Start(ctx); err != nil {
			logger.Errorf("MCP server error: %v", err)
		}
		cancel()
	}()

	select {
	case <-sigChan:
		logger.Infof("received shutdown signal")
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	logger.Sync()
}
