// Command atmd runs the agent session monitoring daemon: it loads
// configuration, starts the registry actor and Unix socket server, and
// serves until SIGINT/SIGTERM, reloading configuration on SIGHUP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/agent-tmux-monitor/daemon/internal/config"
	"github.com/agent-tmux-monitor/daemon/internal/registry"
	"github.com/agent-tmux-monitor/daemon/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to $XDG_CONFIG_HOME/atm/config.yaml)")
	socketPath := flag.String("socket", "", "Override the Unix socket path")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("atmd: failed to load config: %v", err)
	}
	if *socketPath != "" {
		cfg.Server.SocketPath = *socketPath
	}

	reg := registry.New(registry.Config{
		MaxSessions:      cfg.Registry.MaxSessions,
		StaleThreshold:   cfg.Registry.StaleThreshold,
		CleanupInterval:  cfg.Registry.CleanupInterval,
		MaxSessionAge:    cfg.Registry.MaxSessionAge,
		CommandQueueSize: cfg.Registry.QueueCapacity,
		ToolHistoryLimit: cfg.Registry.ToolHistoryLimit,
	})
	srv := server.New(cfg, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				log.Printf("atmd: SIGHUP received, reloading %s", cfgPath)
				if err := srv.Reload(cfgPath); err != nil {
					log.Printf("atmd: config reload failed, keeping prior configuration: %v", err)
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Println("atmd: shutting down")
				cancel()
				return
			}
		}
	}()

	log.Printf("atmd: listening on %s", cfg.Server.SocketPath)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("atmd: server error: %v", err)
	}
}
