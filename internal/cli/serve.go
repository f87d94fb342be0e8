package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"collab-hub/internal/hub"
	"collab-hub/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub in the foreground",
	RunE:  runServe,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running hub to shut down",
	RunE:  runStop,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	server := hub.NewServer(cfg, log)
	if err := server.LoadState(); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := server.WritePid(); err != nil {
		log.Warn("failed to write pid file", zap.Error(err))
	}
	defer server.RemovePid()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Socket.Enabled {
		unixTransport := transport.NewUnixTransport(cfg, server, log.Named("unix"))
		go func() {
			if err := unixTransport.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("unix transport failed", zap.Error(err))
			}
		}()
	}
	if cfg.HTTP.Enabled {
		httpTransport := transport.NewHTTPTransport(cfg, server, log.Named("http"))
		go func() {
			if err := httpTransport.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("http transport failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")
	server.Shutdown()
	return nil
}

func runStop(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "hub.pid"))
	if err != nil {
		return fmt.Errorf("hub not running")
	}
	pid := 0
	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%d", &pid); err != nil || pid <= 0 {
		return fmt.Errorf("invalid pid file")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal hub: %w", err)
	}
	fmt.Println("stop signal sent")
	return nil
}

func buildLogger(cfg hub.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Pretty {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
