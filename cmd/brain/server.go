package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/forgefit/brain/internal/api"
	"github.com/forgefit/brain/internal/cache"
	"github.com/forgefit/brain/internal/composer"
	"github.com/forgefit/brain/internal/config"
	"github.com/forgefit/brain/internal/events"
	"github.com/forgefit/brain/internal/gaps"
	"github.com/forgefit/brain/internal/knowledge"
	"github.com/forgefit/brain/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the brain server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running brain server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show brain server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "brain.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "brain version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to double-start: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the brain: cache, collectors, aggregator, detector, composer.
	cacheMgr := cache.New()
	clock := knowledge.RealClock()
	collectors := []knowledge.Collector{
		knowledge.NewTrainingCollector(store, clock),
		knowledge.NewEquipmentCollector(store),
		knowledge.NewNutritionCollector(store, clock),
		knowledge.NewFastingCollector(store, clock),
		knowledge.NewBodyCollector(store, clock),
		knowledge.NewEnergyCollector(store, clock),
		knowledge.NewTemporalCollector(store, clock),
		knowledge.NewTodayCollector(store, clock),
		knowledge.NewPerinatalCollector(store),
	}
	aggregator := knowledge.NewAggregatorWithClock(store, collectors, cacheMgr, clock, cfg.Brain.CollectorTimeout)
	detector := gaps.NewDetectorWithClock(cfg.Brain.GapThreshold, clockAdapter{clock})
	comp := composer.New(cfg.Brain.MaxPromptTokens)

	// HTTP handler and server.
	handler := api.NewHandler(api.Deps{
		Brain:   aggregator,
		Gaps:    detector,
		Prompts: comp,
		Cache:   cacheMgr,
		Token:   cfg.API.Token,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Cache invalidation worker over the mutation-events queue.
	worker := events.NewWorker(store, cacheMgr, time.Duration(cfg.Brain.EventPollMs)*time.Millisecond)
	go worker.Run(ctx)

	// MCP server (stdio transport) for the assistant runtime.
	if cfg.Server.MCPMode == "stdio" {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Brain:   aggregator,
			Gaps:    detector,
			Prompts: comp,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("mcp server stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("brain listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// clockAdapter bridges the knowledge.Clock to the gaps package.
type clockAdapter struct{ c knowledge.Clock }

func (a clockAdapter) Now() time.Time { return a.c.Now() }

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("brain does not appear to be running (no PID file)")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("process %d not found", pid)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("signalling process %d: %w", pid, err)
	}
	printSuccess("Sent SIGTERM to brain (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.get(context.Background(), "/health")
	if err != nil {
		printWarning("brain is not running on port %d", cfg.Server.Port)
		return nil
	}
	defer resp.Body.Close()

	var health map[string]string
	if err := decodeJSON(resp, &health); err != nil {
		return err
	}
	printStatus("Server", "running on port %d (%s)", cfg.Server.Port, health["status"])

	statsResp, err := client.get(context.Background(), "/v1/cache/stats")
	if err != nil {
		return nil
	}
	defer statsResp.Body.Close()
	var stats struct {
		Total   int `json:"total"`
		Fresh   int `json:"fresh"`
		Expired int `json:"expired"`
	}
	if err := decodeJSON(statsResp, &stats); err == nil {
		printStatus("Cache", "%d entries (%d fresh, %d expired)", stats.Total, stats.Fresh, stats.Expired)
	}
	return nil
}
