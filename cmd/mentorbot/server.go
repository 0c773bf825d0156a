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

	"github.com/mentorlab/mentorbot/internal/api"
	"github.com/mentorlab/mentorbot/internal/bot"
	"github.com/mentorlab/mentorbot/internal/config"
	"github.com/mentorlab/mentorbot/internal/feedback"
	"github.com/mentorlab/mentorbot/internal/gateway"
	"github.com/mentorlab/mentorbot/internal/gemini"
	"github.com/mentorlab/mentorbot/internal/ingest"
	"github.com/mentorlab/mentorbot/internal/joblock"
	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/resolver"
	"github.com/mentorlab/mentorbot/internal/scheduler"
	"github.com/mentorlab/mentorbot/internal/session"
	"github.com/mentorlab/mentorbot/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mentorbot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running mentorbot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mentorbot system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "mentorbot.pid")
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
	fmt.Fprintf(os.Stderr, "mentorbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start a second instance against the same database.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("mentorbot is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("mentorbot is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Warm the knowledge base cache.
	cache := knowledge.NewCache(store)
	if err := cache.Reload(); err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}
	slog.Info("knowledge base loaded", "suggestions", cache.Len())

	// Remote AI is optional; without a key the bot runs on local
	// suggestions and rules alone.
	gem, err := gemini.New(ctx, cfg.Gemini.APIKey, gemini.WithModel(cfg.Gemini.Model))
	if err != nil {
		return fmt.Errorf("initializing gemini client: %w", err)
	}
	strategies := []resolver.Strategy{resolver.NewLocal(cache)}
	if gem.Configured() {
		strategies = append(strategies, resolver.NewRemote(gem))
	} else {
		slog.Warn("no Gemini API key configured, remote answers disabled")
	}
	strategies = append(strategies, resolver.NewRules())
	res := resolver.New(strategies...)

	tg := gateway.NewClient(cfg.Telegram.Token)
	safe := gateway.NewSafeSender(tg, store)
	sessions := session.NewSessions()
	fb := feedback.NewService(store, cache)

	// Content ingestion pipeline.
	siteSpecs, err := cfg.Scrape.ParseSites()
	if err != nil {
		return err
	}
	sites := make([]ingest.Site, len(siteSpecs))
	for i, s := range siteSpecs {
		sites[i] = ingest.Site{Name: s.Name, URL: s.URL, ItemClass: s.ItemClass}
	}
	importer := ingest.NewImporter(ingest.NewScraper(sites), store, cache)

	// Periodic jobs.
	admins, err := cfg.Telegram.AdminIDs()
	if err != nil {
		return err
	}
	reminder, retry, heartbeat, ingestion, report, cleanup, err := cfg.Jobs.Durations()
	if err != nil {
		return err
	}
	jobs := scheduler.NewJobs(store, safe, tg, importer, joblock.NewRegistry(), admins)
	sched := scheduler.New(jobs.All(scheduler.Intervals{
		Reminder:   reminder,
		RetryDrain: retry,
		Heartbeat:  heartbeat,
		Ingestion:  ingestion,
		Report:     report,
		Cleanup:    cleanup,
	}), store)
	sched.Start(ctx)

	// Conversation loop.
	tgBot := bot.New(tg, safe, res, sessions, fb, store)
	botErrCh := make(chan error, 1)
	go func() {
		botErrCh <- tgBot.Run(ctx)
	}()

	// MCP server over stdio for agent clients.
	mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Cache: cache, Feedback: fb})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Admin HTTP API; disabled without a bearer token.
	var srv *http.Server
	errCh := make(chan error, 1)
	if cfg.Server.Token != "" {
		handler := api.NewAppHandler(api.AppDeps{Store: store, Cache: cache, Token: cfg.Server.Token})
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
		srv = &http.Server{Addr: addr, Handler: handler}
		go func() {
			fmt.Fprintf(os.Stderr, "mentorbot admin API listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()
	} else {
		slog.Warn("no server.token configured, admin API disabled")
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case err := <-botErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("update loop error: %w", err)
		}
	}
	stop()

	sched.Wait()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("mentorbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop mentorbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to mentorbot (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)

	resp, err := client.Get(serverURL + "/health")
	running := err == nil
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	}

	if cfg.Gemini.APIKey != "" {
		printStatus("Remote AI", "enabled (%s)", cfg.Gemini.Model)
	} else {
		printStatus("Remote AI", "disabled (no API key)")
	}

	if running && cfg.Server.Token != "" {
		c, err := newAPIClient()
		if err == nil {
			if healthResp, err := c.get(context.Background(), "/health"); err == nil {
				var health map[string]any
				if decodeJSON(healthResp, &health) == nil {
					printStatus("Health", "%v", health["status"])
					printStatus("Suggestions", "%v", health["suggestions"])
					printStatus("Retry queue", "%v", health["retry_queue"])
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
