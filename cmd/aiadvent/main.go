// aiadvent compares chat-completion answers across restrictions, models,
// temperatures and prompting strategies against an OpenAI-compatible API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/vendshop/aiadvent/internal/chat"
	"github.com/vendshop/aiadvent/internal/config"
	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/logging"
	"github.com/vendshop/aiadvent/internal/metrics"
	"github.com/vendshop/aiadvent/internal/models"
	"github.com/vendshop/aiadvent/internal/orchestrator"
	"github.com/vendshop/aiadvent/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Warning: No API key configured. Set DEEPSEEK_API_KEY or use --api-key.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := telemetry.Init(ctx, "aiadvent", version, cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	client := llm.NewClient(cfg.APIBase, llm.BearerToken(cfg.APIKey),
		llm.WithTimeout(cfg.Timeout),
		llm.WithLogger(logger),
	)
	modelMgr := models.NewManager(client)
	catalog := models.DefaultCatalog()

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithModelLister(modelMgr),
		orchestrator.WithSingleStreaming(cfg.Stream),
		orchestrator.WithTemperatures(cfg.SweepTemperatures...),
		orchestrator.WithRestrictionModel(cfg.RestrictionModel),
	}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, orchestrator.WithMetrics(metrics.New(reg)))

		shutdown := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	exec := executor.New(client,
		executor.WithLogger(logger),
		executor.WithTracer(tp.Tracer(executor.TracerName)),
	)
	orch := orchestrator.New(exec, catalog, opts...)
	defer orch.Close()

	if err := orch.SelectModel(cfg.Model); err != nil {
		logger.Warn("configured model is not in the catalog, keeping the default",
			zap.String("model", cfg.Model),
			zap.String("default", catalog.Default().ID),
		)
	}
	orch.LoadAvailableModels(ctx)

	session, err := chat.NewSession(cfg, orch, modelMgr, os.Stdout)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          string(session.Mode()) + "> ",
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("aiadvent - chat completion comparisons")
	fmt.Printf("Model: %s | Mode: %s | API: %s\n", orch.State().SelectedModel.ID, session.Mode(), cfg.APIBase)
	fmt.Println("Type /help for commands, /quit to exit.")

	readInput := func(prompt string) (string, error) {
		rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return line, err
	}

	return session.Run(ctx, readInput)
}

// serveMetrics exposes reg on addr and returns a function that stops the server.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Router(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".aiadvent")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "history")
}
