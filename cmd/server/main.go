// Package main is the entry point for the kandev task orchestration
// server. All client communication happens over a single WebSocket
// namespace - no REST API beyond the health check.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/kandev/internal/agentclient"
	"github.com/kandev/kandev/internal/common/config"
	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/conversation"
	"github.com/kandev/kandev/internal/extension"
	"github.com/kandev/kandev/internal/gateway"
	"github.com/kandev/kandev/internal/llm"
	"github.com/kandev/kandev/internal/logbus"
	"github.com/kandev/kandev/internal/stuck"
	"github.com/kandev/kandev/internal/task"
	ws "github.com/kandev/kandev/internal/wsproto"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "web" {
		fmt.Fprintln(os.Stderr, "usage: kandev web [--port N]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("web", flag.ExitOnError)
	port := fs.Int("port", 0, "HTTP/WebSocket port (default 5000, or server.port from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := logbus.NewBus(cfg.Bus.RingCapacity, log)
	capture := logbus.NewCapture(bus, "task_manager")

	engine := agentclient.NewMockEngine(log)

	dispatcher := ws.NewDispatcher()
	registry := gateway.NewRegistry(dispatcher, log)
	bus.SetSink(registry)

	detectorCfg := stuck.Config{
		WindowSize:        cfg.StuckDetector.WindowSize,
		EvaluateEvery:     cfg.StuckDetector.EvaluateEvery,
		RepeatingN:        cfg.StuckDetector.RepeatingN,
		RepeatingMinCount: cfg.StuckDetector.RepeatingMinCount,
		SimilarityThresh:  cfg.StuckDetector.SimilarityThreshold,
		StepTimeout:       cfg.StuckDetector.StepTimeout(),
		NoProgressWindow:  cfg.StuckDetector.NoProgressWindow(),
		Cooldown:          cfg.StuckDetector.Cooldown(),
	}
	taskMgr := task.NewManager(ctx, engine, detectorCfg, cfg.Conversation.HelpWaitTimeout(), capture, registry, log)

	fallback := llm.NewLocalClarifier()
	var primary llm.Client
	if cfg.Conversation.AnthropicAPIKey != "" {
		client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:      cfg.Conversation.AnthropicAPIKey,
			Model:       cfg.Conversation.Model,
			MaxTokens:   cfg.Conversation.MaxTokens,
			Temperature: cfg.Conversation.Temperature,
		})
		if err != nil {
			log.Warn("anthropic client unavailable, using local clarifier only", zap.Error(err))
		} else {
			primary = client
		}
	} else {
		log.Info("no ANTHROPIC_API_KEY configured, conversation manager runs on local clarifier only")
	}
	convMgr := conversation.NewManager(primary, fallback, log)

	gateway.RegisterHealthHandler(dispatcher)
	extension.Register(dispatcher, taskMgr, convMgr, bus, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(gctx)
		return nil
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "kandev"})
	})

	wsHandler := gateway.NewHandler(registry, log)
	router.GET("/extension", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	cancel()
	if err := g.Wait(); err != nil {
		log.Error("server goroutine exited with error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version, Sec-WebSocket-Protocol")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
