// Service entry point: a three-role conversation host with an HTTP surface
// for observers, feedback, health, and metrics.
//
// Usage:
//
//	trioflow serve                        # run a conversation and serve it
//	trioflow serve --config config.yaml   # with a config file
//	trioflow health                       # probe a running instance
//	trioflow token --secret s             # mint a viewer bearer token
//	trioflow version                      # show version info
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kerastion/trioflow/config"
	"github.com/Kerastion/trioflow/internal/metrics"
	"github.com/Kerastion/trioflow/internal/server"
	"github.com/Kerastion/trioflow/llm"
	"github.com/Kerastion/trioflow/llm/openaicompat"
	"github.com/Kerastion/trioflow/orchestrator"
	"github.com/Kerastion/trioflow/policy"
	"github.com/Kerastion/trioflow/store"
)

// Build-time injected.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "health":
		runHealthCheck(os.Args[2:])
	case "token":
		runToken(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	turnDelay := fs.Duration("turn-delay", 2*time.Second, "Pause between turns")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := config.BuildLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting trioflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("topic", cfg.Session.Topic),
	)

	provider := buildProvider(cfg.LLM, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector("trioflow", registry, logger)

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	if st != nil {
		defer st.Close()
	}

	hub := server.NewHub(cfg.Server.WSBuffer, logger)

	sessCfg := orchestrator.Config{
		Topic:         cfg.Session.Topic,
		MaxTurns:      cfg.Session.MaxTurns,
		Model:         cfg.Session.Model,
		Strategy:      policy.Strategy(cfg.Session.Strategy),
		Stream:        cfg.Session.Stream,
		HistoryWindow: cfg.Session.HistoryWindow,
		MaxTokens:     cfg.Session.MaxTokens,
		ContextWindow: cfg.Session.ContextWindow,
		AutosaveEvery: cfg.Session.AutosaveEvery,
		Evolution:     cfg.Evolution,
	}
	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(collector),
		orchestrator.WithObserver(hub),
	}
	if st != nil {
		opts = append(opts, orchestrator.WithStore(st))
	}

	sess, err := orchestrator.NewSession(sessCfg, provider, opts...)
	if err != nil {
		logger.Fatal("failed to create session", zap.Error(err))
	}
	guard := server.NewSessionGuard(sess)

	router := server.NewRouter(server.RouterConfig{
		Session:   guard,
		Hub:       hub,
		Provider:  provider,
		Gatherer:  registry,
		JWTSecret: cfg.Server.JWTSecret,
		Logger:    logger,
	})

	mgr := server.NewManager(router, server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := mgr.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() {
			if err := guard.Close(context.Background()); err != nil {
				logger.Warn("session close failed", zap.Error(err))
			}
		}()
		for turn := 0; turn < cfg.Session.MaxTurns; turn++ {
			if gctx.Err() != nil {
				return nil
			}
			view, err := guard.Step(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("conversation step failed: %w", err)
			}
			logger.Info("turn",
				zap.Int("n", view.Turn),
				zap.String("role", string(view.Utterance.Role)),
				zap.Bool("error_turn", view.Utterance.IsError))

			select {
			case <-gctx.Done():
				return nil
			case <-time.After(*turnDelay):
			}
		}
		logger.Info("conversation finished", zap.Int("turns", cfg.Session.MaxTurns))
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case err := <-mgr.Errors():
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return mgr.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("exiting with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("trioflow stopped")
}

// buildProvider stacks the retry and rate-limit wrappers onto the
// OpenAI-compatible client per the LLM config.
func buildProvider(cfg config.LLMConfig, logger *zap.Logger) llm.Provider {
	var provider llm.Provider = openaicompat.New(openaicompat.Config{
		ProviderName: cfg.Provider,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
	}, logger)

	if cfg.MaxRetries > 0 {
		retryCfg := llm.DefaultRetryConfig()
		retryCfg.MaxRetries = cfg.MaxRetries
		provider = llm.NewRetryProvider(provider, retryCfg, logger)
	}
	if cfg.RequestsPerSecond > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RequestsPerSecond, cfg.Burst, logger)
	}
	return provider
}

// openStore picks the persistence backend; "none" returns nil.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewGormStore(cfg.Store.DSN, logger)
	case "redis":
		return store.NewRedisStore(cfg.Redis, logger)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", "", "JWT signing secret (must match server config)")
	subject := fs.String("subject", "viewer", "Token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	fs.Parse(args)

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "--secret is required")
		os.Exit(1)
	}
	token, err := server.IssueToken(*secret, *subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func printVersion() {
	fmt.Printf("trioflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`trioflow - three-role conversation host

Usage:
  trioflow <command> [options]

Commands:
  serve     Run a conversation and serve its HTTP surface
  health    Check a running instance
  token     Mint a bearer token for the API
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>      Path to configuration file (YAML)
  --turn-delay <dur>   Pause between conversation turns (default 2s)

Examples:
  trioflow serve
  trioflow serve --config /etc/trioflow/config.yaml
  trioflow health --addr http://localhost:8080
  trioflow token --secret hush --ttl 1h`)
}
