package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"approvalhub/internal/approvals"
	"approvalhub/internal/chatops"
	"approvalhub/internal/config"
	"approvalhub/internal/db"
	"approvalhub/internal/llm"
	"approvalhub/internal/logging"
	"approvalhub/internal/search"
	"approvalhub/internal/web"
)

const serviceName = "approvalhub"

func main() {
	logging.Init(serviceName, nil, "")
	if err := run(os.Args[1:], serveHTTP); err != nil {
		fatalf("approvalhub: %v", err)
	}
}

var serveHTTP = func(srv *http.Server) error { return srv.ListenAndServe() }
var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}
var newDB = func(cfg config.StorageConfig) (*db.DB, error) {
	pool := db.DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifeSecs > 0 {
		pool.ConnMaxLifetime = time.Duration(cfg.ConnMaxLifeSecs) * time.Second
	}
	return db.NewDBWithPool(cfg.PostgresDSN, pool)
}
var migrate = func(ctx context.Context, database *db.DB) error { return db.Migrate(ctx, database.Conn()) }
var newRedisClient = func(cfg config.CacheConfig) llm.CacheBackend {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// app holds the wired components of a running hub.
type app struct {
	Service   *approvals.Service
	Server    *web.Server
	Publisher *chatops.Publisher
	Scheduler *chatops.RefreshScheduler
}

// store is the record store surface the hub needs.
type store interface {
	approvals.Store
	chatops.PendingStore
	chatops.ApproverLister
	search.Store
	web.Pinger
}

func buildApp(cfg config.Config, database store) *app {
	var embedder approvals.Embedder
	var analyzer approvals.Analyzer
	if cfg.Inference.Enabled() {
		client := &llm.Client{
			APIBase:        cfg.Inference.APIBase,
			APIKey:         cfg.Inference.APIKey,
			EmbeddingModel: cfg.Inference.EmbeddingModel,
			ChatModel:      cfg.Inference.ChatModel,
			Temperature:    cfg.Inference.Temperature,
			RedactPatterns: cfg.Inference.RedactPatterns,
			HTTPClient:     &http.Client{Timeout: time.Duration(cfg.Inference.TimeoutSecs) * time.Second},
		}
		embedder = client
		analyzer = client
		if cfg.Cache.RedisAddr != "" {
			model := cfg.Inference.EmbeddingModel
			if model == "" {
				model = llm.DefaultEmbeddingModel
			}
			embedder = &llm.CachedEmbedder{
				Embedder: client,
				Cache:    newRedisClient(cfg.Cache),
				Model:    model,
				TTL:      time.Duration(cfg.Cache.TTLSecs) * time.Second,
			}
		}
	} else {
		slog.Warn("inference provider not configured, enrichment disabled")
	}

	builder := &chatops.HomeBuilder{
		Store:    database,
		Embedder: embedder,
		Searcher: &search.Searcher{Store: database, Threshold: cfg.Search.Threshold, Limit: cfg.Search.Limit},
	}
	publisher := &chatops.Publisher{Builder: builder}
	if cfg.Slack.BotToken != "" {
		publisher.Slack = &chatops.SlackClient{
			BaseURL: cfg.Slack.APIURL,
			Token:   cfg.Slack.BotToken,
			Client:  &http.Client{Timeout: 10 * time.Second},
		}
	} else {
		slog.Warn("slack bot token not configured, home views will not be published")
	}

	svc := &approvals.Service{
		Store:         database,
		Embedder:      embedder,
		Analyzer:      analyzer,
		Notifier:      publisher,
		Dimension:     cfg.Inference.Dimension,
		EnrichTimeout: time.Duration(cfg.Inference.TimeoutSecs) * time.Second,
	}
	handler := &chatops.Handler{Decider: svc, Publisher: publisher, Builder: builder}
	srv := web.NewServer(svc, database, handler, chatops.NewVerifier(cfg.Slack.SigningSecret))
	srv.IngestToken = cfg.Server.IngestToken
	if cfg.Server.RateLimitRPS > 0 {
		srv.RateLimiter = web.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}
	srv.Goroutines = web.NewGoroutineTracker()

	a := &app{Service: svc, Server: srv, Publisher: publisher}
	if cfg.Refresh.Enabled {
		sched := chatops.NewRefreshScheduler(database, publisher, cfg.Refresh.Cron)
		if cfg.Refresh.PollIntervalSecs > 0 {
			sched.PollInterval = time.Duration(cfg.Refresh.PollIntervalSecs) * time.Second
		}
		a.Scheduler = sched
	}
	return a
}

var startScheduler = func(ctx context.Context, wg *sync.WaitGroup, gt *web.GoroutineTracker, s *chatops.RefreshScheduler) {
	if s == nil {
		return
	}
	gt.Go(ctx, wg, "home-refresh", s.Run)
}

func run(args []string, serve func(*http.Server) error) error {
	fs := flag.NewFlagSet("approvalhub", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config JSON or YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	logging.Init(serviceName, nil, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	database, err := newDB(cfg.Storage)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Storage.AutoMigrate {
		if err := migrate(ctx, database); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}

	a := buildApp(cfg, database)

	var wg sync.WaitGroup
	startScheduler(ctx, &wg, a.Server.Goroutines, a.Scheduler)

	addr := cfg.Server.Addr()
	mainSrv := &http.Server{
		Addr:              addr,
		Handler:           a.Server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- serve(mainSrv) }()

	slog.Info("approvalhub listening", "addr", addr)
	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
	forceExit := time.AfterFunc(timeout, func() { os.Exit(1) })
	defer forceExit.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = mainSrv.Shutdown(shutdownCtx)
	wg.Wait()
	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	default:
		return nil
	}
}
