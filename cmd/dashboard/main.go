package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"prodash/internal/cache"
	"prodash/internal/collab"
	"prodash/internal/lifecycle"
	"prodash/internal/realtime"
	"prodash/internal/remote"
	"prodash/internal/service"
	"prodash/internal/store"
	"prodash/internal/util"
	"prodash/pkg/circuitbreaker"
	"prodash/pkg/config"
	"prodash/pkg/db"
	"prodash/pkg/logger"
	"prodash/pkg/mq"
	pkgredis "prodash/pkg/redis"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting dashboard...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("mq_url", cfg.MQ.URL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis fallback cache
	rdb := pkgredis.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	snap := cache.NewRedisSnapshot(rdb, log)

	// Remote repositories
	taskRepo := remote.NewTaskRepository(dbConn, log)
	folderRepo := remote.NewFolderRepository(dbConn, log)
	problemRepo := remote.NewProblemRepository(dbConn, log)
	progressRepo := remote.NewProgressRepository(dbConn, log)
	archiveRepo := remote.NewArchiveRepository(dbConn, log)

	// Entity stores, one breaker per table
	taskStore := store.NewTaskStore(taskRepo, snap, log)
	taskStore.WithBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()))
	taskStore.WithDebounce(cfg.Dashboard.InvalidationDebounce.Std())
	taskStore.WithFlushBatch(cfg.Dashboard.OutboxFlushBatch)

	folderStore := store.NewFolderStore(folderRepo, snap, taskStore, log)
	folderStore.WithBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()))
	folderStore.WithDebounce(cfg.Dashboard.InvalidationDebounce.Std())
	folderStore.WithFlushBatch(cfg.Dashboard.OutboxFlushBatch)

	problemStore := store.NewProblemStore(problemRepo, snap, log)
	problemStore.WithBreaker(circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()))
	problemStore.WithDebounce(cfg.Dashboard.InvalidationDebounce.Std())
	problemStore.WithFlushBatch(cfg.Dashboard.OutboxFlushBatch)

	// Restore cached state, then take the first remote snapshot. Remote
	// unavailability here is fine: the stores serve the cache.
	taskStore.LoadState(ctx)
	folderStore.LoadState(ctx)
	problemStore.LoadState(ctx)
	if _, err := taskStore.FetchAll(ctx); err != nil {
		log.Fatal("Startup fetch cancelled", zap.Error(err))
	}
	if _, err := folderStore.FetchAll(ctx); err != nil {
		log.Fatal("Startup fetch cancelled", zap.Error(err))
	}
	if _, err := problemStore.FetchAll(ctx); err != nil {
		log.Fatal("Startup fetch cancelled", zap.Error(err))
	}

	// Realtime invalidation channel
	listener := realtime.NewListener(cfg.MQ.URL, log)
	if err := listener.Watch("tasks", taskStore); err != nil {
		log.Fatal("Failed to watch tasks", zap.Error(err))
	}
	if err := listener.Watch("folders", folderStore); err != nil {
		log.Fatal("Failed to watch folders", zap.Error(err))
	}
	if err := listener.Watch("problems", problemStore); err != nil {
		log.Fatal("Failed to watch problems", zap.Error(err))
	}

	// Outbound notifications
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()
	notifier := collab.NewNotifier(publisher, log)

	// External collaborators
	agent := collab.NewHTTPAgent(cfg.Agent.BaseURL, cfg.Agent.Timeout.Std(), log)
	calendarClient := collab.NewHTTPCalendar(cfg.Calendar.BaseURL, cfg.Calendar.Timeout.Std(), log)
	deduper := util.NewDeduper(rdb, 24*time.Hour)

	// Dashboard service
	dashboard := service.NewDashboard(taskStore, folderStore, problemStore, progressRepo, agent, log).
		WithCalendar(calendarClient).
		WithNotifier(notifier).
		WithDeduper(deduper).
		WithMonthlyGoal(cfg.Dashboard.MonthlyGoal)
	go dashboard.Start(ctx)

	// Lifecycle rollover
	manager := lifecycle.NewManager(progressRepo, archiveRepo, taskStore, log).
		WithNotifier(notifier)
	runner := lifecycle.NewRunner(manager, cfg.Dashboard.LifecycleInterval.Std(), log)
	go runner.Start(ctx)

	// Metrics + health
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}
	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("dashboard is fully initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down dashboard gracefully...")
	cancel()
	listener.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("dashboard shutdown complete")
}
