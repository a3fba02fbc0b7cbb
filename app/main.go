package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lysyi3m/reader-sync/app/api"
	"github.com/lysyi3m/reader-sync/app/cfg"
	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/feed"
	"github.com/lysyi3m/reader-sync/app/queue"
	"github.com/lysyi3m/reader-sync/app/reader"
	"github.com/lysyi3m/reader-sync/app/scheduler"
	"github.com/lysyi3m/reader-sync/app/syncer"
	"github.com/lysyi3m/reader-sync/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(appCfg, logger); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting reader-sync",
		"version", appCfg.Version,
		"sink", appCfg.Sink,
		"db_path", appCfg.DBPath,
		"reader_url", appCfg.ReaderBaseURL)

	db, err := database.Open(appCfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)

	settings, err := feed.LoadSettings(appCfg.SettingsFile)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	processor := feed.NewProcessor(feed.NewSanitizer(settings.Sanitizer), appCfg.SummaryLength)
	writer := syncer.NewWriter(processor, articleRepo, logger)

	httpClient := &http.Client{Timeout: appCfg.HTTPTimeout}

	client := reader.NewClient(reader.Config{
		BaseURL:             appCfg.ReaderBaseURL,
		Account:             appCfg.ReaderAccount,
		Password:            appCfg.ReaderPassword,
		GatewayClientID:     appCfg.GatewayClientID,
		GatewayClientSecret: appCfg.GatewayClientSecret,
		PageSize:            appCfg.PageSize,
		UserAgent:           appCfg.UserAgent,
		HTTPClient:          httpClient,
	}, logger)

	taskScheduler := tasks.NewScheduler(tasks.SchedulerOptions{
		WorkerCount: appCfg.WorkerCount,
		QueueSize:   appCfg.QueueSize,
	})
	taskScheduler.Start()
	defer taskScheduler.Stop()

	var stream *queue.Stream
	if appCfg.Sink == cfg.SinkRedis || appCfg.RedisConsume {
		stream, err = queue.Open(ctx, queue.Config{
			URL:         appCfg.RedisURL,
			Stream:      appCfg.RedisStream,
			Group:       appCfg.RedisGroup,
			Consumer:    appCfg.RedisConsumer,
			MaxAttempts: appCfg.MaxAttempts,
		}, logger)
		if err != nil {
			return err
		}
		defer stream.Close()
	}

	var sink syncer.Sink
	switch appCfg.Sink {
	case cfg.SinkTasks:
		sink = syncer.NewTaskSink(taskScheduler, writer)
	case cfg.SinkRedis:
		sink = syncer.NewStreamSink(stream)
	default:
		sink = syncer.NewInlineSink(writer)
	}

	var consumer *queue.Consumer
	if appCfg.RedisConsume {
		consumer = queue.NewConsumer(stream, writer, logger)
	}

	passSyncer := syncer.New(client, feedRepo, sink, syncer.Options{
		OwnerID:          appCfg.OwnerID,
		FeedStatus:       database.FeedStatus(appCfg.FeedStatus),
		FallbackCategory: appCfg.FallbackCategory,
		ItemLookback:     appCfg.ItemLookback,
		Settings:         settings,
	}, logger)

	tracker := syncer.NewTracker(passSyncer, logger)
	if appCfg.DescribeFeeds || appCfg.ExtractContent {
		tracker.OnComplete(followUps(appCfg, taskScheduler, httpClient, processor, feedRepo, articleRepo))
	}

	if appCfg.RunOnce {
		return runOnce(ctx, tracker, consumer, taskScheduler)
	}

	var wg sync.WaitGroup
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				slog.Error("Stream consumer stopped", "error", err)
			}
		}()
	}

	passScheduler := scheduler.New(ctx, appCfg.SyncSchedule, tracker, 0, logger)
	if err := passScheduler.Start(); err != nil {
		return err
	}
	defer passScheduler.Stop()

	var queueStats api.QueueStats
	if stream != nil {
		queueStats = stream
	}

	handler := api.NewHandler(feedRepo, articleRepo, tracker, queueStats, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case runErr = <-serverErrChan:
		slog.Error("Server error", "error", runErr)
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	wg.Wait()

	slog.Info("reader-sync shutdown complete")

	return runErr
}

// runOnce performs a single pass and waits for the work it queued in this
// process.
func runOnce(ctx context.Context, tracker *syncer.Tracker, consumer *queue.Consumer, taskScheduler *tasks.Scheduler) error {
	summary, err := tracker.Run(ctx)
	if err != nil {
		return err
	}

	if consumer != nil {
		if err := consumer.EnsureGroup(ctx); err != nil {
			return err
		}
		if _, err := consumer.ProcessPending(ctx); err != nil {
			return fmt.Errorf("failed to process pending stream entries: %w", err)
		}
		n, err := consumer.ProcessNew(ctx)
		if err != nil {
			return fmt.Errorf("failed to process stream entries: %w", err)
		}
		slog.Info("Stream entries processed", "count", n)
	}

	if err := taskScheduler.Drain(ctx); err != nil {
		return fmt.Errorf("failed waiting for queued tasks: %w", err)
	}

	slog.Info("Single sync pass finished",
		"feeds_processed", summary.FeedsProcessed,
		"feeds_failed", summary.FeedsFailed,
		"articles_processed", summary.ArticlesProcessed,
		"articles_failed", summary.ArticlesFailed,
		"duration", summary.Duration().String())

	return nil
}

// followUps queues metadata and content tasks for the feeds a pass touched.
func followUps(appCfg *cfg.Cfg, taskScheduler tasks.TaskSchedulerInterface, httpClient *http.Client,
	processor *feed.Processor, feedRepo database.FeedRepository, articleRepo database.ArticleRepository) func(context.Context, *syncer.Summary) {
	parser := feed.NewParser()
	extractor := feed.NewContentExtractor()

	return func(ctx context.Context, summary *syncer.Summary) {
		for _, feedID := range summary.FeedIDs {
			if appCfg.DescribeFeeds {
				task := tasks.NewDescribeFeedTask(feedID, httpClient, parser, feedRepo, appCfg.UserAgent, tasks.DefaultDescribeInterval)
				if err := taskScheduler.EnqueueTask(task); err != nil {
					slog.Warn("Failed to enqueue describe task", "feed_id", feedID, "error", err)
				}
			}

			if appCfg.ExtractContent {
				task := tasks.NewExtractContentTask(feedID, httpClient, extractor, processor, articleRepo, appCfg.UserAgent)
				if err := taskScheduler.EnqueueTask(task); err != nil {
					slog.Warn("Failed to enqueue extract task", "feed_id", feedID, "error", err)
				}
			}
		}
	}
}
