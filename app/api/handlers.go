package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/scheduler"
	"github.com/lysyi3m/reader-sync/app/syncer"
)

// NewHandler wires the HTTP surface. stream may be nil when items are not
// queued through Redis.
func NewHandler(feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	tracker SyncTrigger, stream QueueStats, version string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		tracker:     tracker,
		stream:      stream,
		version:     version,
		passTimeout: scheduler.DefaultPassTimeout,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"syncing":   h.tracker.Running(),
	}

	if _, err := h.feedRepo.GetFeedCount(c.Request.Context()); err != nil {
		slog.Error("Database error", "operation", "health_check", "error", err)
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	feedCount, err := h.feedRepo.GetFeedCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	articleCount, err := h.articleRepo.GetArticleCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_article_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	pendingMedia, err := h.articleRepo.GetPendingMediaCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_pending_media_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats := map[string]interface{}{
		"feeds":               feedCount,
		"articles":            articleCount,
		"media_pending":       pendingMedia,
		"last_sync":           nil,
		"last_sync_succeeded": nil,
	}

	if last, lastErr := h.tracker.Last(); last != nil {
		stats["last_sync"] = last
		stats["last_sync_succeeded"] = lastErr == nil
	}

	if h.stream != nil {
		queueStats := map[string]interface{}{}
		if n, err := h.stream.Len(ctx); err == nil {
			queueStats["length"] = n
		}
		if n, err := h.stream.Pending(ctx); err == nil {
			queueStats["pending"] = n
		}
		if n, err := h.stream.DeadLetterLen(ctx); err == nil {
			queueStats["dead_letter"] = n
		}
		stats["queue"] = queueStats
	}

	c.JSON(http.StatusOK, stats)
}

// APITriggerSync runs a pass on behalf of the caller. The pass outlives a
// dropped connection and is bounded by passTimeout instead.
func (h *Handler) APITriggerSync(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.passTimeout)
	defer cancel()

	summary, err := h.tracker.Run(ctx)
	if errors.Is(err, syncer.ErrPassInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Sync pass already in progress"})
		return
	}

	if err != nil {
		slog.Error("Manual sync failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}

func (h *Handler) APIGetLastSync(c *gin.Context) {
	summary, err := h.tracker.Last()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No sync pass has run yet"})
		return
	}

	response := gin.H{
		"success": err == nil,
		"running": h.tracker.Running(),
		"summary": summary,
	}
	if err != nil {
		response["error"] = err.Error()
	}

	c.JSON(http.StatusOK, response)
}
