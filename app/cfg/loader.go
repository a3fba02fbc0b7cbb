package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"reader-sync.db" description:"SQLite database file"`

	// HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key enabling the manual sync trigger (optional)"`

	// Content source
	ReaderBaseURL       string        `long:"reader-url" env:"READER_BASE_URL" default:"https://www.inoreader.com" description:"Base URL of the Google Reader compatible aggregator"`
	ReaderAccount       string        `long:"reader-account" env:"READER_ACCOUNT" description:"Aggregator account name" required:"true"`
	ReaderPassword      string        `long:"reader-password" env:"READER_PASSWORD" description:"Aggregator API password" required:"true"`
	GatewayClientID     string        `long:"gateway-client-id" env:"GATEWAY_CLIENT_ID" description:"Access gateway client id sent with every request (optional)"`
	GatewayClientSecret string        `long:"gateway-client-secret" env:"GATEWAY_CLIENT_SECRET" description:"Access gateway client secret sent with every request (optional)"`
	PageSize            int           `long:"page-size" env:"PAGE_SIZE" default:"100" description:"Items requested per feed and pass"`
	HTTPTimeout         time.Duration `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30s" description:"Timeout for a single aggregator request"`

	// Sync pass
	OwnerID          string        `long:"owner-id" env:"OWNER_ID" default:"system" description:"Account that owns synced feeds"`
	FeedStatus       string        `long:"feed-status" env:"FEED_STATUS" default:"approved" choice:"pending" choice:"approved" choice:"rejected" choice:"suspended" description:"Moderation status for newly synced feeds"`
	FallbackCategory string        `long:"fallback-category" env:"FALLBACK_CATEGORY" default:"Uncategorized" description:"Category for subscriptions without labels"`
	ItemLookback     time.Duration `long:"item-lookback" env:"ITEM_LOOKBACK" default:"0s" description:"Only request items newer than now minus this window (0 disables)"`
	SummaryLength    int           `long:"summary-length" env:"SUMMARY_LENGTH" default:"200" description:"Maximum characters of the derived plain-text summary"`
	SettingsFile     string        `long:"settings" env:"SETTINGS_FILE" description:"YAML file with sanitizer and per-subscription overrides (optional)"`
	SyncSchedule     string        `long:"sync-schedule" env:"SYNC_SCHEDULE" default:"*/30 * * * *" description:"Cron spec for sync passes"`
	RunOnce          bool          `long:"once" env:"RUN_ONCE" description:"Run a single sync pass and exit"`
	DescribeFeeds    bool          `long:"describe-feeds" env:"DESCRIBE_FEEDS" description:"Fetch feed documents to fill description and site metadata"`
	ExtractContent   bool          `long:"extract-content" env:"EXTRACT_CONTENT" description:"Extract readable content for articles synced without a body"`

	// Work queue
	Sink          string `long:"sink" env:"SINK" default:"inline" choice:"inline" choice:"tasks" choice:"redis" description:"Where fetched items go: processed inline, in-process task queue, or Redis stream"`
	WorkerCount   int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for queued tasks"`
	QueueSize     int    `long:"queue-size" env:"QUEUE_SIZE" default:"1000" description:"Capacity of the in-process task queue"`
	MaxAttempts   int    `long:"max-attempts" env:"MAX_ATTEMPTS" default:"5" description:"Delivery attempts before a Redis stream entry is dead-lettered"`
	RedisURL      string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" description:"Redis URL for the stream sink"`
	RedisStream   string `long:"redis-stream" env:"REDIS_STREAM" default:"reader-sync:articles" description:"Redis stream key"`
	RedisGroup    string `long:"redis-group" env:"REDIS_GROUP" default:"reader-sync" description:"Redis consumer group"`
	RedisConsumer string `long:"redis-consumer" env:"REDIS_CONSUMER" default:"reader-sync-1" description:"Consumer name within the group"`
	RedisConsume  bool   `long:"redis-consume" env:"REDIS_CONSUME" description:"Run a stream consumer inside this process"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"reader-sync/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return parse(nil)
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		Port:                raw.Port,
		APIAccessKey:        raw.APIAccessKey,
		ReaderBaseURL:       raw.ReaderBaseURL,
		ReaderAccount:       raw.ReaderAccount,
		ReaderPassword:      raw.ReaderPassword,
		GatewayClientID:     raw.GatewayClientID,
		GatewayClientSecret: raw.GatewayClientSecret,
		PageSize:            raw.PageSize,
		HTTPTimeout:         raw.HTTPTimeout,
		OwnerID:             raw.OwnerID,
		FeedStatus:          raw.FeedStatus,
		FallbackCategory:    raw.FallbackCategory,
		ItemLookback:        raw.ItemLookback,
		SummaryLength:       raw.SummaryLength,
		SettingsFile:        raw.SettingsFile,
		SyncSchedule:        raw.SyncSchedule,
		RunOnce:             raw.RunOnce,
		DescribeFeeds:       raw.DescribeFeeds,
		ExtractContent:      raw.ExtractContent,
		Sink:                raw.Sink,
		WorkerCount:         raw.WorkerCount,
		QueueSize:           raw.QueueSize,
		MaxAttempts:         raw.MaxAttempts,
		RedisURL:            raw.RedisURL,
		RedisStream:         raw.RedisStream,
		RedisGroup:          raw.RedisGroup,
		RedisConsumer:       raw.RedisConsumer,
		RedisConsume:        raw.RedisConsume,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"page size":      cfg.PageSize,
		"worker count":   cfg.WorkerCount,
		"queue size":     cfg.QueueSize,
		"max attempts":   cfg.MaxAttempts,
		"summary length": cfg.SummaryLength,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if cfg.ItemLookback < 0 {
		return fmt.Errorf("item lookback must be non-negative")
	}
	if (cfg.GatewayClientID == "") != (cfg.GatewayClientSecret == "") {
		return fmt.Errorf("gateway client id and secret must be set together")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
