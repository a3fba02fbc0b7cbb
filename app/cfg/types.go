package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath string

	// HTTP surface
	Port         string
	APIAccessKey string

	// Content source
	ReaderBaseURL       string
	ReaderAccount       string
	ReaderPassword      string
	GatewayClientID     string
	GatewayClientSecret string
	PageSize            int
	HTTPTimeout         time.Duration

	// Sync pass
	OwnerID          string
	FeedStatus       string
	FallbackCategory string
	ItemLookback     time.Duration
	SummaryLength    int
	SettingsFile     string
	SyncSchedule     string
	RunOnce          bool
	DescribeFeeds    bool
	ExtractContent   bool

	// Work queue
	Sink          string
	WorkerCount   int
	QueueSize     int
	MaxAttempts   int
	RedisURL      string
	RedisStream   string
	RedisGroup    string
	RedisConsumer string
	RedisConsume  bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

const (
	SinkInline = "inline"
	SinkTasks  = "tasks"
	SinkRedis  = "redis"
)
