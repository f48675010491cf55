package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"laurel-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	TLSMinVersion                 string   `env:"HTTP_SERVER_TLS_MIN_VERSION" env-default:"TLS_1_2"`
	TLSMaxVersion                 string   `env:"HTTP_SERVER_TLS_MAX_VERSION" env-default:"TLS_1_2"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database driver
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"laurel"`
	// Database SQQL Mode
	DatabaseSSLMode string `env:"DB_SQL_MODE" env-default:"disable"`
	// Reconnect Retry Count
	DatabaseReconnectRetryCount int `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for completed sync run results
	KafkaSyncResultTopic string `env:"KAFKA_SYNC_RESULT_TOPIC" env-default:"laurel-sync-results"`
	// Kafka topic for booking lifecycle events (webhook transitions, reschedules)
	KafkaBookingEventTopic string `env:"KAFKA_BOOKING_EVENT_TOPIC" env-default:"laurel-booking-events"`

	// Reservation provider settings
	// Provider API base URL
	ProviderBaseURL string `env:"PROVIDER_BASE_URL" env-default:""`
	// Provider access key (public identifier sent with each request)
	ProviderAccessKey string `env:"PROVIDER_ACCESS_KEY" env-default:""`
	// Provider secret key used for request signing
	ProviderSecretKey string `env:"PROVIDER_SECRET_KEY" env-default:""`
	// Provider request timeout
	ProviderRequestTimeout time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" env-default:"30s"`
	// Outbound request budget against the provider per window
	ProviderRateLimit int `env:"PROVIDER_RATE_LIMIT" env-default:"400"`
	// Outbound rate limit window
	ProviderRateWindow time.Duration `env:"PROVIDER_RATE_WINDOW" env-default:"1m"`
	// Max attempts for a 429-rejected request (first try included)
	ProviderMaxAttempts int `env:"PROVIDER_MAX_ATTEMPTS" env-default:"3"`
	// Wait applied when a 429 carries no usable Retry-After
	ProviderRetryAfterFallback time.Duration `env:"PROVIDER_RETRY_AFTER_FALLBACK" env-default:"30s"`

	// Sync settings
	// Days of history included in every sync window
	SyncLookbackDays int `env:"SYNC_LOOKBACK_DAYS" env-default:"7"`
	// Horizon for a routine sync
	SyncRoutineHorizonDays int `env:"SYNC_ROUTINE_HORIZON_DAYS" env-default:"120"`
	// Horizon for a full sync
	SyncFullHorizonDays int `env:"SYNC_FULL_HORIZON_DAYS" env-default:"365"`
	// Wall-clock budget for a single sync run
	SyncMaxRunTime time.Duration `env:"SYNC_MAX_RUN_TIME" env-default:"10m"`
	// Rows of sync history returned by default
	SyncHistoryDefaultLimit int `env:"SYNC_HISTORY_DEFAULT_LIMIT" env-default:"20"`

	// Grouping settings
	// Max participants per tour group
	GroupCapacity int `env:"GROUP_CAPACITY" env-default:"9"`
	// How long the grouping pass may hold the advisory lock
	GroupingLockTTL time.Duration `env:"GROUPING_LOCK_TTL" env-default:"2m"`
	// How long to wait for the advisory lock before skipping grouping
	GroupingLockWait time.Duration `env:"GROUPING_LOCK_WAIT" env-default:"5s"`

	// Inbound rate limit settings (per client, per operation class)
	// Fixed window length
	InboundRateWindow time.Duration `env:"INBOUND_RATE_WINDOW" env-default:"1m"`
	// Budget for sync trigger operations
	InboundSyncLimit int `env:"INBOUND_SYNC_LIMIT" env-default:"5"`
	// Budget for webhook deliveries
	InboundWebhookLimit int `env:"INBOUND_WEBHOOK_LIMIT" env-default:"120"`
	// Budget for read operations
	InboundReadLimit int `env:"INBOUND_READ_LIMIT" env-default:"60"`
	// Counter rows older than this are purged
	InboundCounterMaxAge time.Duration `env:"INBOUND_COUNTER_MAX_AGE" env-default:"24h"`

	// Scheduler settings
	// Scheduler poll interval
	SchedulerPollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"15m"`
	// Enable/disable the scheduler
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" env-default:"true"`

	// Tracing settings
	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}
