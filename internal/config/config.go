package config

import (
	"os"
	"strconv"

	commoncfg "staffhub-presence/common/config"
)

// Config staffhub-presence 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	MQTT      commoncfg.MQTTConfig

	// 在线状态服务特定配置
	Presence PresenceConfig

	Log struct {
		Level  string
		Format string
	}
}

// PresenceConfig 在线状态推断配置
type PresenceConfig struct {
	Topics struct {
		Signal string // 信号主题，如 "presence/+/signal"
	}
	Stream struct {
		Name          string // Redis Streams 流名称
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int
	}
	Cache struct {
		KeyPrefix string // 本地记录键前缀，如 "presence:state:"
		TTL       int    // 本地记录 TTL（秒，0 表示不过期）
	}

	// 阈值策略：同一判定在两处使用不同的阈值组，
	// 监控循环用 Default 组，面板新鲜度判断用 Dashboard 组。
	// 两组独立配置，不做统一。
	Thresholds struct {
		DefaultIdle      int // 分钟，默认 5
		DefaultOffline   int // 分钟，默认 30
		DashboardIdle    int // 分钟，默认 2
		DashboardOffline int // 分钟，默认 10
	}

	ActivityThrottle int // 活动信号节流间隔（秒，默认 30）
	MonitorInterval  int // 监控循环重估间隔（秒，默认 30）
	SimulatorBucket  int // 模拟器时间桶粒度（分钟，默认 5）

	Webhook struct {
		URL     string // 为空则禁用快照推送
		Timeout int    // 秒
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8086")
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "staffhub")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "staffhub-presence")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")

	// 在线状态服务配置
	cfg.Presence.Topics.Signal = getEnv("PRESENCE_TOPIC_SIGNAL", "presence/+/signal")
	cfg.Presence.Stream.Name = getEnv("PRESENCE_STREAM", "presence:signal:stream")
	cfg.Presence.Stream.ConsumerGroup = getEnv("PRESENCE_STREAM_GROUP", "presence-service")
	cfg.Presence.Stream.ConsumerName = getEnv("PRESENCE_STREAM_CONSUMER", "presence-consumer-1")
	cfg.Presence.Stream.BatchSize = getEnvInt("PRESENCE_STREAM_BATCH", 10)

	cfg.Presence.Cache.KeyPrefix = getEnv("PRESENCE_CACHE_PREFIX", "presence:state:")
	cfg.Presence.Cache.TTL = getEnvInt("PRESENCE_CACHE_TTL", 86400)

	cfg.Presence.Thresholds.DefaultIdle = getEnvInt("PRESENCE_IDLE_MINUTES", 5)
	cfg.Presence.Thresholds.DefaultOffline = getEnvInt("PRESENCE_OFFLINE_MINUTES", 30)
	cfg.Presence.Thresholds.DashboardIdle = getEnvInt("PRESENCE_DASHBOARD_IDLE_MINUTES", 2)
	cfg.Presence.Thresholds.DashboardOffline = getEnvInt("PRESENCE_DASHBOARD_OFFLINE_MINUTES", 10)

	cfg.Presence.ActivityThrottle = getEnvInt("PRESENCE_ACTIVITY_THROTTLE_SECONDS", 30)
	cfg.Presence.MonitorInterval = getEnvInt("PRESENCE_MONITOR_INTERVAL_SECONDS", 30)
	cfg.Presence.SimulatorBucket = getEnvInt("PRESENCE_SIMULATOR_BUCKET_MINUTES", 5)

	cfg.Presence.Webhook.URL = getEnv("PRESENCE_WEBHOOK_URL", "")
	cfg.Presence.Webhook.Timeout = getEnvInt("PRESENCE_WEBHOOK_TIMEOUT_SECONDS", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
