package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staffhub-presence/internal/config"
	"staffhub-presence/internal/consumer"
	httpapi "staffhub-presence/internal/http"
	"staffhub-presence/internal/presence"
	"staffhub-presence/internal/repository"
	"staffhub-presence/internal/service"
	"staffhub-presence/internal/simulator"
	"staffhub-presence/internal/store"

	"staffhub-presence/common/database"
	"staffhub-presence/common/logger"
	mqttcommon "staffhub-presence/common/mqtt"
	rediscommon "staffhub-presence/common/redis"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "staffhub-presence")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting staffhub-presence service",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	// 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		zlog.Fatal("Failed to connect to redis", zap.Error(err))
	}
	kv := store.NewRedisKV(redisClient)

	// 可选的数据库（远端镜像 + 考勤事实）
	var db *sql.DB
	var presenceRepo repository.PresenceRepository
	var attendanceRepo repository.AttendanceRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			presenceRepo = repository.NewPostgresPresenceRepository(db)
			attendanceRepo = repository.NewPostgresAttendanceRepository(db)
			zlog.Info("DB enabled for staffhub-presence")
		} else {
			// 在线状态是尽力而为的指示器：镜像不可用时本地照常工作
			zlog.Warn("DB enabled but connection failed, running local-only", zap.Error(err))
		}
	}

	// 阈值策略
	defaultPolicy, dashboardPolicy := presence.PolicyFromConfig(&cfg.Presence)

	// 在线状态存储器（本地 KV + 远端镜像）
	presenceStore := presence.NewStore(
		kv,
		cfg.Presence.Cache.KeyPrefix,
		time.Duration(cfg.Presence.Cache.TTL)*time.Second,
		presenceRepo,
		zlog,
	)

	// 活动计时器 + 信号处理器
	tracker := presence.NewActivityTracker(
		time.Duration(cfg.Presence.ActivityThrottle)*time.Second,
		defaultPolicy.Idle,
		presence.NewIdleHandler(presenceStore, zlog),
		zlog,
	)
	processor := presence.NewProcessor(presenceStore, tracker, zlog)

	// 监控循环（可选 webhook 快照推送）
	var notifier presence.SnapshotNotifier
	if cfg.Presence.Webhook.URL != "" {
		notifier = service.NewWebhookNotifier(
			cfg.Presence.Webhook.URL,
			time.Duration(cfg.Presence.Webhook.Timeout)*time.Second,
			zlog,
		)
	}
	monitor := presence.NewMonitor(
		presenceStore,
		defaultPolicy,
		time.Duration(cfg.Presence.MonitorInterval)*time.Second,
		notifier,
		zlog,
	)

	// 流消费者
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, processor, zlog)

	// MQTT 消费者（broker 不可达时只走 HTTP 上报路径）
	var mqttConsumer *consumer.MQTTConsumer
	if mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, zlog); err == nil {
		mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, zlog)
	} else {
		zlog.Warn("MQTT broker unavailable, HTTP signal ingest only", zap.Error(err))
	}

	// 在线状态服务 + HTTP
	sim := simulator.NewSimulator(time.Duration(cfg.Presence.SimulatorBucket) * time.Minute)
	presenceService := service.NewPresenceService(
		presenceStore,
		sim,
		attendanceRepo,
		presenceRepo,
		dashboardPolicy,
		zlog,
	)

	router := httpapi.NewRouter(zlog)
	router.RegisterPresenceRoutes(
		httpapi.NewPresenceHandler(presenceService, zlog),
		httpapi.NewSignalHandler(consumer.NewStreamPublisher(redisClient, cfg.Presence.Stream.Name), zlog),
		httpapi.NewExportHandler(presenceService, zlog),
	)
	server := service.NewServer(cfg.HTTP.Addr, router, zlog)

	// 启动各组件
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := streamConsumer.Start(ctx); err != nil {
			zlog.Error("Stream consumer exited", zap.Error(err))
		}
	}()
	go func() {
		if err := monitor.Start(ctx); err != nil {
			zlog.Error("Presence monitor exited", zap.Error(err))
		}
	}()
	if mqttConsumer != nil {
		go func() {
			if err := mqttConsumer.Start(ctx); err != nil {
				zlog.Error("MQTT consumer exited", zap.Error(err))
			}
		}()
	}
	go func() {
		if err := server.Start(); err != nil {
			zlog.Error("HTTP server exited", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	tracker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		zlog.Error("Error during HTTP server shutdown", zap.Error(err))
	}
	if mqttConsumer != nil {
		if err := mqttConsumer.Stop(shutdownCtx); err != nil {
			zlog.Error("Error during MQTT consumer shutdown", zap.Error(err))
		}
	}
	if err := rediscommon.Close(redisClient); err != nil {
		zlog.Error("Error closing Redis client", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		zlog.Error("Error closing database connection", zap.Error(err))
	}

	zlog.Info("Service stopped")
}
