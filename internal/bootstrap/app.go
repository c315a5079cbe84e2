package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "whiteboard-relay/internal/handler/http"
	wsHandler "whiteboard-relay/internal/handler/websocket"
	"whiteboard-relay/internal/hub"
	gormpersistence "whiteboard-relay/internal/infra/persistence/gorm"
	"whiteboard-relay/internal/infra/setup"
	redisstate "whiteboard-relay/internal/infra/state/redis"
	"whiteboard-relay/internal/metrics"
	"whiteboard-relay/internal/middleware"
	"whiteboard-relay/internal/service"
	"whiteboard-relay/internal/tasks"
	"whiteboard-relay/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	Hub         *hub.Hub
	Metrics     *metrics.Metrics
	HttpServer  *http.Server
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer

	mirror         *service.MirrorService
	scheduler      *asynq.Scheduler
	redisClientOpt asynq.RedisClientOpt
	cancelMirror   context.CancelFunc
	mirrorDone     chan struct{}
}

// NewLogger 按配置创建 logger，生产环境输出 JSON
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// 各包通过 logrus 包级函数记录日志，与 App 的 logger 保持一致
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(log.Out)
	return log
}

// NewApp 创建并初始化应用的所有组件。MIRROR_ENABLED=false 时不连接 MySQL 和 Redis。
func NewApp(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	log := NewLogger(cfg)
	log.WithFields(logrus.Fields{"env": cfg.AppEnv, "level": log.GetLevel().String()}).Info("Logger initialized")

	app := &App{Config: cfg, Log: log}

	// 1. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(reg)

	// 2. 镜像基础设施
	var (
		mirror    hub.Mirror = hub.NoopMirror{}
		stateRepo *redisstate.RedisStateRepository
	)
	if cfg.MirrorEnabled {
		var err error
		if stateRepo, err = app.initMirrorInfra(); err != nil {
			app.closeInfra()
			return nil, err
		}
		app.mirror = service.NewMirrorService(stateRepo, app.AsynqClient, app.Metrics, cfg.MirrorQueueSize)
		mirror = app.mirror
	} else {
		log.Warn("Mirror disabled, room state lives only in memory")
	}

	// 3. Hub
	broadcaster := hub.NewBroadcaster(app.Metrics)
	registry := hub.NewRegistry(broadcaster, app.Metrics, cfg.RoomEvictionGrace)
	app.Hub = hub.NewHub(registry, broadcaster, mirror, app.Metrics, hub.Options{
		AutoCreateRooms: cfg.RoomAutoCreate,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageSize:  cfg.WSMaxMessageBytes,
	})
	log.WithFields(logrus.Fields{"grace": cfg.RoomEvictionGrace, "auto_create": cfg.RoomAutoCreate}).Info("Hub initialized")

	// 4. Worker
	if cfg.MirrorEnabled {
		roomRepo := gormpersistence.NewGormRoomRepository(app.DB)
		mirrorHandler := worker.NewMirrorTaskHandler(roomRepo, gormpersistence.NewGormStrokeRepository(app.DB))
		sweep := worker.NewPresenceSweepHandler(app.Hub, roomRepo, stateRepo)
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt, cfg.WorkerConcurrency, mirrorHandler, sweep, log)
	}

	// 5. HTTP
	var limiter middleware.RateLimiter
	if stateRepo != nil {
		limiter = stateRepo
	}
	router := NewRouter(cfg, log, app.Hub, app.Metrics, limiter)
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return app, nil
}

func (a *App) initMirrorInfra() (*redisstate.RedisStateRepository, error) {
	cfg := a.Config
	db, err := setup.InitDB(setup.DBConfig{
		User: cfg.DBUser, Password: cfg.DBPassword, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	a.DB = db
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	a.RedisClient = redisClient

	a.redisClientOpt = asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	a.AsynqClient = asynq.NewClient(a.redisClientOpt)
	a.Log.Info("Mirror infrastructure initialized")
	return redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix), nil
}

// NewRouter 组装 gin 路由。limiter 为 nil 时不启用 REST 限流。
func NewRouter(cfg *Config, log *logrus.Logger, h *hub.Hub, m *metrics.Metrics, limiter middleware.RateLimiter) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	roomHandler := httpHandler.NewRoomHandler(service.NewRoomService(h))
	ws := wsHandler.NewWebSocketHandler(h, cfg.CORSAllowedOrigin)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigin))

	api := router.Group("/api")
	if limiter != nil {
		api.Use(middleware.RateLimit(limiter, cfg.RateLimitMax, cfg.RateLimitWindow))
	}
	{
		api.GET("/rooms", roomHandler.ListRooms)
		api.POST("/rooms", roomHandler.CreateRoom)
		api.GET("/rooms/:roomId", roomHandler.CheckRoom)
		api.GET("/rooms/:roomId/info", roomHandler.RoomInfo)
		api.GET("/stats", roomHandler.Stats)
	}
	router.GET("/ws", ws.HandleConnection)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() error {
	a.Log.Info("Starting application background routines...")

	if a.mirror != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancelMirror = cancel
		a.mirrorDone = make(chan struct{})
		go func() {
			defer close(a.mirrorDone)
			a.mirror.Run(ctx)
		}()
	}

	if a.AsynqServer != nil {
		if err := a.AsynqServer.Start(); err != nil {
			return fmt.Errorf("failed to start worker server: %w", err)
		}
		a.registerPeriodicTasks()
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

func (a *App) registerPeriodicTasks() {
	schedule := a.Config.PresenceSweepSchedule
	if schedule == "" || schedule == "off" {
		a.Log.Info("Presence sweep disabled")
		return
	}
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})
	entryID, err := scheduler.Register(schedule, tasks.NewPresenceSweepTask())
	if err != nil {
		a.Log.WithError(err).Errorf("Could not register presence sweep with schedule '%s'", schedule)
		return
	}
	if err := scheduler.Start(); err != nil {
		a.Log.WithError(err).Error("Asynq scheduler failed to start")
		return
	}
	a.scheduler = scheduler
	a.Log.Infof("Presence sweep registered with schedule '%s' (EntryID: %s)", schedule, entryID)
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新的 HTTP 请求和 WebSocket 升级，再关闭现有连接
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.WithError(err).Error("Error shutting down HTTP server")
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}
	a.Hub.CloseAll()
	// 等连接离开各自的房间，最后的在线变化才会进入镜像队列
	if err := a.Hub.WaitDisconnected(ctx); err != nil {
		a.Log.WithError(err).Warn("Timed out waiting for clients to disconnect")
	}

	// 2. 写完镜像队列中剩余的事件
	if a.cancelMirror != nil {
		a.cancelMirror()
		<-a.mirrorDone
	}

	// 3. 周期任务和 Worker
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.closeInfra()
	a.Log.Info("Application shutdown complete.")
}

func (a *App) closeInfra() {
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.WithError(err).Error("Error closing Asynq client")
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.WithError(err).Error("Error closing Redis connection")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
