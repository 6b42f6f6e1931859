package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.trapdoors/internal/auth"
	"sudooom.trapdoors/internal/compendium"
	"sudooom.trapdoors/internal/config"
	"sudooom.trapdoors/internal/doors"
	"sudooom.trapdoors/internal/health"
	"sudooom.trapdoors/internal/httpapi"
	doorsNats "sudooom.trapdoors/internal/nats"
	"sudooom.trapdoors/internal/policy"
	doorsRedis "sudooom.trapdoors/internal/redis"
	"sudooom.trapdoors/internal/repository"
	"sudooom.trapdoors/internal/router"
	"sudooom.trapdoors/internal/session"
	"sudooom.trapdoors/internal/settings"
	"sudooom.trapdoors/internal/snowflake"
	"sudooom.trapdoors/internal/task"
	"sudooom.trapdoors/internal/trap"
	"sudooom.trapdoors/internal/wallconfig"
)

func main() {
	// 加载配置
	cfg, err := config.Load(config.GetEnv("DOORS_CONFIG", "configs/config.yaml"))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := doorsNats.NewClient(cfg.NATS, cfg.App.Name+"-authority")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr())

	// 连接数据库
	db, err := repository.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	doorRepo := repository.NewDoorRepository(db)
	itemRepo := repository.NewItemRepository(db)
	actorRepo := repository.NewActorRepository(db)
	userRepo := repository.NewUserRepository(db)

	catalog, err := compendium.Load(cfg.Trap.CompendiumPath)
	if err != nil {
		logger.Error("Failed to load compendium", "path", cfg.Trap.CompendiumPath, "error", err)
		os.Exit(1)
	}

	worldSettings := settings.New(cfg.Settings)
	node := snowflake.NewNode(cfg.Session.NodeID)

	// 只有权威会话持有签名私钥
	seed, err := auth.DecodeSeed(cfg.Auth.SigningKey)
	if err != nil {
		logger.Error("Invalid signing key", "error", err)
		os.Exit(1)
	}
	tokens, err := auth.NewIssuer(seed, cfg.Auth.Expire)
	if err != nil {
		logger.Error("Invalid signing key", "error", err)
		os.Exit(1)
	}
	login, err := auth.NewLogin(userRepo, tokens)
	if err != nil {
		logger.Error("Failed to create login service", "error", err)
		os.Exit(1)
	}
	logger.Info("Token signing ready", "publicKey", tokens.PublicKey())

	// 权威会话的用户必须是目录中的主持人
	user, err := userRepo.GetUser(ctx, cfg.Session.UserID)
	if err != nil {
		logger.Error("Failed to load session user", "userId", cfg.Session.UserID, "error", err)
		os.Exit(1)
	}
	if !user.IsGM {
		logger.Error("Authority session requires a GM user", "userId", user.ID)
		os.Exit(1)
	}

	// 抢占权威租约
	authority := router.NewAuthority(false)
	lease := doorsRedis.NewAuthorityLease(redisClient, cfg.App.World, cfg.Session.UserID, cfg.Authority.LeaseTTL)
	if err := lease.Claim(ctx); err != nil {
		holder, _ := lease.Holder(ctx)
		logger.Error("Failed to claim authority", "world", cfg.App.World, "holder", holder, "error", err)
		os.Exit(1)
	}
	authority.Set(true)
	logger.Info("Authority claimed", "world", cfg.App.World, "holder", cfg.Session.UserID)

	// 启动调度器
	scheduler := task.NewScheduler(cfg.Scheduler.Workers, cfg.Scheduler.Tick)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	registry := trap.NewRegistry(catalog, actorRepo, scheduler, trap.NewActivator(cfg.App.System), node, trap.Options{
		Folder:        cfg.Trap.Folder,
		Lifetime:      cfg.Trap.Lifetime,
		ExtendOnReuse: cfg.Trap.ExtendOnReuse,
	})
	// 上次运行没来得及删除的陷阱角色
	restored, err := registry.Restore(ctx)
	if err != nil {
		logger.Warn("Failed to restore trap instances", "error", err)
	}
	logger.Info("Trap instances restored", "count", restored)

	// 初始化路由与执行端
	issued, err := login.IssueFor(user)
	if err != nil {
		logger.Error("Failed to issue session token", "error", err)
		os.Exit(1)
	}
	publisher := doorsNats.NewCommandPublisher(natsClient.Conn(), cfg.App.World)
	commandRouter := router.NewRouter(publisher, node, router.Identity{UserID: user.ID, Token: issued.Token}).
		WithProbe(lease)

	doorService := doors.NewService(doorRepo, itemRepo, userRepo, worldSettings, registry, authority).
		WithAnnouncer(commandRouter)
	pauser := session.NewPauser()
	deduper := doorsRedis.NewCommandDeduper(redisClient, cfg.App.World, cfg.Authority.DedupeTTL)
	executor := router.NewExecutor(tokens, deduper, doorService, pauser).WithAuthority(authority)

	// 启动订阅者
	subscriber := doorsNats.NewCommandSubscriber(natsClient.Conn(), cfg.App.World, executor, doorsNats.SubscriberConfig{
		BufferSize: cfg.NATS.BufferSize,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}
	if err := subscriber.SubscribeAuthority(); err != nil {
		logger.Error("Failed to subscribe authority subject", "error", err)
		os.Exit(1)
	}

	// 续约失败时退出权威角色
	go lease.Keep(ctx, cfg.Authority.RefreshInterval, func(err error) {
		authority.Set(false)
		if err := subscriber.UnsubscribeAuthority(); err != nil {
			logger.Warn("Failed to unsubscribe authority subject", "error", err)
		}
	})

	// 管理接口
	walls := wallconfig.NewService(doorRepo, itemRepo, catalog, worldSettings, node)
	checker := health.NewChecker(natsClient.Conn(), redisClient, db).
		WithAuthority(authority).
		WithScheduler(scheduler).
		WithBuffer(subscriber)
	handler := httpapi.NewHandler(checker, worldSettings, walls, registry, catalog, doorRepo)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpapi.SetupRouter(cfg.HTTP.Mode, tokens, handler, httpapi.NewAuthHandler(login)),
	}
	go func() {
		logger.Info("HTTP server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	// 主持人自己的会话：从标准输入读取事件
	gm := session.New(*user, policy.New(doorRepo, itemRepo, commandRouter, doorService, worldSettings), pauser, authority).
		WithResumer(commandRouter)
	if err := gm.Rebind(cfg.Session.Keybindings); err != nil {
		logger.Error("Invalid keybindings", "error", err)
		os.Exit(1)
	}
	logger.Debug("Key bindings", "bindings", gm.Keys().Bindings())
	go func() {
		if err := gm.Replay(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Input replay stopped", "error", err)
		}
	}()

	logger.Info("Authority session started", "name", cfg.App.Name, "world", cfg.App.World, "system", cfg.App.System)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
	if err := subscriber.Stop(); err != nil {
		logger.Warn("Failed to stop subscriber", "error", err)
	}
	registry.DismissAll(shutdownCtx)
	scheduler.Stop()
	if err := lease.Release(shutdownCtx); err != nil {
		logger.Warn("Failed to release authority", "error", err)
	}
	logger.Info("Authority session stopped")
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
