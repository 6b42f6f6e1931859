package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.trapdoors/internal/auth"
	"sudooom.trapdoors/internal/config"
	doorsNats "sudooom.trapdoors/internal/nats"
	"sudooom.trapdoors/internal/policy"
	doorsRedis "sudooom.trapdoors/internal/redis"
	"sudooom.trapdoors/internal/repository"
	"sudooom.trapdoors/internal/router"
	"sudooom.trapdoors/internal/session"
	"sudooom.trapdoors/internal/settings"
	"sudooom.trapdoors/internal/snowflake"
)

func main() {
	// 加载配置
	cfg, err := config.Load(config.GetEnv("DOORS_CONFIG", "configs/config.yaml"))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志，标准输出留给事件结果
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 连接 NATS
	natsClient, err := doorsNats.NewClient(cfg.NATS, cfg.App.Name+"-player-"+cfg.Session.UserID)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis（仅用于探测权威会话是否在线）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	// 连接数据库（只读）
	db, err := repository.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	doorRepo := repository.NewDoorRepository(db)
	itemRepo := repository.NewItemRepository(db)
	userRepo := repository.NewUserRepository(db)

	// 令牌由权威会话签发，本进程只持有公钥
	public, err := auth.DecodePublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Error("Invalid token public key", "error", err)
		os.Exit(1)
	}
	tokens := auth.NewVerifier(public)

	loginCtx, loginCancel := context.WithTimeout(ctx, 10*time.Second)
	issued, err := auth.NewTokenClient(cfg.Session.AuthorityURL, nil).
		RequestToken(loginCtx, cfg.Session.UserID, cfg.Session.Password)
	loginCancel()
	if err != nil {
		logger.Error("Failed to obtain session token", "authority", cfg.Session.AuthorityURL, "userId", cfg.Session.UserID, "error", err)
		os.Exit(1)
	}
	token := issued.Token
	// 校验一次，确认公钥与权威会话匹配
	if _, err := tokens.Verify(token); err != nil {
		logger.Error("Session token rejected by configured public key", "error", err)
		os.Exit(1)
	}

	user, err := userRepo.GetUser(ctx, issued.UserID)
	if err != nil {
		logger.Error("Failed to load session user", "userId", issued.UserID, "error", err)
		os.Exit(1)
	}

	node := snowflake.NewNode(cfg.Session.NodeID)
	lease := doorsRedis.NewAuthorityLease(redisClient, cfg.App.World, user.ID, cfg.Authority.LeaseTTL)
	publisher := doorsNats.NewCommandPublisher(natsClient.Conn(), cfg.App.World)
	commandRouter := router.NewRouter(publisher, node, router.Identity{UserID: user.ID, Token: token}).
		WithProbe(lease)

	// 非权威会话只处理广播命令
	authority := router.NewAuthority(false)
	pauser := session.NewPauser()
	executor := router.NewExecutor(tokens, nil, nil, pauser).WithAuthority(authority)
	subscriber := doorsNats.NewCommandSubscriber(natsClient.Conn(), cfg.App.World, executor, doorsNats.SubscriberConfig{
		BufferSize: cfg.NATS.BufferSize,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}
	defer subscriber.Stop()

	worldSettings := settings.New(cfg.Settings)
	player := session.New(*user, policy.New(doorRepo, itemRepo, commandRouter, nil, worldSettings), pauser, authority)
	if err := player.Rebind(cfg.Session.Keybindings); err != nil {
		logger.Error("Invalid keybindings", "error", err)
		os.Exit(1)
	}
	logger.Debug("Key bindings", "bindings", player.Keys().Bindings())

	logger.Info("Player session started", "userId", user.ID, "characterId", user.CharacterID, "world", cfg.App.World)

	if err := player.Replay(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Input replay failed", "error", err)
	}

	// 等待最后的命令投递
	if err := natsClient.Drain(); err != nil {
		logger.Warn("Failed to drain NATS", "error", err)
	}
	logger.Info("Player session stopped")
}
