// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/handler"
	"smart-journal-go/internal/middleware"
	"smart-journal-go/internal/pipeline"
	"smart-journal-go/internal/repository"
	"smart-journal-go/internal/service"
	"smart-journal-go/pkg/database"
	"smart-journal-go/pkg/identity"
	"smart-journal-go/pkg/kafka"
	"smart-journal-go/pkg/llm"
	"smart-journal-go/pkg/log"
	"smart-journal-go/pkg/storage"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitPostgres(cfg.Database.Postgres.DSN)
	if cfg.Database.Postgres.AutoMigrate {
		if err := database.AutoMigrate(database.DB); err != nil {
			log.Fatal("数据库迁移失败", err)
		}
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	defer database.Close()

	// 4. 初始化外部组件：Kafka 事件发布与 MinIO 导出存储（均可选）
	publisher := kafka.NewPublisher(cfg.Kafka)
	defer func() { _ = publisher.Close() }()

	var exportStore service.ObjectStore
	minioStore, err := storage.NewMinioStore(context.Background(), cfg.MinIO)
	if err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}
	if minioStore != nil {
		exportStore = minioStore
	}

	// 5. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	entryRepo := repository.NewEntryRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	tokenStore := repository.NewTokenStore(database.RDB)
	var turnLock repository.TurnLock = repository.NoopTurnLock{}
	if cfg.Chat.SerializeTurns {
		turnLock = repository.NewTurnLock(database.RDB, cfg.TurnLockTTL())
	}

	// 6. 初始化 Service (依赖注入)
	provider, err := identity.New(cfg.Auth, userRepo, tokenStore)
	if err != nil {
		log.Fatal("身份提供方初始化失败", err)
	}
	log.Infof("身份提供方: %s", cfg.Auth.Provider)
	llmClient := llm.NewClient(cfg.LLM)
	analysisService := service.NewAnalysisService(llmClient, cfg.LLM.Analysis)
	journalService := service.NewJournalService(entryRepo, analysisService, publisher)
	exportService := service.NewExportService(journalService, exportStore, time.Duration(cfg.MinIO.PresignExpiryMinutes)*time.Minute)
	windowService := service.NewChatWindowService(chatRepo, publisher, cfg.Chat)
	chatService := service.NewChatService(chatRepo, entryRepo, llmClient, turnLock, publisher, cfg.Chat)
	profileService := service.NewProfileService(entryRepo, provider)
	authService := service.NewAuthService(provider)

	// 启动分析重试消费者（需要 Kafka）
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	var consumer *kafka.Consumer
	if cfg.Kafka.RetryAnalysis {
		consumer = kafka.NewConsumer(cfg.Kafka, pipeline.NewProcessor(journalService), database.RDB)
	}
	if consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil {
				log.Error("Kafka 消费者异常退出", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// CORS 需要在认证之前，预检请求不携带 token
	r.Use(middleware.CORS(cfg.Server.CORSOrigins), middleware.RequestLogger(), gin.Recovery())
	r.Use(middleware.AuthMiddleware(provider, cfg.Server.PublicPaths))

	// 8. 注册路由
	healthHandler := handler.NewHealthHandler(r.Routes, cfg.Server.PublicPaths)
	authHandler := handler.NewAuthHandler(authService)
	journalHandler := handler.NewJournalHandler(journalService, exportService)
	chatHandler := handler.NewChatHandler(chatService, windowService, cfg.Server.CORSOrigins)
	profileHandler := handler.NewProfileHandler(profileService)

	r.GET("/", healthHandler.Root)
	r.GET("/docs", healthHandler.Docs)
	r.GET("/openapi.json", healthHandler.OpenAPI)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", authHandler.Logout)
	}

	r.POST("/analyze-entry", journalHandler.AnalyzeEntry)
	r.POST("/journal-entry", journalHandler.CreateEntry)
	r.GET("/entries", journalHandler.ListEntries)
	r.GET("/entries/export", journalHandler.ExportEntries)
	r.DELETE("/entries/:id", journalHandler.DeleteEntry)

	chat := r.Group("/chat")
	{
		chat.POST("", chatHandler.Chat)
		chat.GET("/ws", chatHandler.ChatWebSocket)
		chat.POST("/window/create", chatHandler.CreateWindow)
		chat.GET("/windows", chatHandler.ListWindows)
		chat.GET("/history/:window_id", chatHandler.History)
		chat.DELETE("/window/:id", chatHandler.DeleteWindow)
		chat.PUT("/window/:id/rename", chatHandler.RenameWindow)
	}

	profile := r.Group("/api/profile")
	{
		profile.GET("/stats", profileHandler.Stats)
		profile.POST("/update", profileHandler.Update)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 聊天流可能较长，给进行中的请求留出时间写入回复
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	stopConsumer()
	<-consumerDone
	log.Info("服务已优雅关闭")
}
