package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wavespeed2api/internal/chat_service/api"
	"wavespeed2api/internal/chat_service/service"
	"wavespeed2api/internal/chat_service/store"
	"wavespeed2api/internal/config"
	"wavespeed2api/internal/database/redis"
	"wavespeed2api/internal/uploader"
	"wavespeed2api/internal/wavespeed"
	"wavespeed2api/pkg/httpclient"
	"wavespeed2api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// Load configuration
	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg := cfgMgr.Current()

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("chat_service")
	appLogger.Info("Logger initialized")

	// Initialize result cache (optional)
	var cache *store.ResultCache
	if cfg.Cache.Enabled {
		rdb, err := redis.GetClient(&cfg.Cache.Redis)
		if err != nil {
			appLogger.WithError(err).Warn("Redis 不可用, 结果缓存将被关闭")
		} else {
			cache = store.NewResultCache(rdb, time.Duration(cfg.Cache.TTL)*time.Second, appLogger)
			appLogger.Info("结果缓存已启用")
		}
	}

	// Initialize dependencies (Store -> Service -> Handler)
	up := uploader.New(&cfg.R2, appLogger)

	upstreamHTTP, err := httpclient.New(cfg.Middleware.CircuitBreaker, 30*time.Second)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	wsClient := wavespeed.NewClient(
		cfg.Wavespeed.APIURL,
		cfg.Wavespeed.Referer,
		time.Duration(cfg.Wavespeed.PollInterval)*time.Second,
		cfgMgr,
		upstreamHTTP,
		appLogger,
	)

	svc := service.NewService(cfgMgr, wsClient, up, cache, appLogger)
	handler := api.NewHandler(svc, cfgMgr, appLogger)
	appLogger.Info("Dependencies injected")

	// Setup Gin router
	router, err := api.SetupRouter(handler, cfgMgr)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		appLogger.Info("Starting server on " + addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err.Error())
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if err := redis.Close(); err != nil {
		appLogger.WithError(err).Warn("关闭 Redis 连接失败")
	}
	appLogger.Info("Server exited")
}
