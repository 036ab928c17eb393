package main

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/api"
	cacheadapter "github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/cache/adapter"
	cacheport "github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/cache/port"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/config"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/realtime"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load("configs/config.yml")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	var cache cacheport.Cache
	if cfg.Redis.URL != "" {
		rc, err := cacheadapter.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, warm-start snapshot runs in-memory", zap.Error(err))
			cache = cacheadapter.NewMemoryCache()
		} else {
			cache = rc
		}
	} else {
		cache = cacheadapter.NewMemoryCache()
	}
	defer cache.Close()

	session, err := realtime.NewSession(cfg.Realtime.URL, cfg.Auth.Token, logger.Named("realtime"))
	if err != nil {
		// no token means no session; the engine cannot run degraded here
		logger.Fatal("cannot establish session", zap.Error(err))
	}

	apiClient := api.NewClient(cfg.API.BaseURL, cfg.Auth.Token, logger.Named("api"))

	engine := chat.NewEngine(session, apiClient, cfg.User.ID, chat.Options{
		PresenceInterval: time.Duration(cfg.Timers.PresenceIntervalSeconds) * time.Second,
		TypingExpiry:     time.Duration(cfg.Timers.TypingIdleSeconds) * time.Second,
		ComposeIdle:      time.Duration(cfg.Timers.TypingIdleSeconds) * time.Second,
		Cache:            cache,
	}, logger.Named("engine"))
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		// a failed first load still leaves a usable UI (retry affordance)
		logger.Warn("initial sync incomplete", zap.Error(err))
	}

	program := tea.NewProgram(newModel(engine, cfg.User.ID), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Fatal("ui crashed", zap.Error(err))
	}
}
