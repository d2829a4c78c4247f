package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskboard/api/internal/app"
	"taskboard/api/internal/assets"
	"taskboard/api/internal/cache"
	"taskboard/api/internal/config"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close(context.Background())

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatal("index creation failed", zap.Error(err))
	}

	opts := app.Options{}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		host, err := assets.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			logger.Fatal("asset host connection failed", zap.Error(err))
		}
		opts.Assets = host
		logger.Info("asset host configured", zap.String("bucket", cfg.MinioBucket))
	} else {
		logger.Info("asset host not configured, profile pictures disabled")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		avatars, err := cache.NewAvatarCache(cfg.RedisURL, cfg.AvatarURLTTL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer avatars.Close()
		opts.Avatars = avatars
		logger.Info("avatar URL cache configured")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, storeFallback{db}, logger)
	searchService.ReindexFromStore(ctx)
	opts.Search = searchService

	service := app.New(cfg, db, opts, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("taskboard API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

// storeFallback adapts the Mongo prefix scan to the search fallback surface.
type storeFallback struct {
	st *store.MongoStore
}

func (f storeFallback) SearchUsersByPrefix(ctx context.Context, prefix string, limit int) ([]search.UserRecord, error) {
	users, err := f.st.SearchUsersByPrefix(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	return toRecords(users), nil
}

func (f storeFallback) LoadAllRecords(ctx context.Context) ([]search.UserRecord, error) {
	users, err := f.st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(users), nil
}

func toRecords(users []store.User) []search.UserRecord {
	records := make([]search.UserRecord, 0, len(users))
	for _, user := range users {
		records = append(records, search.UserRecord{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
			Email:    user.Email,
		})
	}
	return records
}
