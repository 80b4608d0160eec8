package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"leaflet/api/internal/app"
	"leaflet/api/internal/auth"
	"leaflet/api/internal/cache"
	"leaflet/api/internal/config"
	"leaflet/api/internal/export"
	"leaflet/api/internal/markdown"
	"leaflet/api/internal/objstore"
	"leaflet/api/internal/publish"
	"leaflet/api/internal/search"
	"leaflet/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir)); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	dataStore := store.NewPostgresStore(db)

	objects, err := objstore.New(objstore.Config{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		UseSSL:        cfg.MinioUseSSL,
		BundleBucket:  cfg.BundleBucket,
		AssetBucket:   cfg.AssetBucket,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		slog.Error("object store setup failed", "error", err)
		os.Exit(1)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		slog.Error("bucket setup failed", "error", err)
		os.Exit(1)
	}

	renderer := markdown.NewRenderer()
	pipeline := publish.NewPipeline(renderer, objects)
	pipeline.UploadTimeout = cfg.UploadTimeout

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var publishCache *cache.PublishCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		publishCache, err = cache.NewPublishCache(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer publishCache.Close()
	}

	var verifier auth.Verifier
	if strings.TrimSpace(cfg.JWKSURL) != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.AuthIssuer, cfg.AuthAudience)
		if err != nil {
			slog.Error("jwks setup failed", "error", err)
			os.Exit(1)
		}
		verifier = jwksVerifier
	} else {
		slog.Warn("no JWKS URL configured, using shared-secret token verification")
		verifier = auth.NewStaticVerifier([]byte(cfg.AuthSecret), cfg.AuthIssuer, cfg.AuthAudience)
	}

	exporter := export.NewService(renderer)

	// cache is an interface-typed nil trap if passed directly; only hand the
	// service a cache when one exists.
	var service *app.Service
	if publishCache != nil {
		service = app.New(dataStore, pipeline, objects, searchService, publishCache, exporter)
	} else {
		service = app.New(dataStore, pipeline, objects, searchService, nil, exporter)
	}

	httpServer := app.NewHTTPServer(service, verifier, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
