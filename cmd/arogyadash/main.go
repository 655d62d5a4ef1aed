package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"arogyadash/backend"
	"arogyadash/cache"
	"arogyadash/config"
	"arogyadash/engine"
	"arogyadash/messaging"
	"arogyadash/metrics"
	"arogyadash/store"
	"arogyadash/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "arogyadash.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("arogyadash", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("arogyadash: backend base URL %s", cfg.Backend.BaseURL)

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("arogyadash: database open (%s)", cfg.Database.Driver)

	// Backend client
	backendClient := backend.NewClient(cfg.Backend.BaseURL)

	// Redis response cache
	var respCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		switch {
		case err != nil:
			log.Printf("arogyadash: redis not available (%v), running without cache", err)
		case cfg.Backend.CacheTTL <= 0:
			log.Printf("arogyadash: redis connected but backend.cache_ttl is 0, cache off")
		default:
			respCache = cache.NewRedisCache(redisClient, cfg.Backend.CacheTTL)
			backendClient.SetCache(respCache)
			log.Printf("arogyadash: redis cache on (%s, ttl %s)", cfg.Redis.Address, cfg.Backend.CacheTTL)
		}
	}

	// Messaging client
	var publisher engine.Publisher
	if cfg.Messaging.Enabled {
		msgClient := messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("arogyadash: messaging connect failed (%v)", err)
		} else {
			log.Printf("arogyadash: messaging connected (%s)", msgClient.Backend())
		}
		defer msgClient.Close()
		publisher = msgClient
	}

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Backend:    backendClient,
		MsgClient:  publisher,
		Metrics:    metrics.New(),
	})
	eng.Start()
	defer eng.Stop()

	if respCache != nil {
		eng.Events.SubscribeTypes(func(engine.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := respCache.Flush(ctx); err != nil {
				log.Printf("arogyadash: flush response cache: %v", err)
			}
		}, engine.EventConfigReloaded)
	}

	// Config hot reload
	watcher, err := config.Watch(*configPath, func(next *config.Config) {
		eng.ApplyConfig(next, "file")
	})
	if err != nil {
		log.Printf("arogyadash: config watch disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("arogyadash: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("arogyadash: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("arogyadash: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("arogyadash: stopped")
}
