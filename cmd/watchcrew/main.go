package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mattgrd/watchcrew/internal/api"
	"github.com/mattgrd/watchcrew/internal/auth"
	"github.com/mattgrd/watchcrew/internal/config"
	"github.com/mattgrd/watchcrew/internal/db"
	"github.com/mattgrd/watchcrew/internal/identity"
	"github.com/mattgrd/watchcrew/internal/jobs"
	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/repository"
	"github.com/mattgrd/watchcrew/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("watchcrew %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	cfg.MergeFromDB(database.DB)

	var dir identity.Directory
	if cfg.IdentityURL != "" {
		dir = identity.NewClient(cfg.IdentityURL)
	} else {
		log.Println("IDENTITY_URL not set, profile display fields will be empty")
		dir = identity.Static{}
	}
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		dir = identity.NewCachedDirectory(dir, rdb, cfg.ProfileCacheTTL)
	}

	store := repository.NewStore(database.DB)
	hub := api.NewWSHub()
	svc := lists.NewService(store, dir, hub, lists.WithLinkTTL(cfg.InviteLinkTTL))

	if cfg.RedisEnabled() {
		queue := jobs.NewQueue(cfg.RedisAddr)
		queue.RegisterHandler(jobs.TaskPurgeInvites, jobs.NewPurgeHandler(svc, cfg.InvitePurgeAfter))
		if err := queue.Schedule(cfg.PurgeJobSchedule, jobs.TaskPurgeInvites, nil); err != nil {
			log.Fatalf("scheduling purge job failed: %v", err)
		}
		if err := queue.Start(); err != nil {
			log.Fatalf("job queue failed to start: %v", err)
		}
		defer queue.Stop()
	} else {
		log.Println("REDIS_ADDR not set, invite retention purge disabled")
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	srv := api.NewServer(cfg, svc, dir, verifier, hub)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}
