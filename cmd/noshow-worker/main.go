package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/caredesk/clinic-scheduling/internal/clock"
	"github.com/caredesk/clinic-scheduling/internal/config"
	"github.com/caredesk/clinic-scheduling/internal/db"
	redisclient "github.com/caredesk/clinic-scheduling/internal/redis"
	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("noshow-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running no-show worker in env=%s cron=%q grace=%s", cfg.Env, cfg.NoShowCronSpec, cfg.NoShowGrace)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPractitionerLocker(rdb, cfg.LockTTL)
	svc := scheduling.NewService(repo, locker, scheduling.LogNotifier{}, clock.System{}, cfg)

	// Sweep once on startup so a long-stopped worker catches up immediately.
	runSweep(rootCtx, svc)

	c := cron.New()
	if _, err := c.AddFunc(cfg.NoShowCronSpec, func() {
		runSweep(rootCtx, svc)
	}); err != nil {
		log.Fatalf("invalid NO_SHOW_CRON %q: %v", cfg.NoShowCronSpec, err)
	}
	c.Start()

	<-rootCtx.Done()

	log.Println("shutdown signal received, stopping no-show worker")
	<-c.Stop().Done()
}

func runSweep(ctx context.Context, svc *scheduling.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkOverdueNoShows(runCtx)
	if err != nil {
		log.Printf("no-show sweep error: %v", err)
		return
	}
	log.Printf("no-show sweep complete: marked=%d in %s", marked, time.Since(start))
}
