package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/crypto/bcrypt"

	"riasin/backend/internal/agenda"
	"riasin/backend/internal/cache"
	"riasin/backend/internal/config"
	"riasin/backend/internal/domain"
	"riasin/backend/internal/httpapi"
	"riasin/backend/internal/receipt"
	"riasin/backend/internal/service"
	"riasin/backend/internal/store"
	"riasin/backend/internal/store/memory"
	pgstore "riasin/backend/internal/store/postgres"
)

const draftSweepInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.DBMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("migration failed: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	if err := ensureAdmin(ctx, repo, os.Getenv("SEED_ADMIN_PASSWORD")); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	cacheStore, closeCache := openCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	svc := service.New(repo, service.Options{
		Cache:    cacheStore,
		CacheTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Location: loc,
		Business: receipt.Business{
			Name:    cfg.AppName,
			Address: cfg.BusinessAddress,
			Phone:   cfg.BusinessPhone,
		},
		Receipts: receipt.NewWriter(cfg.ReceiptDir),
		DraftTTL: time.Duration(cfg.DraftTTLMinutes) * time.Minute,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	scheduler := agenda.NewScheduler(repo, loc)
	if cfg.AgendaCron != "" {
		if err := scheduler.ScheduleDigest(cfg.AgendaCron); err != nil {
			log.Fatalf("invalid AGENDA_CRON: %v", err)
		}
	}
	if err := scheduler.Every(draftSweepInterval, svc.SweepDrafts); err != nil {
		log.Fatalf("schedule draft sweep: %v", err)
	}
	scheduler.Start()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("studio backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	scheduler.Stop(shutdownCtx)

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.BindHost == "" {
		return fmt.Errorf("BIND_HOST must not be empty")
	}
	return nil
}

// openCache prefers Redis and falls back to a process-local cache when Redis
// is not configured or does not answer.
func openCache(ctx context.Context, addr, password string, db int) (cache.JSONCache, func() error) {
	if addr == "" {
		log.Println("cache: memory")
		return cache.NewMemoryCache(), nil
	}
	redisCache := cache.NewRedisCache(addr, password, db)
	if err := redisCache.Ping(ctx); err != nil {
		log.Printf("redis unavailable (%v), using memory cache", err)
		_ = redisCache.Close()
		return cache.NewMemoryCache(), nil
	}
	log.Println("cache: redis")
	return redisCache, redisCache.Close
}

// ensureAdmin creates the first administrator on an empty user table.
func ensureAdmin(ctx context.Context, repo store.Repository, password string) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if len(password) < 8 {
		return fmt.Errorf("no users exist; set SEED_ADMIN_PASSWORD (at least 8 characters) to create the admin account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	created, err := repo.CreateUser(ctx, domain.UserAccount{
		Username:    "admin",
		Password:    string(hash),
		DisplayName: "Administrator",
		Role:        domain.RoleAdmin,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	log.Printf("created admin account id=%d", created.ID)
	return nil
}
