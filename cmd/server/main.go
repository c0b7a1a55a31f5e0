package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/redis-cart/internal/adapter/handler"
	"github.com/rl1809/redis-cart/internal/adapter/storage"
	"github.com/rl1809/redis-cart/internal/core/domain"
	"github.com/rl1809/redis-cart/internal/core/service"
	"github.com/rl1809/redis-cart/internal/port"
)

const (
	defaultHTTPAddr     = ":8080"
	defaultRedisAddr    = "localhost:6379"
	defaultWorkerCount  = 4
	defaultQueueSize    = 1024
	shutdownTimeout     = 5 * time.Second
	archiveOrderTimeout = 5 * time.Second
)

func main() {
	// Optional .env for local development.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpAddr := envOr("HTTP_ADDR", defaultHTTPAddr)
	redisAddr := envOr("REDIS_ADDR", defaultRedisAddr)
	mysqlDSN := os.Getenv("MYSQL_DSN")

	cartCfg := storage.CartConfig{
		ExpireContents: os.Getenv("CART_EXPIRE_CONTENTS") == "true",
	}
	if raw := os.Getenv("CART_TTL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			log.Fatalf("invalid CART_TTL_SECONDS: %q", raw)
		}
		cartCfg.TTL = time.Duration(secs) * time.Second
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb, cartCfg)
	numberAdapter := storage.NewNumberAdapter(rdb)

	// Initialize MySQL archive, optional. Without it, completed checkouts
	// live only in the order stream.
	var archive port.OrderArchive
	var db *sql.DB
	if mysqlDSN != "" {
		var err error
		db, err = sql.Open("mysql", mysqlDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}

		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to ensure archive schema: %v", err)
		}
		archive = mysqlAdapter
		log.Println("connected to mysql, order archiving enabled")
	} else {
		log.Println("MYSQL_DSN not set, order archiving disabled")
	}

	// Initialize services
	queueSize := envIntOr("ARCHIVE_QUEUE_SIZE", defaultQueueSize)
	cartService := service.NewCartService(redisAdapter, queueSize)
	numberService := service.NewNumberService(numberAdapter)
	userService := service.NewUserService(redisAdapter)

	// Start archive workers
	workerCount := envIntOr("ARCHIVE_WORKERS", defaultWorkerCount)
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			archiveLoop(id, cartService.ArchiveQueue(), archive)
		}(i)
	}
	log.Printf("started %d archive workers", workerCount)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, numberService, userService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Close archive queue and wait for workers
	cartService.Close()
	wg.Wait()
	log.Println("archive workers stopped")

	rdb.Close()
	if db != nil {
		db.Close()
	}
	log.Println("connections closed")
}

// archiveLoop drains completed checkouts into the archive. The order stream
// stays the source of truth, so a failed insert is logged and skipped rather
// than retried or rolled back.
func archiveLoop(id int, queue <-chan domain.Order, archive port.OrderArchive) {
	for order := range queue {
		if archive == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), archiveOrderTimeout)
		if err := archive.ArchiveOrder(ctx, order); err != nil {
			log.Printf("worker %d: failed to archive order %s: %v", id, order.ID, err)
		} else {
			log.Printf("worker %d: archived order %s for user %s", id, order.ID, order.UserID)
		}
		cancel()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Fatalf("invalid %s: %q", key, raw)
	}
	return v
}
