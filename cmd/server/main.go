package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/adapter/handler"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/adapter/storage"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/config"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/service"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Warm the capacity mirror from the durable store
	slots, err := mysqlAdapter.ListSlots(ctx)
	if err != nil {
		log.Fatalf("failed to list slots: %v", err)
	}
	for _, slot := range slots {
		if err := redisAdapter.SetSlot(ctx, slot.ID, slot.Capacity, slot.CommittedCount); err != nil {
			log.Fatalf("failed to seed capacity mirror for slot %s: %v", slot.ID, err)
		}
	}
	log.Printf("seeded capacity mirror for %d slots", len(slots))

	// Initialize services
	audit := service.NewAuditTrail(mysqlAdapter, cfg.AuditQueueSize, cfg.AuditWorkers)
	orderService := service.NewOrderService(mysqlAdapter, redisAdapter, audit)
	batchService := service.NewBatchService(mysqlAdapter, orderService, audit)
	trackingService := service.NewTrackingService(mysqlAdapter, audit)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, batchService, trackingService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Drain the audit queue before closing connections
	audit.Close()
	log.Println("audit trail drained")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}
