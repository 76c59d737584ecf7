// Command smoke hammers one slot with concurrent cancel/reinstate cycles and
// verifies the committed count lands back where it started. It needs a
// running MySQL and Redis with the schema applied; it seeds and removes its
// own slot and orders.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/adapter/storage"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/config"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/service"
)

const (
	orderCount   = 20
	unitsEach    = 2
	cycleCount   = 5
	slotCapacity = 50
)

func main() {
	cfg := config.Default()
	ctx := context.Background()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	audit := service.NewAuditTrail(mysqlAdapter, 1024, 1)
	defer audit.Close()
	orders := service.NewOrderService(mysqlAdapter, redisAdapter, audit)

	slotID := "smoke-" + uuid.New().String()
	seedSlot(ctx, db, slotID)
	orderIDs := seedOrders(ctx, db, slotID)
	defer cleanup(ctx, db, slotID)

	if err := redisAdapter.SetSlot(ctx, slotID, slotCapacity, orderCount*unitsEach); err != nil {
		log.Fatalf("failed to seed mirror: %v", err)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, id := range orderIDs {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			for i := 0; i < cycleCount; i++ {
				if err := orders.UpdateStatus(ctx, "smoke", orderID, domain.OrderStatusCanceled); err != nil {
					log.Printf("cancel %s: %v", orderID, err)
				}
				if err := orders.UpdateStatus(ctx, "smoke", orderID, domain.OrderStatusSubmitted); err != nil {
					log.Printf("reinstate %s: %v", orderID, err)
				}
			}
		}(id)
	}
	wg.Wait()

	var committed int
	if err := db.QueryRowContext(ctx, `SELECT committed_count FROM slots WHERE id = ?`, slotID).Scan(&committed); err != nil {
		log.Fatalf("failed to read slot: %v", err)
	}

	want := orderCount * unitsEach
	fmt.Printf("ran %d cancel/reinstate cycles across %d orders in %v\n", cycleCount, orderCount, time.Since(start))
	fmt.Printf("committed count: got %d, want %d\n", committed, want)
	if committed != want {
		log.Fatal("capacity ledger drifted")
	}
	fmt.Println("ledger consistent")
}

func seedSlot(ctx context.Context, db *sql.DB, slotID string) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO slots (id, slot_date, location, capacity, committed_count, is_open, created_at, updated_at)
		VALUES (?, CURDATE(), 'smoke stand', ?, ?, 1, NOW(), NOW())`,
		slotID, slotCapacity, orderCount*unitsEach)
	if err != nil {
		log.Fatalf("failed to seed slot: %v", err)
	}
}

func seedOrders(ctx context.Context, db *sql.DB, slotID string) []string {
	lines, err := domain.EncodeLineItems(domain.LineItems{
		{FlavorID: "f-smoke", Flavor: "sourdough", Quantity: unitsEach},
	})
	if err != nil {
		log.Fatalf("failed to encode line items: %v", err)
	}
	ids := make([]string, 0, orderCount)
	for i := 0; i < orderCount; i++ {
		id := "smoke-order-" + uuid.New().String()
		_, err := db.ExecContext(ctx, `
			INSERT INTO orders (id, slot_id, customer, status, line_items, total_cents, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, NOW(), NOW())`,
			id, slotID, fmt.Sprintf("smoke customer %d", i), domain.OrderStatusSubmitted, lines)
		if err != nil {
			log.Fatalf("failed to seed order: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func cleanup(ctx context.Context, db *sql.DB, slotID string) {
	db.ExecContext(ctx, `DELETE FROM orders WHERE slot_id = ?`, slotID)
	db.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, slotID)
}
