package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// AuditTrail buffers audit entries and drains them to the sink from a worker
// pool, so recording an entry never blocks a mutating operation. When the
// queue is full the entry is dropped with a warning rather than applying
// backpressure.
type AuditTrail struct {
	queue chan domain.AuditEntry
	wg    sync.WaitGroup
	once  sync.Once
}

// NewAuditTrail starts workerCount workers draining into sink.
func NewAuditTrail(sink port.AuditSink, queueSize, workerCount int) *AuditTrail {
	a := &AuditTrail{
		queue: make(chan domain.AuditEntry, queueSize),
	}
	for i := 0; i < workerCount; i++ {
		a.wg.Add(1)
		go func(id int) {
			defer a.wg.Done()
			a.workerLoop(id, sink)
		}(i)
	}
	return a
}

func (a *AuditTrail) workerLoop(id int, sink port.AuditSink) {
	for entry := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sink.AppendAudit(ctx, entry); err != nil {
			log.Printf("audit worker %d: failed to append %s %s: %v", id, entry.Action, entry.EntityID, err)
		}
		cancel()
	}
}

// Record enqueues one entry. Non-blocking: a full queue drops the entry.
func (a *AuditTrail) Record(actor, action, entity, entityID, detail string) {
	entry := domain.AuditEntry{
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
		At:       time.Now(),
	}
	select {
	case a.queue <- entry:
	default:
		log.Printf("audit queue full, dropping %s %s/%s", action, entity, entityID)
	}
}

// Close stops accepting entries and waits for the workers to drain the queue.
func (a *AuditTrail) Close() {
	a.once.Do(func() {
		close(a.queue)
	})
	a.wg.Wait()
}
