package domain

import "time"

// AuditEntry is a fire-and-forget trace of one mutating operation.
// Persisting it must never block or roll back the operation it describes.
type AuditEntry struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Detail   string
	At       time.Time
}
