package port

import (
	"context"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
)

// AuditSink appends one audit entry to durable storage. Callers treat it as
// fire-and-forget; a sink failure is logged and never propagated into the
// operation being audited.
type AuditSink interface {
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
}
