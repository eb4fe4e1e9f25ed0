package ledger

import (
	"context"
	"time"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

// Status is the lifecycle state of a tracked resource. Created is the
// only non-terminal state; rollback moves an entry to RolledBack or
// Failed and nothing moves it back.
type Status string

// Tracked resource statuses
const (
	StatusCreated    Status = "created"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// ReversalFunc undoes the creation of one tracked resource. It is a
// typed closure captured at tracking time, not a command string
// interpolated at execution.
type ReversalFunc func(ctx context.Context) error

// TrackedResource is one ledger entry for a resource created during a
// provisioning run. Entries are appended in dependency order: an entry
// is never tracked before the entries it depends on, so a back-to-front
// walk always undoes dependents before dependencies.
type TrackedResource struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      resource.Kind     `json:"kind"`
	DependsOn []string          `json:"depends_on,omitempty"`
	Reversal  ReversalFunc      `json:"-"`
	Status    Status            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TrackedAt time.Time         `json:"tracked_at"`
}

// Summary is a read-only snapshot of a run's ledger
type Summary struct {
	Total     int                   `json:"total"`
	ByStatus  map[Status]int        `json:"by_status"`
	ByKind    map[resource.Kind]int `json:"by_kind"`
	Resources []TrackedResource     `json:"resources"`
}
