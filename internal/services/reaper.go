package services

import (
	"context"

	"github.com/paulexconde/questflow/internal/pkg/logger"
)

// Reaper runs the orphan cleanup passes. A question is an orphan when no
// registered root reaches it through parent links or answer branch links.
type Reaper struct {
	store FlowStore
	log   *logger.Logger
}

func NewReaper(store FlowStore, log *logger.Logger) *Reaper {
	return &Reaper{store: store, log: log.With("component", "reaper")}
}

// ReapAfterSave runs the global reachability sweep. Failures are logged and
// swallowed: a failed reap never fails the save, the rows just stay until the
// next successful cycle. Reads key off the live root closure, so unreaped
// rows waste storage without becoming visible.
func (r *Reaper) ReapAfterSave(ctx context.Context) {
	if err := r.store.ReapOrphans(ctx); err != nil {
		r.log.Error("orphan reap failed", "error", err)
	}
}

// PurgeType destructively removes every row tied to a questionnaire type:
// answer submissions, identificator combinations, layouts, root mappings,
// reference bindings, and the reachable question/answer tree. Errors
// propagate; a partial purge must be visible to the caller.
func (r *Reaper) PurgeType(ctx context.Context, typeID int) error {
	return r.store.PurgeTypeData(ctx, typeID)
}
