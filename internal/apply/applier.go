// Package apply commits planned ops as sequential, size-bounded atomic batches.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/housing-reconciler/internal/common"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

const (
	// StoreBatchLimit is the store's atomic-write limit.
	StoreBatchLimit = 500
	// DefaultBatchSizeLimit leaves a safety margin under StoreBatchLimit.
	DefaultBatchSizeLimit = 450
)

// Committer applies one batch atomically: every op or none.
type Committer interface {
	Commit(ctx context.Context, batch []entity.MutationOp) error
}

// BatchCommitFailedError aborts a run. Batches up to LastCommitted (-1 for
// none) stay committed; there is no cross-batch rollback. References counts
// the reference creates committed before the planned batches.
type BatchCommitFailedError struct {
	Batch         int
	LastCommitted int
	References    int
	Cause         error
}

func (e *BatchCommitFailedError) Error() string {
	return fmt.Sprintf("%s: batch %d failed (last committed batch %d, references committed %d): %v",
		common.CodeBatchCommitFailed, e.Batch, e.LastCommitted, e.References, e.Cause)
}

func (e *BatchCommitFailedError) Unwrap() []error {
	return []error{common.ErrBatchCommitFailed, e.Cause}
}

// Result describes what the applier did (or, in dry-run, would do).
type Result struct {
	DryRun     bool
	Batches    [][]entity.MutationOp
	Committed  int
	OpsApplied int
}

// Applied returns the ops of committed batches (all batches in dry-run).
func (r Result) Applied() []entity.MutationOp {
	n := r.Committed
	if r.DryRun {
		n = len(r.Batches)
	}
	var out []entity.MutationOp
	for _, b := range r.Batches[:n] {
		out = append(out, b...)
	}
	return out
}

type Applier struct {
	store  Committer
	limit  int
	logger *slog.Logger
}

// New validates limit against the store limit.
func New(store Committer, limit int, logger *slog.Logger) (*Applier, error) {
	if limit < 1 || limit > StoreBatchLimit {
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("batch size limit %d outside 1..%d", limit, StoreBatchLimit), common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: store, limit: limit, logger: logger}, nil
}

// Partition splits ops, in order, into batches of at most limit ops.
func Partition(ops []entity.MutationOp, limit int) [][]entity.MutationOp {
	if limit < 1 {
		limit = 1
	}
	var batches [][]entity.MutationOp
	for start := 0; start < len(ops); start += limit {
		end := min(start+limit, len(ops))
		batches = append(batches, ops[start:end])
	}
	return batches
}

// Apply commits batches one after another. In dry-run it partitions and
// returns the same result without a single write.
func (a *Applier) Apply(ctx context.Context, ops []entity.MutationOp, dryRun bool) (Result, error) {
	logger := common.LoggerFromContext(ctx, a.logger)
	res := Result{DryRun: dryRun, Batches: Partition(ops, a.limit)}
	if dryRun {
		res.OpsApplied = len(ops)
		logger.Info("apply.dry_run", "ops", len(ops), "batches", len(res.Batches))
		return res, nil
	}

	for i, batch := range res.Batches {
		if err := ctx.Err(); err != nil {
			return res, &BatchCommitFailedError{Batch: i, LastCommitted: i - 1, Cause: err}
		}
		start := time.Now()
		if err := a.store.Commit(ctx, batch); err != nil {
			logger.Error("apply.batch.failed", "batch", i, "size", len(batch), "error", err)
			return res, &BatchCommitFailedError{Batch: i, LastCommitted: i - 1, Cause: err}
		}
		res.Committed++
		res.OpsApplied += len(batch)
		logger.Info("apply.batch.ok", "batch", i, "size", len(batch), "elapsed_ms", time.Since(start).Milliseconds())
	}
	return res, nil
}

// CommitOne commits a single op as its own batch.
func (a *Applier) CommitOne(ctx context.Context, op entity.MutationOp) error {
	return a.store.Commit(ctx, []entity.MutationOp{op})
}
