// Package reconcile runs one reconciliation of an authoritative spreadsheet
// against a store collection: normalize, resolve references, match, plan,
// apply in batches and write the run log.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/apply"
	"github.com/joseph-ayodele/housing-reconciler/internal/audit"
	"github.com/joseph-ayodele/housing-reconciler/internal/common"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/match"
	"github.com/joseph-ayodele/housing-reconciler/internal/normalize"
	"github.com/joseph-ayodele/housing-reconciler/internal/plan"
	"github.com/joseph-ayodele/housing-reconciler/internal/reference"
	"github.com/joseph-ayodele/housing-reconciler/internal/repository"
	"github.com/joseph-ayodele/housing-reconciler/internal/spreadsheet"
)

// Config is the fixed engine configuration. Only the input and the
// dry-run switch vary per run.
type Config struct {
	BatchSizeLimit int
	AliasTable     map[string]string
	// Clock is the source of "today" for derived status.
	Clock clockwork.Clock
	// Location is the business time zone "today" is taken in.
	Location *time.Location
	// Specs overrides the built-in collection specs.
	Specs map[constants.Collection]CollectionSpec
	// RunLock takes the store's per-collection lock for live runs when
	// the store supports it.
	RunLock bool
	// LockTTL is the age after which a lock left by a dead run is taken
	// over. Zero keeps locks until released.
	LockTTL time.Duration
}

// DefaultLockTTL outlasts any run.
const DefaultLockTTL = 2 * time.Hour

// BusinessLocation is UTC+8, the zone the housing business operates in.
var BusinessLocation = time.FixedZone("CST", 8*60*60)

func DefaultConfig() Config {
	return Config{
		BatchSizeLimit: apply.DefaultBatchSizeLimit,
		AliasTable:     constants.DefaultAliasTable,
		Clock:          clockwork.NewRealClock(),
		Location:       BusinessLocation,
		Specs:          BuiltinSpecs(),
		RunLock:        true,
		LockTTL:        DefaultLockTTL,
	}
}

// RunRequest names the input of one run. Input, when set, is read instead
// of InputPath; InputPath then only supplies the file extension.
type RunRequest struct {
	Collection constants.Collection
	InputPath  string
	Input      io.Reader
	DryRun     bool
}

// Engine reconciles collections of one store.
type Engine struct {
	store   repository.Store
	audit   *audit.Logger
	applier *apply.Applier
	canon   *reference.Canonicalizer
	cfg     Config
	logger  *slog.Logger
}

// NewEngine validates cfg. auditLog may be nil to skip run logs.
func NewEngine(store repository.Store, auditLog *audit.Logger, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = BusinessLocation
	}
	if cfg.Specs == nil {
		cfg.Specs = BuiltinSpecs()
	}
	applier, err := apply.New(store, cfg.BatchSizeLimit, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:   store,
		audit:   auditLog,
		applier: applier,
		canon:   reference.NewCanonicalizer(cfg.AliasTable),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run reads the input file and reconciles it.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Report, error) {
	table, err := ReadInput(req, e.cfg.Specs)
	if err != nil {
		e.logger.Error("reconcile.input.failed", "path", req.InputPath, "error", err)
		return nil, err
	}
	return e.Reconcile(ctx, req.Collection, table, req.DryRun)
}

// ReadInput reads the spreadsheet of req and checks its header against the
// collection's required columns. It never touches the store, so callers can
// reject bad input before connecting. nil specs means the built-ins.
func ReadInput(req RunRequest, specs map[constants.Collection]CollectionSpec) (*spreadsheet.Table, error) {
	if specs == nil {
		specs = BuiltinSpecs()
	}
	spec, ok := specs[req.Collection]
	if !ok {
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown collection %q", req.Collection), common.ErrInvalidInput)
	}

	var (
		table *spreadsheet.Table
		err   error
	)
	if req.Input != nil {
		table, err = spreadsheet.Read(req.Input, req.InputPath)
	} else {
		table, err = spreadsheet.ReadFile(req.InputPath)
	}
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, common.FatalInputError("read input "+req.InputPath, err)
	}
	if _, err := normalize.Bind(spec.Columns, table.Header); err != nil {
		return nil, err
	}
	return table, nil
}

// Reconcile converges collection onto table. On BatchCommitFailed the
// partial report is returned together with the error.
func (e *Engine) Reconcile(ctx context.Context, collection constants.Collection, table *spreadsheet.Table, dryRun bool) (*Report, error) {
	spec, ok := e.cfg.Specs[collection]
	if !ok {
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown collection %q", collection), common.ErrInvalidInput)
	}

	runID := uuid.NewString()
	ctx = common.WithRunID(ctx, runID)
	ctx = common.WithCollection(ctx, string(collection))
	logger := common.LoggerFromContext(ctx, e.logger)
	started := e.cfg.Clock.Now()

	norm, err := normalize.New(spec.Columns, logger).Normalize(table)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:      runID,
		Collection: string(collection),
		DryRun:     dryRun,
		StartedAt:  started,
		Rejected:   norm.Rejected,
		Skipped:    norm.Skipped,
	}

	if !dryRun && e.cfg.RunLock {
		release, err := e.lock(ctx, string(collection), runID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	docs, refDocs, err := e.fetch(ctx, spec)
	if err != nil {
		return nil, common.NewAppError(common.CodeStore, "fetch collections", err)
	}

	// references
	var resolution reference.Resolution
	if spec.Reference != nil {
		resolver := reference.NewResolver(*spec.Reference, e.canon, logger)
		resolution = resolver.Resolve(referenceNames(norm.Records), refDocs)
	}

	failed := map[string]bool{}
	var refCreates []entity.MutationOp
	for _, op := range resolution.Creates {
		if dryRun {
			refCreates = append(refCreates, op)
			continue
		}
		if err := ctx.Err(); err != nil {
			rep.Ops = refCreates
			return rep, e.abort(rep, &apply.BatchCommitFailedError{Batch: 0, LastCommitted: -1, References: len(refCreates), Cause: err})
		}
		if err := e.applier.CommitOne(ctx, op); err != nil {
			failed[op.Key] = true
			name := fmt.Sprint(op.Fields[spec.Reference.NameField])
			rep.Unresolved = append(rep.Unresolved, Unresolved{Name: name, Err: common.ReferenceUnresolvableError(name, err)})
			logger.Warn("reconcile.reference.unresolvable", "name", name, "id", op.ID, "error", err)
			continue
		}
		refCreates = append(refCreates, op)
	}
	resolve := func(name string) (reference.Ref, bool) {
		if resolution.Index == nil || failed[e.canon.Key(name)] {
			return reference.Ref{}, false
		}
		return resolution.Index.Lookup(name)
	}

	keyFn := match.ExactKey
	if spec.CanonicalKey {
		keyFn = e.canon.Key
	}
	matched := match.NewMatcher(spec.KeyField, keyFn, logger).Match(norm.Records, docs, norm.RejectedKeys()...)
	rep.Merged = matched.Merged
	for _, g := range matched.Held {
		rep.Held += len(g.Documents)
	}

	planner := plan.NewPlanner(plan.Config{
		Collection: string(collection),
		KeyField:   spec.KeyField,
		Fields: func(rec entity.ExternalRecord, fc plan.FieldContext) map[string]any {
			return spec.Fields(rec, fc, e.canon)
		},
		Orphans:     spec.Orphans,
		StatusField: spec.StatusField,
	}, e.cfg.Clock, e.cfg.Location, logger)
	planned := planner.Plan(matched, resolve)
	rep.Today = planned.Today
	rep.SkippedRecords = planned.Skipped

	var ops []entity.MutationOp
	ops = append(ops, resolution.Duplicates...)
	ops = append(ops, resolution.Renames...)
	ops = append(ops, planned.Ops...)

	res, applyErr := e.applier.Apply(ctx, ops, dryRun)
	rep.Batches = len(res.Batches)
	rep.Committed = res.Committed
	for _, b := range res.Batches {
		rep.BatchSizes = append(rep.BatchSizes, len(b))
	}
	if applyErr != nil {
		var batchErr *apply.BatchCommitFailedError
		if errors.As(applyErr, &batchErr) {
			batchErr.References = len(refCreates)
		}
		rep.Ops = append(refCreates, res.Applied()...)
		return rep, e.abort(rep, applyErr)
	}
	rep.Ops = append(refCreates, ops...)
	rep.Counts = entity.CountOps(rep.Ops)

	status := entity.RunCompleted
	if dryRun {
		status = entity.RunDryRun
	}
	if err := e.writeLog(rep, status, nil); err != nil {
		return rep, err
	}

	logger.Info("reconcile.ok",
		"dry_run", dryRun,
		"ops", len(rep.Ops),
		"batches", rep.Batches,
		"rejected", len(rep.Rejected),
		"unresolved", len(rep.Unresolved),
	)
	return rep, nil
}

func (e *Engine) lock(ctx context.Context, collection, runID string) (func(), error) {
	locker, ok := e.store.(repository.Locker)
	if !ok {
		return func() {}, nil
	}
	if err := locker.Acquire(ctx, collection, runID, e.cfg.LockTTL); err != nil {
		return nil, common.NewAppError(common.CodeStore, "acquire run lock", err)
	}
	return func() {
		if err := locker.Release(context.WithoutCancel(ctx), collection, runID); err != nil {
			e.logger.Error("reconcile.lock.release_failed", "collection", collection, "run_id", runID, "error", err)
		}
	}, nil
}

// fetch loads the target and referenced collections concurrently.
func (e *Engine) fetch(ctx context.Context, spec CollectionSpec) (docs, refDocs []entity.StoreDocument, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = e.store.List(gctx, string(spec.Name))
		return err
	})
	if spec.Reference != nil && spec.Reference.Collection != string(spec.Name) {
		g.Go(func() error {
			var err error
			refDocs, err = e.store.List(gctx, spec.Reference.Collection)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return docs, refDocs, nil
}

// abort logs the committed part of a failed run and wraps cause.
func (e *Engine) abort(rep *Report, cause error) error {
	rep.Counts = entity.CountOps(rep.Ops)
	var batchErr *apply.BatchCommitFailedError
	if errors.As(cause, &batchErr) {
		rep.LastCommitted = batchErr.LastCommitted
	}
	err := common.NewAppError(common.CodeBatchCommitFailed, fmt.Sprintf("run %s aborted", rep.RunID), cause)
	if logErr := e.writeLog(rep, entity.RunAborted, cause); logErr != nil {
		e.logger.Error("reconcile.audit.failed", "run_id", rep.RunID, "error", logErr)
	}
	return err
}

func (e *Engine) writeLog(rep *Report, status entity.RunStatus, cause error) error {
	if e.audit == nil {
		return nil
	}
	unresolved := make([]string, 0, len(rep.Unresolved))
	for _, u := range rep.Unresolved {
		unresolved = append(unresolved, u.Name)
	}
	log := entity.RunLog{
		RunID:                rep.RunID,
		Timestamp:            rep.StartedAt.UTC(),
		Collection:           rep.Collection,
		Status:               status,
		DryRun:               rep.DryRun,
		Collections:          audit.Collect(rep.Ops),
		Counts:               entity.CountOps(rep.Ops),
		RejectedRows:         len(rep.Rejected),
		UnresolvedReferences: unresolved,
	}
	if cause != nil {
		log.Error = cause.Error()
	}
	path, err := e.audit.Write(log)
	if err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	rep.LogPath = path
	return nil
}

func referenceNames(records []entity.ExternalRecord) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range records {
		name := strings.TrimSpace(r.Reference)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
