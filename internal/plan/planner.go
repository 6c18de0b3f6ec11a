// Package plan computes the create/update/delete ops that converge a
// collection onto the authoritative dataset.
package plan

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/match"
	"github.com/joseph-ayodele/housing-reconciler/internal/reference"
)

// OrphanPolicy decides what happens to documents whose key left the dataset.
type OrphanPolicy string

const (
	OrphanDelete       OrphanPolicy = "delete"
	OrphanMarkDeparted OrphanPolicy = "mark_departed"
)

// FieldContext carries the per-record inputs of derived fields.
type FieldContext struct {
	// Ref is nil when the record names no reference.
	Ref   *reference.Ref
	Today time.Time
}

// FieldFunc computes the target document fields of a record.
type FieldFunc func(rec entity.ExternalRecord, fc FieldContext) map[string]any

// ResolveFunc resolves a record's reference name. ok is false when the
// reference could not be created; the record is then skipped.
type ResolveFunc func(name string) (ref reference.Ref, ok bool)

// Config is the per-collection planner configuration.
type Config struct {
	Collection  string
	KeyField    string
	Fields      FieldFunc
	Orphans     OrphanPolicy
	StatusField string
}

// Skip is a record left untouched because its reference is unresolvable.
type Skip struct {
	Key       string
	Row       int
	Reference string
}

// Plan is the ordered op list of one collection.
type Plan struct {
	Ops     []entity.MutationOp
	Skipped []Skip
	Today   time.Time
}

type Planner struct {
	cfg    Config
	clock  clockwork.Clock
	loc    *time.Location
	logger *slog.Logger
}

func NewPlanner(cfg Config, clock clockwork.Clock, loc *time.Location, logger *slog.Logger) *Planner {
	if cfg.Orphans == "" {
		cfg.Orphans = OrphanDelete
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, clock: clock, loc: loc, logger: logger}
}

// Plan emits, in match order, one create or field-level update per key plus
// deletes for duplicates, followed by the orphan pass.
func (p *Planner) Plan(res match.Result, resolve ResolveFunc) Plan {
	out := Plan{Today: CivilToday(p.clock.Now(), p.loc)}
	coll := p.cfg.Collection
	taken := existingIDs(res)

	for _, m := range res.Matches {
		rec := m.Record
		fc := FieldContext{Today: out.Today}
		if rec.Reference != "" && resolve != nil {
			ref, ok := resolve(rec.Reference)
			if !ok {
				out.Skipped = append(out.Skipped, Skip{Key: m.Key, Row: rec.Row, Reference: rec.Reference})
				p.logger.Warn("plan.record.skipped", "key", m.Key, "row", rec.Row, "reference", rec.Reference)
				continue
			}
			fc.Ref = &ref
		}

		desired := p.cfg.Fields(rec, fc)
		if _, ok := desired[p.cfg.KeyField]; !ok {
			desired[p.cfg.KeyField] = rec.Key
		}

		if len(m.Existing) == 0 {
			out.Ops = append(out.Ops, entity.Create(coll, entity.AvailableDocumentID(coll, m.Key, taken), m.Key, desired, entity.ReasonNew))
			continue
		}

		primary := m.Existing[0]
		if delta := Diff(desired, primary.Fields); len(delta) > 0 {
			out.Ops = append(out.Ops, entity.Update(coll, primary.ID, m.Key, delta, entity.ReasonChanged))
		}
		for _, dup := range m.Duplicates() {
			out.Ops = append(out.Ops, entity.Delete(coll, dup.ID, m.Key, entity.ReasonDuplicate))
		}
	}

	for _, g := range res.Orphans {
		out.Ops = append(out.Ops, p.orphanOps(g)...)
	}

	counts := entity.CountOps(out.Ops)[coll]
	p.logger.Info("plan.ok",
		"collection", coll,
		"today", out.Today.Format(entity.DateLayout),
		"creates", counts.Created,
		"updates", counts.Updated,
		"duplicates", counts.DeletedDuplicate,
		"orphans", counts.DeletedOrphan,
		"departed", counts.MarkedDeparted,
		"skipped", len(out.Skipped),
	)
	return out
}

// existingIDs collects every fetched document id; a create must not reuse
// one, even when that document is about to be deleted as an orphan.
func existingIDs(res match.Result) map[string]bool {
	ids := map[string]bool{}
	for _, m := range res.Matches {
		for _, d := range m.Existing {
			ids[d.ID] = true
		}
	}
	for _, g := range res.Orphans {
		for _, d := range g.Documents {
			ids[d.ID] = true
		}
	}
	for _, g := range res.Held {
		for _, d := range g.Documents {
			ids[d.ID] = true
		}
	}
	return ids
}

func (p *Planner) orphanOps(g match.Group) []entity.MutationOp {
	coll := p.cfg.Collection
	var ops []entity.MutationOp
	if p.cfg.Orphans != OrphanMarkDeparted || p.cfg.StatusField == "" {
		for _, d := range g.Documents {
			ops = append(ops, entity.Delete(coll, d.ID, g.Key, entity.ReasonOrphan))
		}
		return ops
	}

	primary := g.Documents[0]
	departed := string(constants.StatusDeparted)
	if primary.String(p.cfg.StatusField) != departed {
		ops = append(ops, entity.Update(coll, primary.ID, g.Key, map[string]any{p.cfg.StatusField: departed}, entity.ReasonDeparted))
	}
	for _, d := range g.Documents[1:] {
		ops = append(ops, entity.Delete(coll, d.ID, g.Key, entity.ReasonDuplicate))
	}
	return ops
}
