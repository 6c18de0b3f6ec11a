package plan

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/match"
	"github.com/joseph-ayodele/housing-reconciler/internal/reference"
)

var taipei = time.FixedZone("CST", 8*3600)

func civilDate(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func employeeFields(rec entity.ExternalRecord, fc FieldContext) map[string]any {
	out := map[string]any{
		"employeeId":  rec.Key,
		"name":        rec.DisplayName,
		"arrivalDate": entity.FormatDate(rec.ArrivalDate),
		"status":      string(DerivePresence(fc.Ref != nil, rec.ArrivalDate, fc.Today)),
		"propertyId":  nil,
	}
	if fc.Ref != nil {
		out["propertyId"] = fc.Ref.ID
	}
	return out
}

func newTestPlanner(policy OrphanPolicy, now time.Time) *Planner {
	return NewPlanner(Config{
		Collection:  "employees",
		KeyField:    "employeeId",
		Fields:      employeeFields,
		Orphans:     policy,
		StatusField: "status",
	}, clockwork.NewFakeClockAt(now), taipei, nil)
}

func resolveAll(name string) (reference.Ref, bool) {
	return reference.Ref{ID: "prop-" + name, Name: name}, true
}

func employee(id, key string, fields map[string]any) entity.StoreDocument {
	f := map[string]any{"employeeId": key}
	for k, v := range fields {
		f[k] = v
	}
	return entity.StoreDocument{ID: id, Fields: f}
}

func matchAll(records []entity.ExternalRecord, docs []entity.StoreDocument) match.Result {
	return match.NewMatcher("employeeId", nil, nil).Match(records, docs)
}

var now = time.Date(2024, 3, 5, 9, 0, 0, 0, taipei)

func TestPlanCreate(t *testing.T) {
	records := []entity.ExternalRecord{
		{Row: 2, Key: "U1", DisplayName: "A"},
		{Row: 3, Key: "U1", DisplayName: "B"},
		{Row: 4, Key: "U1", DisplayName: "C", Reference: "東海", ArrivalDate: civilDate(2024, 3, 1)},
	}

	p := newTestPlanner(OrphanDelete, now).Plan(matchAll(records, nil), resolveAll)

	require.Len(t, p.Ops, 1)
	op := p.Ops[0]
	assert.Equal(t, entity.OpCreate, op.Kind)
	assert.Equal(t, entity.DocumentID("employees", "U1"), op.ID)
	assert.Equal(t, "C", op.Fields["name"])
	assert.Equal(t, "present", op.Fields["status"])
	assert.Equal(t, "prop-東海", op.Fields["propertyId"])
	assert.Equal(t, "2024-03-01", op.Fields["arrivalDate"])
}

func TestPlanUpdatePrimaryDeleteDuplicates(t *testing.T) {
	records := []entity.ExternalRecord{{Row: 2, Key: "U2", DisplayName: "Bob"}}
	docs := []entity.StoreDocument{
		employee("b", "U2", map[string]any{"name": "Robert", "status": "unassigned"}),
		employee("c", "U2", map[string]any{"name": "Bob", "status": "unassigned"}),
	}

	p := newTestPlanner(OrphanDelete, now).Plan(matchAll(records, docs), resolveAll)

	require.Len(t, p.Ops, 2)
	assert.Equal(t, entity.OpUpdate, p.Ops[0].Kind)
	assert.Equal(t, "b", p.Ops[0].ID)
	assert.Equal(t, map[string]any{"name": "Bob"}, p.Ops[0].Fields, "only differing fields")
	assert.Equal(t, entity.OpDelete, p.Ops[1].Kind)
	assert.Equal(t, "c", p.Ops[1].ID)
	assert.Equal(t, entity.ReasonDuplicate, p.Ops[1].Reason)
}

func TestPlanOrphanDelete(t *testing.T) {
	records := []entity.ExternalRecord{{Row: 2, Key: "U1", DisplayName: "A"}}
	docs := []entity.StoreDocument{
		employee("a", "U1", map[string]any{"name": "A", "status": "unassigned"}),
		employee("z", "U3", map[string]any{"name": "Gone"}),
	}

	p := newTestPlanner(OrphanDelete, now).Plan(matchAll(records, docs), resolveAll)

	require.Len(t, p.Ops, 1)
	assert.Equal(t, entity.OpDelete, p.Ops[0].Kind)
	assert.Equal(t, "z", p.Ops[0].ID)
	assert.Equal(t, entity.ReasonOrphan, p.Ops[0].Reason)
}

func TestPlanOrphanMarkDeparted(t *testing.T) {
	docs := []entity.StoreDocument{
		employee("z1", "U3", map[string]any{"status": "present"}),
		employee("z2", "U3", nil),
		employee("y", "U4", map[string]any{"status": "departed"}),
	}

	p := newTestPlanner(OrphanMarkDeparted, now).Plan(matchAll(nil, docs), resolveAll)

	require.Len(t, p.Ops, 2)
	assert.Equal(t, entity.OpUpdate, p.Ops[0].Kind)
	assert.Equal(t, map[string]any{"status": string(constants.StatusDeparted)}, p.Ops[0].Fields)
	assert.Equal(t, entity.ReasonDeparted, p.Ops[0].Reason)
	assert.Equal(t, entity.OpDelete, p.Ops[1].Kind)
	assert.Equal(t, "z2", p.Ops[1].ID)
}

func TestPlanIdempotent(t *testing.T) {
	records := []entity.ExternalRecord{
		{Row: 2, Key: "U1", DisplayName: "A", Reference: "東海", ArrivalDate: civilDate(2024, 3, 9)},
	}
	planner := newTestPlanner(OrphanDelete, now)
	first := planner.Plan(matchAll(records, nil), resolveAll)
	require.Len(t, first.Ops, 1)

	// the store round trip turns every value into its JSON form
	stored := employee(first.Ops[0].ID, "U1", first.Ops[0].Fields)
	second := planner.Plan(matchAll(records, []entity.StoreDocument{stored}), resolveAll)
	assert.Empty(t, second.Ops)
}

func TestPlanSkipsUnresolvableReference(t *testing.T) {
	records := []entity.ExternalRecord{{Row: 2, Key: "U1", Reference: "Nowhere"}}
	docs := []entity.StoreDocument{employee("a", "U1", nil)}
	unresolvable := func(string) (reference.Ref, bool) { return reference.Ref{}, false }

	p := newTestPlanner(OrphanDelete, now).Plan(matchAll(records, docs), unresolvable)

	assert.Empty(t, p.Ops, "skipped record is neither updated nor treated as orphan")
	require.Len(t, p.Skipped, 1)
	assert.Equal(t, Skip{Key: "U1", Row: 2, Reference: "Nowhere"}, p.Skipped[0])
}

func TestPlanArrivalTodayIsPresent(t *testing.T) {
	// 2024-03-04T16:00Z is midnight of 2024-03-05 in the business zone
	midnight := time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)
	records := []entity.ExternalRecord{{Row: 2, Key: "U5", Reference: "東海", ArrivalDate: civilDate(2024, 3, 5)}}

	p := newTestPlanner(OrphanDelete, midnight).Plan(matchAll(records, nil), resolveAll)

	require.Len(t, p.Ops, 1)
	assert.Equal(t, "present", p.Ops[0].Fields["status"])
	assert.Equal(t, "2024-03-05", p.Today.Format(entity.DateLayout))
}

func TestDerivePresence(t *testing.T) {
	today := *civilDate(2024, 3, 5)
	tests := []struct {
		name    string
		hasRef  bool
		arrival *time.Time
		want    constants.PresenceStatus
	}{
		{"before today", true, civilDate(2024, 3, 4), constants.StatusPresent},
		{"today", true, civilDate(2024, 3, 5), constants.StatusPresent},
		{"after today", true, civilDate(2024, 3, 6), constants.StatusFuture},
		{"no arrival", true, nil, constants.StatusFuture},
		{"no reference", false, civilDate(2024, 3, 1), constants.StatusUnassigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePresence(tt.hasRef, tt.arrival, today))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(3500, 3500.0))
	assert.True(t, Equal(int64(7), float64(7)))
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(*civilDate(2024, 1, 2), "2024-01-02"))
	assert.False(t, Equal(nil, ""))
	assert.False(t, Equal("a", "b"))
}

func TestPlanHeldDocumentsAreLeftAlone(t *testing.T) {
	docs := []entity.StoreDocument{employee("e4", "U4", map[string]any{"name": "Cat"})}
	res := match.NewMatcher("employeeId", nil, nil).Match(nil, docs, "U4")

	plan := newTestPlanner(OrphanDelete, now).Plan(res, resolveAll)
	assert.Empty(t, plan.Ops)
}

func TestPlanCreateAvoidsTakenID(t *testing.T) {
	// the derived id of U1 already belongs to a document whose key was edited to U9
	taken := entity.DocumentID("employees", "U1")
	docs := []entity.StoreDocument{employee(taken, "U9", map[string]any{"name": "A"})}
	records := []entity.ExternalRecord{{Row: 2, Key: "U1", DisplayName: "A"}}

	plan := newTestPlanner(OrphanDelete, now).Plan(matchAll(records, docs), resolveAll)

	require.Len(t, plan.Ops, 2)
	create := plan.Ops[0]
	assert.Equal(t, entity.OpCreate, create.Kind)
	assert.NotEqual(t, taken, create.ID)
	assert.Equal(t, entity.DocumentID("employees", "U1#1"), create.ID)
	assert.Equal(t, entity.Delete("employees", taken, "U9", entity.ReasonOrphan), plan.Ops[1])

	again := newTestPlanner(OrphanDelete, now).Plan(matchAll(records, docs), resolveAll)
	assert.Equal(t, plan.Ops, again.Ops, "fallback ids are deterministic")
}
