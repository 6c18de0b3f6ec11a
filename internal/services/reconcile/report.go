package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/normalize"
	"github.com/joseph-ayodele/housing-reconciler/internal/plan"
)

// Unresolved is a reference name whose document could not be created.
type Unresolved struct {
	Name string
	Err  error
}

// Report is the outcome of one run. Ops holds the planned ops in a dry
// run and the committed ops otherwise.
type Report struct {
	RunID      string
	Collection string
	DryRun     bool
	StartedAt  time.Time
	Today      time.Time

	Ops    []entity.MutationOp
	Counts map[string]entity.Counts

	Batches    int
	BatchSizes []int
	Committed  int
	// LastCommitted is the index of the last committed batch of an aborted run.
	LastCommitted int

	Rejected       []normalize.RowError
	// Held counts documents kept because their key is only on rejected rows.
	Held           int
	Skipped        int
	Merged         int
	Unresolved     []Unresolved
	SkippedRecords []plan.Skip

	LogPath string
}

// Summary renders the operator summary: counts per op kind and collection,
// rejected rows and unresolved references. Printed for every run.
func (r *Report) Summary() string {
	var b strings.Builder
	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(&b, "run %s (%s) collection=%s\n", r.RunID, mode, r.Collection)

	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		b.WriteString("  no changes\n")
	}
	for _, name := range names {
		c := r.Counts[name]
		fmt.Fprintf(&b, "  %-12s created=%d updated=%d deleted_duplicate=%d deleted_orphan=%d marked_departed=%d\n",
			name, c.Created, c.Updated, c.DeletedDuplicate, c.DeletedOrphan, c.MarkedDeparted)
	}
	fmt.Fprintf(&b, "  batches=%d committed=%d\n", r.Batches, r.Committed)
	fmt.Fprintf(&b, "  rejected rows=%d skipped rows=%d merged rows=%d held documents=%d\n", len(r.Rejected), r.Skipped, r.Merged, r.Held)
	for _, re := range r.Rejected {
		fmt.Fprintf(&b, "    row %d key=%q %s=%q: %s\n", re.Row, re.Key, re.Column, re.Value, re.Reason)
	}
	fmt.Fprintf(&b, "  unresolved references=%d skipped records=%d\n", len(r.Unresolved), len(r.SkippedRecords))
	for _, u := range r.Unresolved {
		fmt.Fprintf(&b, "    %s: %v\n", u.Name, u.Err)
	}
	if r.LogPath != "" {
		fmt.Fprintf(&b, "  run log: %s\n", r.LogPath)
	}
	return b.String()
}
