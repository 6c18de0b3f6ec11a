package entity

import (
	"time"
)

// RunStatus is the terminal state recorded in a RunLog.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunDryRun    RunStatus = "dry_run"
	RunAborted   RunStatus = "aborted"
)

// RunLog is the immutable audit record of one reconciliation run.
type RunLog struct {
	RunID                string            `json:"runId"`
	Timestamp            time.Time         `json:"timestamp"`
	Collection           string            `json:"collection"`
	Status               RunStatus         `json:"status"`
	DryRun               bool              `json:"dryRun"`
	Collections          []CollectionLog   `json:"collections"`
	Counts               map[string]Counts `json:"counts"`
	RejectedRows         int               `json:"rejectedRows"`
	UnresolvedReferences []string          `json:"unresolvedReferences"`
	Error                string            `json:"error,omitempty"`
}

// CollectionLog lists the identifiers touched in one collection.
type CollectionLog struct {
	Collection       string   `json:"collection"`
	Created          []string `json:"created"`
	Updated          []string `json:"updated"`
	DeletedDuplicate []string `json:"deletedDuplicate"`
	DeletedOrphan    []string `json:"deletedOrphan"`
	MarkedDeparted   []string `json:"markedDeparted"`
}

// Counts tallies ops per kind for one collection.
type Counts struct {
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	DeletedDuplicate int `json:"deletedDuplicate"`
	DeletedOrphan    int `json:"deletedOrphan"`
	MarkedDeparted   int `json:"markedDeparted"`
}

// Total is the number of ops counted.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.DeletedDuplicate + c.DeletedOrphan + c.MarkedDeparted
}

// Add counts a single op into its bucket.
func (c *Counts) Add(op MutationOp) {
	switch {
	case op.Kind == OpCreate:
		c.Created++
	case op.Kind == OpDelete && op.Reason == ReasonDuplicate:
		c.DeletedDuplicate++
	case op.Kind == OpDelete:
		c.DeletedOrphan++
	case op.Reason == ReasonDeparted:
		c.MarkedDeparted++
	default:
		c.Updated++
	}
}

// CountOps tallies ops per collection.
func CountOps(ops []MutationOp) map[string]Counts {
	out := make(map[string]Counts)
	for _, op := range ops {
		c := out[op.Collection]
		c.Add(op)
		out[op.Collection] = c
	}
	return out
}
