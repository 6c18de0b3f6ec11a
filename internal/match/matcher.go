// Package match groups external records and store documents by natural key.
package match

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

// KeyFunc normalizes a natural key for comparison.
type KeyFunc func(string) string

// ExactKey compares trimmed keys byte for byte; natural keys are opaque.
func ExactKey(s string) string {
	return strings.TrimSpace(s)
}

// Match pairs one external record with every document sharing its key.
// Existing is in stable store order, so Existing[0] is the primary.
type Match struct {
	Key      string
	Record   entity.ExternalRecord
	Existing []entity.StoreDocument
	// Rows lists every spreadsheet row merged into Record.
	Rows []int
}

// Duplicates returns the documents after the primary.
func (m Match) Duplicates() []entity.StoreDocument {
	if len(m.Existing) < 2 {
		return nil
	}
	return m.Existing[1:]
}

// Group is a set of documents sharing a key absent from the dataset.
type Group struct {
	Key       string
	Documents []entity.StoreDocument
}

// Result is the matcher output.
type Result struct {
	Matches []Match
	Orphans []Group
	// Held groups documents whose key is only on rows that failed
	// normalization. They are neither updated nor removed.
	Held []Group
	// Merged counts records folded into an earlier record with the same key.
	Merged int
}

// Matcher groups records and documents of one collection.
type Matcher struct {
	keyField string
	keyFn    KeyFunc
	logger   *slog.Logger
}

func NewMatcher(keyField string, keyFn KeyFunc, logger *slog.Logger) *Matcher {
	if keyFn == nil {
		keyFn = ExactKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{keyField: keyField, keyFn: keyFn, logger: logger}
}

// Match groups records by key (last-seen values win, first-seen order kept)
// and attaches the existing documents of each key. held lists keys present
// in the dataset on rejected rows; their documents are never orphans.
func (m *Matcher) Match(records []entity.ExternalRecord, docs []entity.StoreDocument, held ...string) Result {
	byKey := make(map[string][]entity.StoreDocument)
	var docOrder []string
	for _, d := range docs {
		k := m.keyFn(d.String(m.keyField))
		if _, seen := byKey[k]; !seen {
			docOrder = append(docOrder, k)
		}
		byKey[k] = append(byKey[k], d)
	}

	var res Result
	pos := make(map[string]int)
	for _, rec := range records {
		k := m.keyFn(rec.Key)
		if k == "" {
			continue
		}
		if i, ok := pos[k]; ok {
			res.Matches[i].Record = rec
			res.Matches[i].Rows = append(res.Matches[i].Rows, rec.Row)
			res.Merged++
			continue
		}
		pos[k] = len(res.Matches)
		res.Matches = append(res.Matches, Match{
			Key:      k,
			Record:   rec,
			Existing: byKey[k],
			Rows:     []int{rec.Row},
		})
	}

	heldKeys := make(map[string]bool, len(held))
	for _, h := range held {
		heldKeys[m.keyFn(h)] = true
	}
	for _, k := range docOrder {
		if _, ok := pos[k]; ok {
			continue
		}
		if heldKeys[k] {
			res.Held = append(res.Held, Group{Key: k, Documents: byKey[k]})
			continue
		}
		res.Orphans = append(res.Orphans, Group{Key: k, Documents: byKey[k]})
	}

	dups := 0
	for _, mt := range res.Matches {
		dups += len(mt.Duplicates())
	}
	m.logger.Info("match.ok",
		"keys", len(res.Matches),
		"merged", res.Merged,
		"duplicates", dups,
		"orphan_keys", len(res.Orphans),
		"held_keys", len(res.Held),
	)
	return res
}
