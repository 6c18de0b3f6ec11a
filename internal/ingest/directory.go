// Package ingest discovers spreadsheet exports in an inbox directory and
// assigns each to the collection it reconciles.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/housing-reconciler/constants"
)

// Input is one discovered spreadsheet.
type Input struct {
	Path       string
	Collection constants.Collection
}

type FileResult struct {
	Path string
	Err  string
}

type DirStats struct {
	Scanned uint32
	Matched uint32
	Ignored uint32
	Failed  uint32
}

// reconcileOrder puts referenced collections before the ones referencing them.
var reconcileOrder = map[constants.Collection]int{
	constants.Properties: 0,
	constants.Employees:  1,
	constants.Invoices:   2,
}

// Discover walks root and returns one input per collection, ordered so that
// properties are reconciled before employees and invoices. The collection is
// the file name up to the first '_', '-' or '.', e.g. "employees_2024-03.xlsx".
// When several files map to one collection the lexically last file name
// wins, whatever directory it sits in, so dated exports pick the newest. The
// others are reported as superseded.
func Discover(root string, skipHidden bool) ([]Input, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("inbox directory is required")
	}

	var results []FileResult
	var stats DirStats
	latest := map[constants.Collection]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			stats.Ignored++
			return nil
		}
		coll, ok := collectionOf(path)
		if !ok {
			results = append(results, FileResult{Path: path, Err: "no collection in file name"})
			stats.Ignored++
			return nil
		}
		stats.Matched++
		prev, seen := latest[coll]
		switch {
		case !seen:
			latest[coll] = path
		case newer(path, prev):
			results = append(results, FileResult{Path: prev, Err: "superseded by " + path})
			latest[coll] = path
		default:
			results = append(results, FileResult{Path: path, Err: "superseded by " + prev})
		}
		return nil
	})
	if err != nil {
		return nil, results, stats, fmt.Errorf("walk: %w", err)
	}

	inputs := make([]Input, 0, len(latest))
	for coll, path := range latest {
		inputs = append(inputs, Input{Path: path, Collection: coll})
	}
	sort.Slice(inputs, func(i, j int) bool {
		return reconcileOrder[inputs[i].Collection] < reconcileOrder[inputs[j].Collection]
	})
	return inputs, results, stats, nil
}

// newer orders by file name, then by full path for equal names.
func newer(a, b string) bool {
	if ba, bb := filepath.Base(a), filepath.Base(b); ba != bb {
		return ba > bb
	}
	return a > b
}

func collectionOf(path string) (constants.Collection, bool) {
	base := filepath.Base(path)
	stem := base
	if i := strings.IndexAny(base, "_-."); i > 0 {
		stem = base[:i]
	}
	return constants.ParseCollection(stem)
}
