// Package audit persists one immutable RunLog per reconciliation run.
package audit

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

//go:embed runlog.schema.json
var runLogSchema []byte

// Logger writes run logs into a directory, one file per run.
type Logger struct {
	dir    string
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewLogger(dir string, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("runlog.json", bytes.NewReader(runLogSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("runlog.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Logger{dir: dir, schema: schema, logger: logger}, nil
}

// FileName is the log file name of a run.
func FileName(runID string, ts time.Time) string {
	return fmt.Sprintf("runlog_%s_%s.json", ts.UTC().Format("20060102T150405Z"), runID)
}

// Write validates and persists log. An existing file is never overwritten.
func (l *Logger) Write(log entity.RunLog) (string, error) {
	b, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run log: %w", err)
	}
	if err := l.validate(b); err != nil {
		return "", err
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(l.dir, FileName(log.RunID, log.Timestamp))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create run log: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write run log: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	l.logger.Info("audit.runlog.ok", "path", path, "run_id", log.RunID, "status", log.Status)
	return path, nil
}

func (l *Logger) validate(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal run log: %w", err)
	}
	if err := l.schema.Validate(v); err != nil {
		return fmt.Errorf("run log does not match schema: %w", err)
	}
	return nil
}

// Read loads a run log written by Write.
func Read(path string) (entity.RunLog, error) {
	var log entity.RunLog
	b, err := os.ReadFile(path)
	if err != nil {
		return log, err
	}
	err = json.Unmarshal(b, &log)
	return log, err
}

// Collect buckets ops into per-collection identifier lists, collections sorted by name.
func Collect(ops []entity.MutationOp) []entity.CollectionLog {
	byName := map[string]*entity.CollectionLog{}
	for _, op := range ops {
		cl, ok := byName[op.Collection]
		if !ok {
			cl = &entity.CollectionLog{
				Collection:       op.Collection,
				Created:          []string{},
				Updated:          []string{},
				DeletedDuplicate: []string{},
				DeletedOrphan:    []string{},
				MarkedDeparted:   []string{},
			}
			byName[op.Collection] = cl
		}
		switch {
		case op.Kind == entity.OpCreate:
			cl.Created = append(cl.Created, op.ID)
		case op.Kind == entity.OpDelete && op.Reason == entity.ReasonDuplicate:
			cl.DeletedDuplicate = append(cl.DeletedDuplicate, op.ID)
		case op.Kind == entity.OpDelete:
			cl.DeletedOrphan = append(cl.DeletedOrphan, op.ID)
		case op.Reason == entity.ReasonDeparted:
			cl.MarkedDeparted = append(cl.MarkedDeparted, op.ID)
		default:
			cl.Updated = append(cl.Updated, op.ID)
		}
	}

	out := make([]entity.CollectionLog, 0, len(byName))
	for _, cl := range byName {
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out
}
