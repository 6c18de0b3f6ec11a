package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoreDocument is a persisted entity (employee, property, invoice).
// CreatedAt and UpdatedAt are bookkeeping owned by the store and never diffed.
type StoreDocument struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// String returns a text field, or "" when the field is absent or not text.
func (d StoreDocument) String(field string) string {
	switch v := d.Fields[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

var documentNamespace = uuid.MustParse("5f0c9a34-7a61-4d2e-9b1e-3c2f8d6a41b7")

// DocumentID derives a stable identifier for a document created by the
// reconciler, so the id is known before commit and identical across dry runs.
func DocumentID(collection, key string) string {
	return uuid.NewSHA1(documentNamespace, []byte(collection+"/"+key)).String()
}

// AvailableDocumentID returns DocumentID(collection, key) unless taken holds
// it, in which case ids over "key#1", "key#2", ... are tried in turn. The
// result is recorded in taken.
func AvailableDocumentID(collection, key string, taken map[string]bool) string {
	id := DocumentID(collection, key)
	for n := 1; taken[id]; n++ {
		id = DocumentID(collection, fmt.Sprintf("%s#%d", key, n))
	}
	taken[id] = true
	return id
}
