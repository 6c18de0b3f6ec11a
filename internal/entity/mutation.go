package entity

// OpKind is the kind of a planned mutation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// OpReason records why the planner emitted an op; it drives the audit buckets.
type OpReason string

const (
	ReasonNew           OpReason = "new"            // no matching document
	ReasonChanged       OpReason = "changed"        // fields differ from the dataset
	ReasonDuplicate     OpReason = "duplicate"      // extra document sharing a natural key
	ReasonOrphan        OpReason = "orphan"         // natural key absent from the dataset
	ReasonDeparted      OpReason = "departed"       // orphan flagged instead of removed
	ReasonReference     OpReason = "reference"      // referenced entity created on demand
	ReasonCanonicalName OpReason = "canonical_name" // referenced entity renamed to its canonical spelling
)

// MutationOp is one Create, Update or Delete against a collection.
// Fields carries the full document for creates and only the delta for updates.
type MutationOp struct {
	Kind       OpKind         `json:"kind"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Key        string         `json:"key,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Reason     OpReason       `json:"reason"`
}

func Create(collection, id, key string, fields map[string]any, reason OpReason) MutationOp {
	return MutationOp{Kind: OpCreate, Collection: collection, ID: id, Key: key, Fields: fields, Reason: reason}
}

func Update(collection, id, key string, delta map[string]any, reason OpReason) MutationOp {
	return MutationOp{Kind: OpUpdate, Collection: collection, ID: id, Key: key, Fields: delta, Reason: reason}
}

func Delete(collection, id, key string, reason OpReason) MutationOp {
	return MutationOp{Kind: OpDelete, Collection: collection, ID: id, Key: key, Reason: reason}
}
