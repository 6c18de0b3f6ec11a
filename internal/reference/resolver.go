// Package reference resolves human-readable foreign keys, such as a
// property's display name, to stable document identifiers.
package reference

import (
	"log/slog"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

// Target describes the referenced collection.
type Target struct {
	Collection string
	NameField  string
}

// Ref is a resolved reference.
type Ref struct {
	ID   string
	Name string
}

// Index maps canonical keys to the authoritative document of each name.
type Index struct {
	canon *Canonicalizer
	byKey map[string]Ref
}

// Lookup resolves a raw reference name.
func (ix *Index) Lookup(name string) (Ref, bool) {
	if ix == nil {
		return Ref{}, false
	}
	ref, ok := ix.byKey[ix.canon.Key(name)]
	return ref, ok
}

// Len is the number of distinct canonical names indexed.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.byKey)
}

// Resolution is the output of one resolve pass.
type Resolution struct {
	Index *Index
	// Creates holds one op per name with no existing document. The id is
	// assigned up front and already present in Index.
	Creates []entity.MutationOp
	// Duplicates deletes every document but the first sharing a canonical name.
	Duplicates []entity.MutationOp
	// Renames moves authoritative documents stored under a legacy spelling
	// to the canonical one.
	Renames []entity.MutationOp
}

// Ops returns all ops of the resolution in apply order.
func (r Resolution) Ops() []entity.MutationOp {
	out := make([]entity.MutationOp, 0, len(r.Creates)+len(r.Duplicates)+len(r.Renames))
	out = append(out, r.Creates...)
	out = append(out, r.Duplicates...)
	return append(out, r.Renames...)
}

// Resolver builds reference indexes for a target collection.
type Resolver struct {
	target Target
	canon  *Canonicalizer
	logger *slog.Logger
}

func NewResolver(target Target, canon *Canonicalizer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{target: target, canon: canon, logger: logger}
}

// Resolve indexes existing (in stable store order) and plans a create for
// every name in names that has no match.
func (r *Resolver) Resolve(names []string, existing []entity.StoreDocument) Resolution {
	ix := &Index{canon: r.canon, byKey: map[string]Ref{}}
	res := Resolution{Index: ix}

	taken := make(map[string]bool, len(existing))
	for _, doc := range existing {
		taken[doc.ID] = true
	}
	for _, doc := range existing {
		raw := doc.String(r.target.NameField)
		key := r.canon.Key(raw)
		if key == "" {
			continue
		}
		if first, ok := ix.byKey[key]; ok {
			res.Duplicates = append(res.Duplicates, entity.Delete(r.target.Collection, doc.ID, key, entity.ReasonDuplicate))
			r.logger.Info("reference.duplicate", "collection", r.target.Collection, "name", raw, "id", doc.ID, "kept", first.ID)
			continue
		}
		canonical := r.canon.Canonical(raw)
		ix.byKey[key] = Ref{ID: doc.ID, Name: canonical}
		if raw != canonical {
			res.Renames = append(res.Renames, entity.Update(r.target.Collection, doc.ID, key,
				map[string]any{r.target.NameField: canonical}, entity.ReasonCanonicalName))
		}
	}

	for _, name := range names {
		key := r.canon.Key(name)
		if key == "" {
			continue
		}
		if _, ok := ix.byKey[key]; ok {
			continue
		}
		canonical := r.canon.Canonical(name)
		id := entity.AvailableDocumentID(r.target.Collection, key, taken)
		ix.byKey[key] = Ref{ID: id, Name: canonical}
		res.Creates = append(res.Creates, entity.Create(r.target.Collection, id, key,
			map[string]any{r.target.NameField: canonical}, entity.ReasonReference))
	}

	r.logger.Info("reference.resolve.ok",
		"collection", r.target.Collection,
		"names", len(names),
		"indexed", len(ix.byKey),
		"creates", len(res.Creates),
		"duplicates", len(res.Duplicates),
		"renames", len(res.Renames),
	)
	return res
}
