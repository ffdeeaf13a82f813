package migration

import (
	"context"
	"fmt"
	"iter"

	"github.com/tphakala/invsync/internal/docstore"
)

// Document fields set on every target document.
const (
	FieldPath       = "path"
	FieldParentPath = "parent_path"
)

// Working is the insertion-ordered output of one pass's transform fold.
type Working struct {
	order []string
	docs  map[string]docstore.Document
}

func newWorking() *Working {
	return &Working{docs: make(map[string]docstore.Document)}
}

// Put stores doc under id. A replaced id keeps its original position.
func (w *Working) Put(id string, doc docstore.Document) {
	if _, exists := w.docs[id]; !exists {
		w.order = append(w.order, id)
	}
	w.docs[id] = doc
}

// Get returns the document for id. The result is not a copy.
func (w *Working) Get(id string) (docstore.Document, bool) {
	doc, ok := w.docs[id]
	return doc, ok
}

// Bucket returns the aggregation document for id, creating it with init on
// first use. created reports whether init ran.
func (w *Working) Bucket(id string, init func() docstore.Document) (doc docstore.Document, created bool) {
	if doc, ok := w.docs[id]; ok {
		return doc, false
	}
	doc = init()
	w.Put(id, doc)
	return doc, true
}

// Len returns the number of documents.
func (w *Working) Len() int {
	return len(w.docs)
}

// All yields documents in insertion order.
func (w *Working) All() iter.Seq2[string, docstore.Document] {
	return func(yield func(string, docstore.Document) bool) {
		for _, id := range w.order {
			if !yield(id, w.docs[id]) {
				return
			}
		}
	}
}

// TransformContext is handed to transform functions. It is not safe for
// concurrent use.
type TransformContext struct {
	ctx        context.Context
	Descriptor KindDescriptor
	// RootPath is the kind's root collection path.
	RootPath string
	Identity *IdentityResolver
	Out      *Working
	engine   *Engine
}

// Context returns the pass context.
func (tc *TransformContext) Context() context.Context {
	return tc.ctx
}

// DocPath returns the default document path for id under the kind root.
func (tc *TransformContext) DocPath(id string) string {
	return tc.RootPath + docstore.PathSeparator + id
}

// Lookup returns the migrated document id of kind, transforming it on
// demand when the kind has not been synced yet.
func (tc *TransformContext) Lookup(kind, id string) (docstore.Document, bool, error) {
	if tc.engine == nil {
		return nil, false, nil
	}
	return tc.engine.Lookup(tc.ctx, kind, id)
}

// Ref returns a reference to id of kind, or the placeholder when it does
// not resolve.
func (tc *TransformContext) Ref(kind, id string) (Reference, error) {
	doc, found, err := tc.Lookup(kind, id)
	if err != nil {
		return Reference{}, fmt.Errorf("resolve %s %s: %w", kind, id, err)
	}
	if !found {
		return Placeholder(kind, id), nil
	}
	return ReferenceTo(doc), nil
}

// Mint returns the sequence number for key of this kind. The counter
// records the assignment, so re-runs reuse the number.
func (tc *TransformContext) Mint(key string) (string, error) {
	if tc.engine == nil {
		return "", fmt.Errorf("no sequence counter available for %s", tc.Descriptor.Kind)
	}
	return tc.engine.mint(tc.ctx, tc.Descriptor.Kind, key)
}

// address sets path and parent_path on every document. A preset path is
// kept; otherwise documents live directly under the kind root.
func address(w *Working, root string) error {
	for id, doc := range w.All() {
		p, _ := doc[FieldPath].(string)
		if p == "" {
			p = root + docstore.PathSeparator + id
			doc[FieldPath] = p
		}
		if !docstore.IsDocumentPath(p) {
			return fmt.Errorf("%w: document %s has path %q", docstore.ErrInvalidPath, id, p)
		}
		parent, _ := docstore.Split(p)
		doc[FieldParentPath] = parent
	}
	return nil
}
