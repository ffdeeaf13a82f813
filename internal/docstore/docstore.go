// Package docstore provides a hierarchical document store addressed by
// slash-separated paths. Collections hold documents, documents hold
// sub-collections, and writes are grouped into atomic batches.
package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/tphakala/invsync/internal/errors"
)

// Store errors.
var (
	ErrAlreadyExists   = errors.NewStd("document already exists")
	ErrBatchCommitted  = errors.NewStd("write batch already committed")
	ErrInvalidDocument = errors.NewStd("invalid document")
)

// Document is an open, JSON-shaped field map.
type Document map[string]any

// Clone returns a deep copy of d. Nested maps and slices are copied; other
// values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// String returns the string value of field, or "".
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Op is a batched write operation type.
type Op int

const (
	OpSet Op = iota
	OpCreate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Write is one operation inside a batch.
type Write struct {
	Op   Op
	Path string
	Data Document
}

// Backend is the storage engine behind a Client.
type Backend interface {
	// ListDocumentIDs returns the ids of every document directly inside
	// collectionPath, including documents that only exist as parents of
	// deeper data.
	ListDocumentIDs(ctx context.Context, collectionPath string) ([]string, error)
	// ListCollectionIDs returns the ids of non-empty sub-collections of documentPath.
	ListCollectionIDs(ctx context.Context, documentPath string) ([]string, error)
	// Get returns the stored document, or false when it does not exist.
	Get(ctx context.Context, documentPath string) (Document, bool, error)
	// Commit applies writes atomically. Create fails with ErrAlreadyExists
	// when the document exists; deleting a missing document is not an error.
	Commit(ctx context.Context, writes []Write) error
}

// Client addresses collections and documents of a Backend.
type Client struct {
	backend Backend
}

// NewClient wraps backend.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

// Backend returns the underlying backend.
func (c *Client) Backend() Backend {
	return c.backend
}

// Collection returns a reference to the collection at path.
func (c *Client) Collection(path string) CollectionRef {
	return CollectionRef{client: c, path: path}
}

// Document returns a reference to the document at path.
func (c *Client) Document(path string) DocumentRef {
	return DocumentRef{client: c, path: path}
}

// NewBatch returns an empty write batch.
func (c *Client) NewBatch() *WriteBatch {
	return &WriteBatch{client: c}
}

// CollectionRef references a collection.
type CollectionRef struct {
	client *Client
	path   string
}

// Path returns the full collection path.
func (r CollectionRef) Path() string { return r.path }

// ID returns the last path segment.
func (r CollectionRef) ID() string {
	_, id := Split(r.path)
	return id
}

// Parent returns the owning document. It reports false for top-level collections.
func (r CollectionRef) Parent() (DocumentRef, bool) {
	parent, _ := Split(r.path)
	if parent == "" {
		return DocumentRef{}, false
	}
	return DocumentRef{client: r.client, path: parent}, true
}

// Doc returns a reference to the document id inside this collection.
func (r CollectionRef) Doc(id string) DocumentRef {
	return DocumentRef{client: r.client, path: r.path + PathSeparator + id}
}

// ListDocuments lists the documents directly inside the collection.
func (r CollectionRef) ListDocuments(ctx context.Context) ([]DocumentRef, error) {
	if !IsCollectionPath(r.path) {
		return nil, fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, r.path)
	}
	ids, err := r.client.backend.ListDocumentIDs(ctx, r.path)
	if err != nil {
		return nil, err
	}
	refs := make([]DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.Doc(id)
	}
	return refs, nil
}

// DocumentRef references a document.
type DocumentRef struct {
	client *Client
	path   string
}

// Path returns the full document path.
func (r DocumentRef) Path() string { return r.path }

// ID returns the document id.
func (r DocumentRef) ID() string {
	_, id := Split(r.path)
	return id
}

// Parent returns the owning collection.
func (r DocumentRef) Parent() CollectionRef {
	parent, _ := Split(r.path)
	return CollectionRef{client: r.client, path: parent}
}

// Collection returns a reference to the sub-collection id.
func (r DocumentRef) Collection(id string) CollectionRef {
	return CollectionRef{client: r.client, path: r.path + PathSeparator + id}
}

// Collections lists the non-empty sub-collections of the document.
func (r DocumentRef) Collections(ctx context.Context) ([]CollectionRef, error) {
	if !IsDocumentPath(r.path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, r.path)
	}
	ids, err := r.client.backend.ListCollectionIDs(ctx, r.path)
	if err != nil {
		return nil, err
	}
	refs := make([]CollectionRef, len(ids))
	for i, id := range ids {
		refs[i] = r.Collection(id)
	}
	return refs, nil
}

// Snapshot is the result of reading a document.
type Snapshot struct {
	Ref    DocumentRef
	Exists bool
	data   Document
}

// Data returns a copy of the document fields, or nil when it does not exist.
func (s *Snapshot) Data() Document {
	return s.data.Clone()
}

// Get reads the document.
func (r DocumentRef) Get(ctx context.Context) (*Snapshot, error) {
	if !IsDocumentPath(r.path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, r.path)
	}
	doc, ok, err := r.client.backend.Get(ctx, r.path)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Ref: r, Exists: ok, data: doc}, nil
}

// WriteBatch accumulates writes that are committed atomically.
// A batch may be committed once.
type WriteBatch struct {
	client    *Client
	mu        sync.Mutex
	writes    []Write
	committed bool
}

// Set writes doc at ref, replacing any existing document.
func (b *WriteBatch) Set(ref DocumentRef, doc Document) error {
	return b.add(OpSet, ref, doc)
}

// Create writes doc at ref; the commit fails if the document exists.
func (b *WriteBatch) Create(ref DocumentRef, doc Document) error {
	return b.add(OpCreate, ref, doc)
}

// Delete removes the document at ref. Sub-collections are left intact.
func (b *WriteBatch) Delete(ref DocumentRef) error {
	return b.add(OpDelete, ref, nil)
}

func (b *WriteBatch) add(op Op, ref DocumentRef, doc Document) error {
	if !IsDocumentPath(ref.path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, ref.path)
	}
	if op != OpDelete && doc == nil {
		return fmt.Errorf("%w: nil data for %s", ErrInvalidDocument, ref.path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.committed {
		return ErrBatchCommitted
	}
	b.writes = append(b.writes, Write{Op: op, Path: ref.path, Data: doc.Clone()})
	return nil
}

// Len returns the number of buffered writes.
func (b *WriteBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes)
}

// Commit applies all buffered writes in one transaction.
func (b *WriteBatch) Commit(ctx context.Context) error {
	b.mu.Lock()
	if b.committed {
		b.mu.Unlock()
		return ErrBatchCommitted
	}
	b.committed = true
	writes := b.writes
	b.writes = nil
	b.mu.Unlock()

	if len(writes) == 0 {
		return nil
	}
	return b.client.backend.Commit(ctx, writes)
}

// cloneDocs deep-copies a path-to-document map.
func cloneDocs(in map[string]Document) map[string]Document {
	out := make(map[string]Document, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
