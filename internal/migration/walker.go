package migration

import (
	"context"
	"fmt"

	"github.com/tphakala/invsync/internal/docstore"
)

// DeleteInstruction pairs a document with the accumulator that deletes it.
type DeleteInstruction struct {
	Doc   docstore.DocumentRef
	Batch *BatchAccumulator
}

// TreeWalker enumerates a collection subtree for deletion.
type TreeWalker struct {
	batch *BatchAccumulator
}

// NewTreeWalker returns a walker whose instructions target batch. batch may
// be nil for dry runs.
func NewTreeWalker(batch *BatchAccumulator) *TreeWalker {
	return &TreeWalker{batch: batch}
}

type walkFrame struct {
	doc      docstore.DocumentRef
	expanded bool
}

// Enumerate returns every document under roots, each exactly once. A
// document is emitted after all documents in its sub-collections, and each
// subtree is finished before its next sibling is expanded. The walk uses an
// explicit stack, so depth is bounded only by memory.
func (w *TreeWalker) Enumerate(ctx context.Context, roots ...docstore.CollectionRef) ([]DeleteInstruction, error) {
	var (
		out   []DeleteInstruction
		stack []walkFrame
		seen  = make(map[string]struct{})
	)

	push := func(coll docstore.CollectionRef) error {
		docs, err := coll.ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("list documents of %s: %w", coll.Path(), err)
		}
		// reverse so the first child is expanded first
		for i := len(docs) - 1; i >= 0; i-- {
			stack = append(stack, walkFrame{doc: docs[i]})
		}
		return nil
	}

	for _, root := range roots {
		if err := push(root); err != nil {
			return nil, err
		}

		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			top := len(stack) - 1
			frame := stack[top]
			if frame.expanded {
				stack = stack[:top]
				if _, dup := seen[frame.doc.Path()]; dup {
					continue
				}
				seen[frame.doc.Path()] = struct{}{}
				out = append(out, DeleteInstruction{Doc: frame.doc, Batch: w.batch})
				continue
			}

			stack[top].expanded = true
			colls, err := frame.doc.Collections(ctx)
			if err != nil {
				return nil, fmt.Errorf("list collections of %s: %w", frame.doc.Path(), err)
			}
			for i := len(colls) - 1; i >= 0; i-- {
				if err := push(colls[i]); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}
