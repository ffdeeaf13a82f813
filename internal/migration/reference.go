package migration

import (
	"fmt"

	"github.com/tphakala/invsync/internal/docstore"
)

// NotFoundType is the type of a placeholder reference.
const NotFoundType = "Not Found"

// Reference is a denormalized copy of another document embedded at
// migration time.
type Reference struct {
	Name string
	ID   *string
	Path *string
	Type string
}

// Placeholder returns the reference used when id of kind does not resolve.
func Placeholder(kind, id string) Reference {
	return Reference{
		Name: fmt.Sprintf("Unknown %s: %s", kind, id),
		Type: NotFoundType,
	}
}

// ReferenceTo builds a reference from a transformed document.
func ReferenceTo(doc docstore.Document) Reference {
	ref := Reference{Name: doc.String("name"), Type: doc.String("type")}
	if id, ok := doc["id"].(string); ok {
		ref.ID = &id
	}
	if p, ok := doc["path"].(string); ok {
		ref.Path = &p
	}
	return ref
}

// Found reports whether the reference resolved.
func (r Reference) Found() bool {
	return r.Type != NotFoundType
}

// PathOr returns the referenced path, or def for unresolved references.
func (r Reference) PathOr(def string) string {
	if r.Path == nil {
		return def
	}
	return *r.Path
}

// Map renders the reference as an embedded document field. Missing id and
// path become nil.
func (r Reference) Map() map[string]any {
	m := map[string]any{
		"name": r.Name,
		"id":   nil,
		"path": nil,
		"type": r.Type,
	}
	if r.ID != nil {
		m["id"] = *r.ID
	}
	if r.Path != nil {
		m["path"] = *r.Path
	}
	return m
}
