package migration

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/invsync/internal/source"
)

// IdentityResolver derives target document keys from source identities.
type IdentityResolver struct {
	namespace uuid.UUID
}

// NewIdentityResolver returns a resolver whose generated child keys are
// stable for project.
func NewIdentityResolver(project string) *IdentityResolver {
	return &IdentityResolver{
		namespace: uuid.NewSHA1(uuid.NameSpaceURL, []byte("invsync://"+project)),
	}
}

// ID returns the document key for an entity: "<kind>-<k1>-<k2>...".
func (r *IdentityResolver) ID(kind string, key ...int64) string {
	return source.FormatID(kind, key...)
}

// Parse splits an id into kind and key components.
func (r *IdentityResolver) Parse(id string) (string, []int64, error) {
	return source.ParseID(id)
}

// RefID builds the id of the kind entity referenced by raw's field. It
// reports false when the field is missing, not an integer or negative.
func (r *IdentityResolver) RefID(kind string, raw source.Entity, field string) (string, bool) {
	n, ok := raw.Int64(field)
	if !ok || n < 0 {
		return "", false
	}
	return source.FormatID(kind, n), true
}

// ChildKey returns a deterministic key for a child record of parentID
// identified by parts.
func (r *IdentityResolver) ChildKey(parentID string, parts ...string) string {
	name := parentID + "/" + strings.Join(parts, "/")
	return uuid.NewSHA1(r.namespace, []byte(name)).String()
}
