// Package sideload resolves declared relations between entity types: given a
// RelationTree, a batch of already-resolved parent records and a nested include
// directive, it fetches each requested related record set exactly once, assigns
// the children back onto their parents and recurses into the related type's own
// tree. Polymorphic relations dispatch per record through a discriminator.
package sideload

import "context"

type RelationType string

const (
	RelationTypeHasOne    RelationType = "hasOne"
	RelationTypeHasMany   RelationType = "hasMany"
	RelationTypeBelongsTo RelationType = "belongsTo"
)

// IsList reports whether the relation carries a collection of records.
func (t RelationType) IsList() bool {
	return t == RelationTypeHasMany
}

// Record is the resolved-record handle the engine passes through. The engine
// never inspects storage concerns; it only reads key attributes for default
// association and writes resolved relations back.
type Record interface {
	GetId() any
	GetAttribute(name string) any
	GetRelated(name string) any
	SetRelated(name string, value any) error
}

// ResolveOptions are the construction flags of the Scope contract. The engine
// always passes DefaultPaginate=false: sideloaded collections are never
// paginated by the outer query. Namespace is a diagnostic label only.
type ResolveOptions struct {
	DefaultPaginate bool
	Namespace       string
}

// Scope is an unresolved fetch request built by a relation's fetch callback.
// The concrete query construction and execution belong to the caller; the
// engine only resolves it into records.
type Scope interface {
	Resolve(ctx context.Context, opts ResolveOptions) ([]Record, error)
}

// FetchFunc builds a Scope from the current parent batch. It must be pure with
// respect to parents and is invoked even when the batch is empty.
type FetchFunc func(parents []Record) (Scope, error)

// AssignFunc mutates parents in place to carry their matched children. An empty
// children slice is a normal result, never an error.
type AssignFunc func(parents []Record, children []Record) error

// Discriminator classifies a parent record into the key selecting which
// polymorphic branch applies. It must be deterministic and total.
type Discriminator func(record Record) string
