package database

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/labstack/gommon/log"
	sideload "github.com/xompass/vsaas-sideload"
)

// RepositoryScope is an unresolved repository query implementing
// sideload.Scope. The filter it carries is the relation's base fetch; callers
// compose per-relation include scopes onto it with Merge before resolution.
type RepositoryScope[T RelationalModel] struct {
	repo   Repository[T]
	filter *FilterBuilder
}

func NewRepositoryScope[T RelationalModel](repo Repository[T], filter *FilterBuilder) *RepositoryScope[T] {
	if filter == nil {
		filter = NewFilter()
	}
	return &RepositoryScope[T]{repo: repo, filter: filter}
}

// Merge returns a new scope with the other filter composed onto this one.
func (s *RepositoryScope[T]) Merge(other *FilterBuilder) *RepositoryScope[T] {
	return &RepositoryScope[T]{repo: s.repo, filter: s.filter.MergeWith(other)}
}

func (s *RepositoryScope[T]) Resolve(ctx context.Context, opts sideload.ResolveOptions) ([]sideload.Record, error) {
	docs, err := s.find(ctx, opts)
	if err != nil {
		return nil, err
	}
	return asRecords(docs), nil
}

func (s *RepositoryScope[T]) find(ctx context.Context, opts sideload.ResolveOptions) ([]T, error) {
	filter := s.filter.Clone()
	if !opts.DefaultPaginate {
		filter.WithoutPagination()
	}

	if opts.Namespace != "" {
		log.Debugf("resolving sideload scope %q on %s", opts.Namespace, s.repo.GetSchema().Name)
	}

	return s.repo.Find(ctx, filter)
}

func asRecords[T RelationalModel](docs []T) []sideload.Record {
	records := make([]sideload.Record, len(docs))
	for i, doc := range docs {
		records[i] = doc
	}
	return records
}

// RepositoryAssociator backs a relation's default fetch and assign with a
// repository: fetch queries the child collection by foreign key, assignment
// matches keys in memory.
type RepositoryAssociator[T RelationalModel] struct {
	Repo Repository[T]

	// Scope, when set, is the base filter every default fetch starts from
	// (soft-delete guards, tenant scoping and the like).
	Scope *FilterBuilder
}

func (a RepositoryAssociator[T]) FetchDefault(node *sideload.RelationNode) sideload.FetchFunc {
	if node.ForeignKey() == "" {
		return nil
	}

	return func(parents []sideload.Record) (sideload.Scope, error) {
		parentKey := node.PrimaryKey()
		childKey := node.ForeignKey()
		if node.Type() == sideload.RelationTypeBelongsTo {
			parentKey, childKey = node.ForeignKey(), node.PrimaryKey()
		}

		keys := make([]any, 0, len(parents))
		seen := map[any]bool{}
		for _, parent := range parents {
			key := parent.GetAttribute(parentKey)
			if key == nil || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}

		filter := NewFilter().WithWhere(NewWhere().In(childKey, keys))
		if _, err := filter.Build(); err != nil {
			return nil, errors.Errorf("cannot build fetch scope for relation %s: %v", node.Name(), err)
		}

		scope := NewRepositoryScope(a.Repo, filter)
		if a.Scope != nil {
			scope = scope.Merge(a.Scope)
		}
		return scope, nil
	}
}

func (a RepositoryAssociator[T]) AssignDefault(node *sideload.RelationNode) sideload.AssignFunc {
	return sideload.KeyAssociator{}.AssignDefault(node)
}
