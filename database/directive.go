package database

import (
	sideload "github.com/xompass/vsaas-sideload"
	"github.com/xompass/vsaas-sideload/lbq"
)

// DirectiveFromIncludes flattens parsed lbq includes into the nested directive
// the resolver consumes. A repeated relation name merges into the earlier
// entry, so the last nesting wins where they overlap. Per-relation scope
// filters are not part of the directive; they compose onto the relation's
// fetch, see ScopesFromIncludes.
func DirectiveFromIncludes(includes []lbq.Include) sideload.NestedInclude {
	directive := sideload.NestedInclude{}
	for _, include := range includes {
		if include.Relation == "" {
			continue
		}

		nested := sideload.NestedInclude{}
		if include.Scope != nil {
			nested = DirectiveFromIncludes(include.Scope.Include)
		}

		if current, ok := directive[include.Relation]; ok {
			directive[include.Relation] = current.Merge(nested)
		} else {
			directive[include.Relation] = nested
		}
	}
	return directive
}

// DirectiveFromFilter is a convenience over the filter's include clause.
func DirectiveFromFilter(filter *lbq.Filter) sideload.NestedInclude {
	if filter == nil {
		return sideload.NestedInclude{}
	}
	return DirectiveFromIncludes(filter.Include)
}

// ScopesFromIncludes collects the per-relation scope filters by dotted
// relation path. Callers merge these onto the matching relation's base fetch
// filter when building scopes.
func ScopesFromIncludes(includes []lbq.Include) map[string]*FilterBuilder {
	scopes := map[string]*FilterBuilder{}
	collectScopes(includes, "", scopes)
	return scopes
}

func collectScopes(includes []lbq.Include, prefix string, scopes map[string]*FilterBuilder) {
	for _, include := range includes {
		if include.Relation == "" || include.Scope == nil {
			continue
		}

		path := include.Relation
		if prefix != "" {
			path = prefix + "." + include.Relation
		}

		scoped := include.Scope
		if len(scoped.Where) > 0 || len(scoped.Fields) > 0 || len(scoped.Order) > 0 || scoped.Limit > 0 || scoped.Skip > 0 {
			scopes[path] = NewFilter().FromLBFilter(scoped)
		}
		collectScopes(scoped.Include, path, scopes)
	}
}
