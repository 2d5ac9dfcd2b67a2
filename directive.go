package sideload

import (
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// NestedInclude is the requested-include directive: a mapping from relation
// name to its own nested directive. An empty map requests the relation with no
// sub-relations. Duplicate keys cannot occur; a repeated request for the same
// name simply overwrites the previous nesting.
type NestedInclude map[string]NestedInclude

// Merge unions another directive into this one, recursing into shared keys.
func (d NestedInclude) Merge(other NestedInclude) NestedInclude {
	for name, nested := range other {
		if current, ok := d[name]; ok {
			d[name] = current.Merge(nested)
		} else {
			d[name] = nested.clone()
		}
	}
	return d
}

func (d NestedInclude) clone() NestedInclude {
	out := NestedInclude{}
	for name, nested := range d {
		out[name] = nested.clone()
	}
	return out
}

func (d NestedInclude) ToJSON() (string, error) {
	data, err := sonic.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToDirective compiles the full nested directive of every relation name
// reachable from the tree, following each relation's target tree transitively.
// The walk is cycle-safe: a tree already visited on the current path renders
// as an empty branch instead of recursing. Output iterates relation names in
// declaration order, so compilation is deterministic.
func (t *RelationTree) ToDirective() NestedInclude {
	return t.toDirective(map[uuid.UUID]bool{})
}

func (t *RelationTree) toDirective(visited map[uuid.UUID]bool) NestedInclude {
	if visited[t.id] {
		return NestedInclude{}
	}
	visited[t.id] = true

	directive := NestedInclude{}
	for _, name := range t.order {
		switch rel := t.relations[name].(type) {
		case *PolymorphicGroup:
			// The directive describes the public shape, not internal dispatch:
			// every branch's reachable names merge under the group's own name.
			merged := NestedInclude{}
			for _, key := range rel.groupOrder {
				if target := rel.groups[key].TargetTree(); target != nil {
					merged.Merge(target.toDirective(visited))
				}
			}
			directive[name] = merged
		case *RelationNode:
			if target := rel.TargetTree(); target != nil {
				directive[name] = target.toDirective(visited)
			} else {
				directive[name] = NestedInclude{}
			}
		}
	}
	return directive
}
