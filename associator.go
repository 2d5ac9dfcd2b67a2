package sideload

// Associator supplies default fetch/assign behavior for a relation node. The
// concrete associator is chosen at configuration time and injected through
// RelationOptions, so tests can substitute a fake and storage adapters can
// provide their own fetch defaults.
type Associator interface {
	// FetchDefault returns a default fetch callback for the node, or nil when
	// the associator has no storage access to build one.
	FetchDefault(node *RelationNode) FetchFunc

	// AssignDefault returns a default assign callback for the node, or nil when
	// the node's key configuration is insufficient.
	AssignDefault(node *RelationNode) AssignFunc
}

// KeyAssociator assigns children to parents by matching key attributes in
// memory: the parent's primary key against the child's foreign key, reversed
// for belongsTo. It has no storage, so it provides no default fetch.
type KeyAssociator struct{}

func (KeyAssociator) FetchDefault(node *RelationNode) FetchFunc {
	return nil
}

func (KeyAssociator) AssignDefault(node *RelationNode) AssignFunc {
	if node.ForeignKey() == "" {
		return nil
	}

	return func(parents []Record, children []Record) error {
		parentKey := node.PrimaryKey()
		childKey := node.ForeignKey()
		if node.Type() == RelationTypeBelongsTo {
			parentKey, childKey = node.ForeignKey(), node.PrimaryKey()
		}

		byKey := make(map[any][]Record, len(children))
		for _, child := range children {
			key := child.GetAttribute(childKey)
			if key == nil {
				continue
			}
			byKey[key] = append(byKey[key], child)
		}

		for _, parent := range parents {
			key := parent.GetAttribute(parentKey)
			if key == nil {
				continue
			}
			for _, child := range byKey[key] {
				if err := node.AssociateDefault(parent, child); err != nil {
					return err
				}
			}
		}
		return nil
	}
}
