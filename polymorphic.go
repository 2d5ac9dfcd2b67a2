package sideload

// PolymorphicGroup is a relation whose concrete target type depends on a field
// of the parent record. A discriminator classifies each parent, and one branch
// node per discriminator value carries the actual fetch/assign wiring. Parents
// whose discriminator value has no registered branch are tolerated and simply
// keep the relation unassigned.
type PolymorphicGroup struct {
	RelationNode

	discriminator Discriminator
	groups        map[string]*RelationNode
	groupOrder    []string
}

// PolymorphicOptions configures a polymorphic group at registration time.
type PolymorphicOptions struct {
	Type          RelationType `validate:"required,oneof=hasOne hasMany belongsTo"`
	Discriminator Discriminator `validate:"required"`
}

func newPolymorphicGroup(name string, opts PolymorphicOptions) *PolymorphicGroup {
	return &PolymorphicGroup{
		RelationNode:  *newRelationNode(name, RelationOptions{Type: opts.Type}),
		discriminator: opts.Discriminator,
		groups:        map[string]*RelationNode{},
	}
}

// Branch registers the concrete relation for one discriminator value. The
// branch inherits the group's name and kind unless the options override them.
func (g *PolymorphicGroup) Branch(key string, opts RelationOptions, configure ...func(*RelationNode)) (*RelationNode, error) {
	if key == "" {
		return nil, &MisconfiguredRelationError{Relation: g.name, Reason: "polymorphic branch key cannot be empty"}
	}
	if _, exists := g.groups[key]; exists {
		return nil, &MisconfiguredRelationError{Relation: g.name, Reason: "polymorphic branch " + key + " already registered"}
	}

	if opts.Type == "" {
		opts.Type = g.relType
	}

	node := newRelationNode(g.name, opts)
	for _, fn := range configure {
		fn(node)
	}
	node.installDefaults()

	g.groups[key] = node
	g.groupOrder = append(g.groupOrder, key)
	return node, nil
}

// Group returns the branch registered for a discriminator value.
func (g *PolymorphicGroup) Group(key string) (*RelationNode, bool) {
	node, ok := g.groups[key]
	return node, ok
}

// GroupKeys returns the branch keys in registration order.
func (g *PolymorphicGroup) GroupKeys() []string {
	keys := make([]string, len(g.groupOrder))
	copy(keys, g.groupOrder)
	return keys
}

type polymorphicPartition struct {
	key     string
	records []Record
}

// partition splits parents by discriminator value, preserving the original
// relative order within each partition and first-observed key order across
// partitions.
func (g *PolymorphicGroup) partition(parents []Record) []polymorphicPartition {
	var partitions []polymorphicPartition
	index := map[string]int{}

	for _, parent := range parents {
		key := g.discriminator(parent)
		pos, seen := index[key]
		if !seen {
			pos = len(partitions)
			index[key] = pos
			partitions = append(partitions, polymorphicPartition{key: key})
		}
		partitions[pos].records = append(partitions[pos].records, parent)
	}

	return partitions
}

func (g *PolymorphicGroup) validate() error {
	if g.discriminator == nil {
		return &MisconfiguredRelationError{Relation: g.name, Reason: "no discriminator configured"}
	}
	for _, key := range g.groupOrder {
		if err := g.groups[key].validate(); err != nil {
			return err
		}
	}
	return nil
}
