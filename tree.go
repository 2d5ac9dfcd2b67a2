package sideload

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var optsValidator = validator.New()

// RelationTree owns the relations declared for one entity type. It is built
// once at configuration time and read-only afterwards: registration must never
// run concurrently with resolution traffic.
type RelationTree struct {
	id        uuid.UUID
	name      string
	relations map[string]IRelation
	order     []string
}

// NewRelationTree creates an empty tree for the named entity type. The name is
// used for diagnostics only; identity for graph traversal is the assigned id.
func NewRelationTree(name string) *RelationTree {
	return &RelationTree{
		id:        uuid.New(),
		name:      name,
		relations: map[string]IRelation{},
	}
}

func (t *RelationTree) Name() string {
	return t.name
}

// Register declares a relation on the tree. This is the only mutation API.
// Options are validated up front so misconfiguration surfaces at registration
// rather than at first resolution. The configure callbacks install the fetch
// and assign operations; whatever they leave unset is filled from the
// associator when one is present.
func (t *RelationTree) Register(name string, opts RelationOptions, configure ...func(*RelationNode)) (*RelationNode, error) {
	if err := t.checkName(name); err != nil {
		return nil, err
	}
	if err := optsValidator.Struct(opts); err != nil {
		return nil, &MisconfiguredRelationError{Relation: name, Reason: err.Error()}
	}

	node := newRelationNode(name, opts)
	for _, fn := range configure {
		fn(node)
	}
	node.installDefaults()

	t.add(name, node)
	return node, nil
}

// RegisterPolymorphic declares a relation whose concrete target type varies per
// parent record. Branches are added through the configure callback.
func (t *RelationTree) RegisterPolymorphic(name string, opts PolymorphicOptions, configure func(*PolymorphicGroup) error) (*PolymorphicGroup, error) {
	if err := t.checkName(name); err != nil {
		return nil, err
	}
	if err := optsValidator.Struct(opts); err != nil {
		return nil, &MisconfiguredRelationError{Relation: name, Reason: err.Error()}
	}

	group := newPolymorphicGroup(name, opts)
	if configure != nil {
		if err := configure(group); err != nil {
			return nil, err
		}
	}

	t.add(name, group)
	return group, nil
}

// Relation returns the registered relation for a name.
func (t *RelationTree) Relation(name string) (IRelation, bool) {
	rel, ok := t.relations[name]
	return rel, ok
}

// RelationNames returns the registered names in declaration order.
func (t *RelationTree) RelationNames() []string {
	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Validate checks every registered relation for configuration errors. Calling
// it after configuration completes surfaces MisconfiguredRelationError before
// any resolution traffic runs.
func (t *RelationTree) Validate() error {
	for _, name := range t.order {
		if err := t.relations[name].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *RelationTree) checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &MisconfiguredRelationError{Relation: name, Reason: SIDELOAD_INVALID_RELATION_NAME}
	}
	if _, exists := t.relations[name]; exists {
		return &MisconfiguredRelationError{Relation: name, Reason: SIDELOAD_DUPLICATE_RELATION}
	}
	return nil
}

func (t *RelationTree) add(name string, rel IRelation) {
	t.relations[name] = rel
	t.order = append(t.order, name)
}
