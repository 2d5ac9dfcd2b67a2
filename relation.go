package sideload

// IRelation is implemented by every entry registered in a RelationTree: plain
// relation nodes and polymorphic groups.
type IRelation interface {
	Name() string
	TargetTree() *RelationTree
	validate() error
}

// RelationOptions configures a relation at registration time. The associator,
// when present, supplies default fetch/assign behavior for the adapter in use;
// it is injected explicitly rather than read from global configuration.
type RelationOptions struct {
	Type       RelationType `validate:"required,oneof=hasOne hasMany belongsTo"`
	PrimaryKey string       // defaults to "id"
	ForeignKey string       // no default; required for associator-backed assignment
	Target     *RelationTree
	Associator Associator
}

// RelationNode is a single declared relation: its name, multiplicity kind, key
// attributes and the two caller-supplied operations. The target tree is a
// shared reference; several nodes across the graph may point at the same tree.
type RelationNode struct {
	name       string
	relType    RelationType
	primaryKey string
	foreignKey string
	target     *RelationTree
	associator Associator

	fetch  FetchFunc
	assign AssignFunc
}

func newRelationNode(name string, opts RelationOptions) *RelationNode {
	primaryKey := opts.PrimaryKey
	if primaryKey == "" {
		primaryKey = "id"
	}

	return &RelationNode{
		name:       name,
		relType:    opts.Type,
		primaryKey: primaryKey,
		foreignKey: opts.ForeignKey,
		target:     opts.Target,
		associator: opts.Associator,
	}
}

func (n *RelationNode) Name() string {
	return n.name
}

func (n *RelationNode) Type() RelationType {
	return n.relType
}

func (n *RelationNode) PrimaryKey() string {
	return n.primaryKey
}

func (n *RelationNode) ForeignKey() string {
	return n.foreignKey
}

// TargetTree returns the relation tree of the related entity type. It may be
// nil for relations that are never recursed into.
func (n *RelationNode) TargetTree() *RelationTree {
	return n.target
}

// SetFetch installs the fetch callback. Last write wins.
func (n *RelationNode) SetFetch(fn FetchFunc) *RelationNode {
	n.fetch = fn
	return n
}

// SetAssign installs the assign callback. Last write wins and takes precedence
// over any associator-provided default.
func (n *RelationNode) SetAssign(fn AssignFunc) *RelationNode {
	n.assign = fn
	return n
}

// AssociateDefault wires a single child onto a parent based on the relation
// kind: hasMany appends to the collection named by the relation, hasOne and
// belongsTo set the attribute directly.
func (n *RelationNode) AssociateDefault(parent Record, child Record) error {
	if n.relType.IsList() {
		current, _ := parent.GetRelated(n.name).([]Record)
		return parent.SetRelated(n.name, append(current, child))
	}
	return parent.SetRelated(n.name, child)
}

// installDefaults fills missing fetch/assign from the associator. Called once
// when registration completes.
func (n *RelationNode) installDefaults() {
	if n.associator == nil {
		return
	}
	if n.fetch == nil {
		n.fetch = n.associator.FetchDefault(n)
	}
	if n.assign == nil {
		n.assign = n.associator.AssignDefault(n)
	}
}

func (n *RelationNode) validate() error {
	if n.fetch == nil {
		return &MisconfiguredRelationError{Relation: n.name, Reason: "no fetch configured"}
	}
	if n.assign == nil {
		return &MisconfiguredRelationError{Relation: n.name, Reason: "no assign configured"}
	}
	return nil
}
