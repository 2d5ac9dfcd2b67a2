package sideload

import (
	"context"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
)

type testRecord struct {
	id    any
	attrs map[string]any
	rels  map[string]any
}

func newTestRecord(id any, attrs map[string]any) *testRecord {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &testRecord{id: id, attrs: attrs, rels: map[string]any{}}
}

func (r *testRecord) GetId() any { return r.id }

func (r *testRecord) GetAttribute(name string) any {
	if name == "id" {
		return r.id
	}
	return r.attrs[name]
}

func (r *testRecord) GetRelated(name string) any { return r.rels[name] }

func (r *testRecord) SetRelated(name string, value any) error {
	r.rels[name] = value
	return nil
}

// staticScope resolves to a fixed record set and captures the options the
// resolver passed in.
type staticScope struct {
	records  []Record
	err      error
	lastOpts ResolveOptions
	resolved int
}

func (s *staticScope) Resolve(ctx context.Context, opts ResolveOptions) ([]Record, error) {
	s.lastOpts = opts
	s.resolved++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

// trackedFetch wraps a static scope and records every parent batch the fetch
// callback received.
type trackedFetch struct {
	scope *staticScope
	calls [][]Record
}

func (f *trackedFetch) fn() FetchFunc {
	return func(parents []Record) (Scope, error) {
		f.calls = append(f.calls, parents)
		return f.scope, nil
	}
}

func records(rs ...*testRecord) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// blogFixture wires the Post -> comments -> author graph used across resolver
// tests, with key-based default assignment.
type blogFixture struct {
	postTree    *RelationTree
	commentTree *RelationTree
	authorTree  *RelationTree

	posts    []*testRecord
	comments []*testRecord
	authors  []*testRecord

	commentsFetch *trackedFetch
	authorFetch   *trackedFetch
}

func newBlogFixture(t *testing.T) *blogFixture {
	f := &blogFixture{
		postTree:    NewRelationTree("Post"),
		commentTree: NewRelationTree("Comment"),
		authorTree:  NewRelationTree("Author"),
	}

	f.posts = []*testRecord{
		newTestRecord(1, nil),
		newTestRecord(2, nil),
	}
	f.comments = []*testRecord{
		newTestRecord(10, map[string]any{"postId": 1, "authorId": 100}),
		newTestRecord(11, map[string]any{"postId": 1, "authorId": 101}),
		newTestRecord(12, map[string]any{"postId": 2, "authorId": 100}),
	}
	f.authors = []*testRecord{
		newTestRecord(100, nil),
		newTestRecord(101, nil),
	}

	f.commentsFetch = &trackedFetch{scope: &staticScope{records: records(f.comments...)}}
	f.authorFetch = &trackedFetch{scope: &staticScope{records: records(f.authors...)}}

	_, err := f.postTree.Register("comments", RelationOptions{
		Type:       RelationTypeHasMany,
		ForeignKey: "postId",
		Target:     f.commentTree,
		Associator: KeyAssociator{},
	}, func(node *RelationNode) {
		node.SetFetch(f.commentsFetch.fn())
	})
	assert.NoError(t, err)

	_, err = f.commentTree.Register("author", RelationOptions{
		Type:       RelationTypeBelongsTo,
		ForeignKey: "authorId",
		Target:     f.authorTree,
		Associator: KeyAssociator{},
	}, func(node *RelationNode) {
		node.SetFetch(f.authorFetch.fn())
	})
	assert.NoError(t, err)

	return f
}

func TestResolver_NestedResolution(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver()

	directive := NestedInclude{"comments": {"author": {}}}
	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), directive)
	assert.NoError(t, err)

	// comments fetched once, against the full post batch
	assert.Len(t, f.commentsFetch.calls, 1)
	assert.Equal(t, records(f.posts...), f.commentsFetch.calls[0])

	// authors fetched once, against the combined comment set across both posts
	assert.Len(t, f.authorFetch.calls, 1)
	assert.Len(t, f.authorFetch.calls[0], 3)

	post1Comments, _ := f.posts[0].GetRelated("comments").([]Record)
	post2Comments, _ := f.posts[1].GetRelated("comments").([]Record)
	assert.Len(t, post1Comments, 2)
	assert.Len(t, post2Comments, 1)

	// authors assigned onto their respective comments
	assert.Equal(t, f.authors[0], f.comments[0].GetRelated("author"))
	assert.Equal(t, f.authors[1], f.comments[1].GetRelated("author"))
	assert.Equal(t, f.authors[0], f.comments[2].GetRelated("author"))
}

func TestResolver_NoRedundantFetch(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver()

	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), NestedInclude{"comments": {}})
	assert.NoError(t, err)

	assert.Len(t, f.commentsFetch.calls, 1)
	assert.Empty(t, f.authorFetch.calls)
	assert.Nil(t, f.comments[0].GetRelated("author"))
}

func TestResolver_UnrequestedTreeUntouched(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver()

	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), NestedInclude{})
	assert.NoError(t, err)
	assert.Empty(t, f.commentsFetch.calls)
}

func TestResolver_IdempotentShape(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver()
	directive := NestedInclude{"comments": {"author": {}}}

	assert.NoError(t, resolver.Resolve(context.Background(), f.postTree, records(f.posts...), directive))
	firstComments, _ := f.posts[0].GetRelated("comments").([]Record)
	first := make([]Record, len(firstComments))
	copy(first, firstComments)

	// hasMany assignment overwrites, so a second pass yields the same shape
	for _, p := range f.posts {
		assert.NoError(t, p.SetRelated("comments", nil))
	}
	assert.NoError(t, resolver.Resolve(context.Background(), f.postTree, records(f.posts...), directive))
	secondComments, _ := f.posts[0].GetRelated("comments").([]Record)
	assert.Equal(t, first, secondComments)
}

func TestResolver_EmptyParentBatch(t *testing.T) {
	f := newBlogFixture(t)
	f.commentsFetch.scope.records = nil

	assigned := false
	rel, _ := f.postTree.Relation("comments")
	rel.(*RelationNode).SetAssign(func(parents, children []Record) error {
		assigned = true
		assert.Empty(t, parents)
		assert.Empty(t, children)
		return nil
	})

	resolver := NewResolver()
	err := resolver.Resolve(context.Background(), f.postTree, []Record{}, NestedInclude{"comments": {}})
	assert.NoError(t, err)

	// fetch and assign are still invoked on an empty batch
	assert.Len(t, f.commentsFetch.calls, 1)
	assert.Empty(t, f.commentsFetch.calls[0])
	assert.True(t, assigned)
}

func TestResolver_MissingSideloadRaises(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver()

	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), NestedInclude{"nonexistent": {}})
	assert.Error(t, err)

	var missing *MissingSideloadError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "nonexistent", missing.Relation)
	assert.Equal(t, "Post", missing.Tree)

	// nothing was fetched for the level that failed
	assert.Empty(t, f.commentsFetch.calls)
}

func TestResolver_MissingSideloadIgnored(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver(ResolverOptions{MissingSideloads: MissingSideloadIgnore})

	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), NestedInclude{
		"nonexistent": {},
		"comments":    {},
	})
	assert.NoError(t, err)
	assert.Len(t, f.commentsFetch.calls, 1)
}

func TestResolver_ScopeOptions(t *testing.T) {
	f := newBlogFixture(t)
	resolver := NewResolver()

	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), NestedInclude{"comments": {"author": {}}})
	assert.NoError(t, err)

	// root-level namespace defaults to the relation's own name
	assert.Equal(t, "comments", f.commentsFetch.scope.lastOpts.Namespace)
	assert.False(t, f.commentsFetch.scope.lastOpts.DefaultPaginate)

	// nested fetches are namespaced under the parent relation
	assert.Equal(t, "comments", f.authorFetch.scope.lastOpts.Namespace)
}

func TestResolver_FetchFailureContext(t *testing.T) {
	f := newBlogFixture(t)
	f.authorFetch.scope.err = errors.New("connection reset")
	resolver := NewResolver()

	err := resolver.Resolve(context.Background(), f.postTree, records(f.posts...), NestedInclude{"comments": {"author": {}}})
	assert.Error(t, err)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "author", fetchErr.Relation)
	assert.Equal(t, "comments", fetchErr.Namespace)
	assert.ErrorContains(t, err, "connection reset")

	// the failing subtree was aborted, the outer relation had already resolved
	assert.Len(t, f.commentsFetch.calls, 1)
	assert.Nil(t, f.comments[0].GetRelated("author"))
}

func TestResolver_MisconfiguredRelation(t *testing.T) {
	tree := NewRelationTree("Post")
	_, err := tree.Register("comments", RelationOptions{Type: RelationTypeHasMany})
	assert.NoError(t, err)

	// no fetch, no assign and no associator: surfaces at resolution time
	resolver := NewResolver()
	err = resolver.Resolve(context.Background(), tree, nil, NestedInclude{"comments": {}})

	var misconfigured *MisconfiguredRelationError
	assert.True(t, errors.As(err, &misconfigured))
	assert.Equal(t, "comments", misconfigured.Relation)
}

func TestResolver_ConcurrentSiblings(t *testing.T) {
	tree := NewRelationTree("Post")
	targetA := &trackedFetch{scope: &staticScope{}}
	targetB := &trackedFetch{scope: &staticScope{}}

	assignOrder := []string{}
	register := func(name string, fetch *trackedFetch) {
		_, err := tree.Register(name, RelationOptions{Type: RelationTypeHasMany}, func(node *RelationNode) {
			node.SetFetch(fetch.fn())
			node.SetAssign(func(parents, children []Record) error {
				assignOrder = append(assignOrder, name)
				return nil
			})
		})
		assert.NoError(t, err)
	}
	register("a", targetA)
	register("b", targetB)

	parents := records(newTestRecord(1, nil))
	resolver := NewResolver(ResolverOptions{ConcurrentSiblings: true})
	err := resolver.Resolve(context.Background(), tree, parents, NestedInclude{"a": {}, "b": {}})
	assert.NoError(t, err)

	// both fetches ran exactly once; assigns run after the fetch phase, in
	// declaration order
	assert.Len(t, targetA.calls, 1)
	assert.Len(t, targetB.calls, 1)
	assert.Equal(t, []string{"a", "b"}, assignOrder)
}

func TestResolver_ConcurrentSiblingFailureAssignsNothing(t *testing.T) {
	tree := NewRelationTree("Post")
	okFetch := &trackedFetch{scope: &staticScope{}}
	badFetch := &trackedFetch{scope: &staticScope{err: errors.New("boom")}}

	assigned := 0
	register := func(name string, fetch *trackedFetch) {
		_, err := tree.Register(name, RelationOptions{Type: RelationTypeHasMany}, func(node *RelationNode) {
			node.SetFetch(fetch.fn())
			node.SetAssign(func(parents, children []Record) error {
				assigned++
				return nil
			})
		})
		assert.NoError(t, err)
	}
	register("a", okFetch)
	register("b", badFetch)

	resolver := NewResolver(ResolverOptions{ConcurrentSiblings: true})
	err := resolver.Resolve(context.Background(), tree, records(newTestRecord(1, nil)), NestedInclude{"a": {}, "b": {}})
	assert.Error(t, err)

	// no partial assignment when a sibling fetch fails
	assert.Equal(t, 0, assigned)
}

func TestResolver_NestedRequestBeyondGraph(t *testing.T) {
	tree := NewRelationTree("Post")
	fetch := &trackedFetch{scope: &staticScope{}}
	_, err := tree.Register("tags", RelationOptions{Type: RelationTypeHasMany}, func(node *RelationNode) {
		node.SetFetch(fetch.fn())
		node.SetAssign(func(parents, children []Record) error { return nil })
	})
	assert.NoError(t, err)

	resolver := NewResolver()
	err = resolver.Resolve(context.Background(), tree, records(newTestRecord(1, nil)), NestedInclude{"tags": {"deeper": {}}})

	var missing *MissingSideloadError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "deeper", missing.Relation)
}
