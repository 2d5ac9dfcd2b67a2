package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sideload "github.com/xompass/vsaas-sideload"
	"github.com/xompass/vsaas-sideload/lbq"
)

type scopeComment struct {
	Id     int
	PostId int
	rels   map[string]any
}

func (c *scopeComment) GetTableName() string     { return "comments" }
func (c *scopeComment) GetModelName() string     { return "Comment" }
func (c *scopeComment) GetConnectorName() string { return "mongodb" }
func (c *scopeComment) GetId() any               { return c.Id }

func (c *scopeComment) GetAttribute(name string) any {
	switch name {
	case "id":
		return c.Id
	case "postId":
		return c.PostId
	}
	return nil
}

func (c *scopeComment) GetRelated(name string) any { return c.rels[name] }

func (c *scopeComment) SetRelated(name string, value any) error {
	if c.rels == nil {
		c.rels = map[string]any{}
	}
	c.rels[name] = value
	return nil
}

// fakeRepository records the filters it was queried with and serves a fixed
// document set.
type fakeRepository struct {
	docs    []*scopeComment
	filters []*lbq.Filter
	schema  *Schema
}

func newFakeRepository(docs ...*scopeComment) *fakeRepository {
	return &fakeRepository{docs: docs, schema: &Schema{Name: "Comment", JSONFields: map[string]*Field{}}}
}

func (r *fakeRepository) GetSchema() *Schema      { return r.schema }
func (r *fakeRepository) GetConnector() Connector { return nil }

func (r *fakeRepository) Find(ctx context.Context, filter *FilterBuilder) ([]*scopeComment, error) {
	built, err := filter.Build()
	if err != nil {
		return nil, err
	}
	r.filters = append(r.filters, built)
	return r.docs, nil
}

func (r *fakeRepository) FindOne(ctx context.Context, filter *FilterBuilder) (**scopeComment, error) {
	return nil, nil
}

func (r *fakeRepository) FindById(ctx context.Context, id any, filter *FilterBuilder) (**scopeComment, error) {
	return nil, nil
}

func (r *fakeRepository) Count(ctx context.Context, filter *FilterBuilder) (int64, error) {
	return int64(len(r.docs)), nil
}

func (r *fakeRepository) Insert(ctx context.Context, doc *scopeComment) (any, error) {
	r.docs = append(r.docs, doc)
	return doc.Id, nil
}

func (r *fakeRepository) DeleteById(ctx context.Context, id any) error { return nil }

func TestRepositoryScope_StripsPagination(t *testing.T) {
	repo := newFakeRepository(&scopeComment{Id: 1, PostId: 1})
	scope := NewRepositoryScope[*scopeComment](repo, NewFilter().Page(2, 10))

	records, err := scope.Resolve(context.Background(), sideload.ResolveOptions{Namespace: "comments"})
	assert.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Len(t, repo.filters, 1)
	assert.Zero(t, repo.filters[0].Limit)
	assert.Zero(t, repo.filters[0].Skip)
}

func TestRepositoryScope_MergeComposesIncludeScope(t *testing.T) {
	repo := newFakeRepository()
	scope := NewRepositoryScope[*scopeComment](repo, NewFilter().WithWhere(NewWhere().In("postId", []any{1, 2})))

	merged := scope.Merge(NewFilter().WithWhere(NewWhere().Eq("approved", true)))
	_, err := merged.Resolve(context.Background(), sideload.ResolveOptions{})
	assert.NoError(t, err)

	assert.Equal(t, lbq.Where{
		"and": lbq.AndOrCondition{
			{"postId": lbq.Where{"inq": []any{1, 2}}},
			{"approved": lbq.Where{"eq": true}},
		},
	}, repo.filters[0].Where)
}

func TestRepositoryAssociator_FetchDefault(t *testing.T) {
	repo := newFakeRepository(
		&scopeComment{Id: 10, PostId: 1},
		&scopeComment{Id: 11, PostId: 2},
	)

	tree := sideload.NewRelationTree("Post")
	_, err := tree.Register("comments", sideload.RelationOptions{
		Type:       sideload.RelationTypeHasMany,
		ForeignKey: "postId",
		Associator: RepositoryAssociator[*scopeComment]{Repo: repo},
	})
	assert.NoError(t, err)
	// the associator supplied both fetch and assign defaults
	assert.NoError(t, tree.Validate())
}

func TestRepositoryAssociator_EndToEnd(t *testing.T) {
	repo := newFakeRepository(
		&scopeComment{Id: 10, PostId: 1},
		&scopeComment{Id: 11, PostId: 2},
		&scopeComment{Id: 12, PostId: 1},
	)

	tree := sideload.NewRelationTree("Post")
	_, err := tree.Register("comments", sideload.RelationOptions{
		Type:       sideload.RelationTypeHasMany,
		ForeignKey: "postId",
		Associator: RepositoryAssociator[*scopeComment]{Repo: repo},
	})
	assert.NoError(t, err)
	assert.NoError(t, tree.Validate())

	posts := []sideload.Record{
		&scopeComment{Id: 1},
		&scopeComment{Id: 2},
	}

	resolver := sideload.NewResolver()
	err = resolver.Resolve(context.Background(), tree, posts, sideload.NestedInclude{"comments": {}})
	assert.NoError(t, err)

	// default fetch queried the child collection by foreign key, deduplicated
	assert.Len(t, repo.filters, 1)
	assert.Equal(t, lbq.Where{"postId": lbq.Where{"inq": []any{1, 2}}}, repo.filters[0].Where)

	first, _ := posts[0].GetRelated("comments").([]sideload.Record)
	second, _ := posts[1].GetRelated("comments").([]sideload.Record)
	assert.Len(t, first, 2)
	assert.Len(t, second, 1)
}
