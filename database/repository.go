package database

import (
	"context"
)

// RepositoryOptions toggles the bookkeeping a repository applies on write:
// created/modified timestamps and soft deletion.
type RepositoryOptions struct {
	Created  bool
	Modified bool
	Deleted  bool
}

type Repository[T IModel] interface {
	// GetSchema returns the schema of the model used by this repository.
	GetSchema() *Schema

	// GetConnector returns the connector used by this repository.
	GetConnector() Connector

	// Find retrieves all documents matching the filter. If no documents match,
	// it returns an empty slice.
	Find(ctx context.Context, filter *FilterBuilder) ([]T, error)

	// FindOne retrieves the first document matching the filter, or nil when
	// none matches.
	FindOne(ctx context.Context, filter *FilterBuilder) (*T, error)

	// FindById retrieves a single document by its ID.
	FindById(ctx context.Context, id any, filter *FilterBuilder) (*T, error)

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, filter *FilterBuilder) (int64, error)

	// Insert inserts a new document and returns its ID.
	Insert(ctx context.Context, doc T) (any, error)

	// DeleteById deletes a single document by its ID.
	DeleteById(ctx context.Context, id any) error
}
