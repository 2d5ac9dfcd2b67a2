package database

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/go-errors/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	ID       = "id"
	CREATED  = "created"
	MODIFIED = "modified"
	DELETED  = "deleted"
)

// Error codes for mongo_repository
const (
	MONGO_CONNECTOR_TYPE_MISMATCH = "MONGO_CONNECTOR_TYPE_MISMATCH"
	MONGO_CLIENT_NOT_INITIALIZED  = "MONGO_CLIENT_NOT_INITIALIZED"
	MONGO_DATABASE_NAME_REQUIRED  = "MONGO_DATABASE_NAME_REQUIRED"
	MONGO_ID_CANNOT_BE_NIL        = "MONGO_ID_CANNOT_BE_NIL"
	MONGO_NO_DOCUMENTS_FOUND      = "MONGO_NO_DOCUMENTS_FOUND"
	MONGO_DUPLICATE_KEY           = "MONGO_DUPLICATE_KEY"
	MONGO_OPERATION_FAILED        = "MONGO_OPERATION_FAILED"
	MONGO_CONNECTION_ERROR        = "MONGO_CONNECTION_ERROR"
	MONGO_VALIDATION_ERROR        = "MONGO_VALIDATION_ERROR"
)

// mapMongoError maps MongoDB errors to standardized error codes
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return goerrors.New(MONGO_NO_DOCUMENTS_FOUND)
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, writeError := range writeErr.WriteErrors {
			switch writeError.Code {
			case 11000, 11001:
				return goerrors.Errorf("%s: %s", MONGO_DUPLICATE_KEY, writeError.Message)
			case 121:
				return goerrors.Errorf("%s: %s", MONGO_VALIDATION_ERROR, writeError.Message)
			default:
				return goerrors.Errorf("%s: %s", MONGO_OPERATION_FAILED, writeError.Message)
			}
		}
	}

	var commandErr mongo.CommandError
	if errors.As(err, &commandErr) {
		switch commandErr.Code {
		case 11000, 11001:
			return goerrors.Errorf("%s: %s", MONGO_DUPLICATE_KEY, commandErr.Message)
		case 121:
			return goerrors.Errorf("%s: %s", MONGO_VALIDATION_ERROR, commandErr.Message)
		default:
			return goerrors.Errorf("%s: %s", MONGO_OPERATION_FAILED, commandErr.Message)
		}
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return goerrors.New(MONGO_CONNECTION_ERROR)
	}

	return goerrors.Errorf("%s: %v", MONGO_OPERATION_FAILED, err)
}

type MongoRepository[T IModel] struct {
	Options    RepositoryOptions
	collection *mongo.Collection
	schema     *Schema
	connector  *MongoConnector
	datasource *Datasource
}

func NewMongoRepository[T IModel](ds *Datasource, opts RepositoryOptions) (*MongoRepository[T], error) {
	var instance T
	schema := NewSchema(instance)

	if err := ds.RegisterModel(instance); err != nil {
		return nil, err
	}

	tmp, err := ds.GetModelConnector(instance)
	if err != nil {
		return nil, err
	}

	connector, ok := tmp.(*MongoConnector)
	if !ok {
		return nil, goerrors.New(MONGO_CONNECTOR_TYPE_MISMATCH)
	}

	client, ok := connector.GetDriver().(*mongo.Client)
	if !ok {
		return nil, goerrors.New(MONGO_CLIENT_NOT_INITIALIZED)
	}

	databaseName := connector.GetDatabaseName()
	if databaseName == "" {
		return nil, goerrors.New(MONGO_DATABASE_NAME_REQUIRED)
	}

	repository := &MongoRepository[T]{
		Options:    opts,
		collection: client.Database(databaseName).Collection(instance.GetTableName()),
		schema:     schema,
		connector:  connector,
		datasource: ds,
	}

	if err := RegisterDatasourceRepository(ds, instance, repository); err != nil {
		return nil, err
	}
	return repository, nil
}

func (repository *MongoRepository[T]) GetCollection() *mongo.Collection {
	return repository.collection
}

func (repository *MongoRepository[T]) GetSchema() *Schema {
	return repository.schema
}

func (repository *MongoRepository[T]) GetConnector() Connector {
	return repository.connector
}

func (repository *MongoRepository[T]) buildQuery(filterBuilder FilterBuilder) (bson.M, MongoFilter, error) {
	lbFilter, err := filterBuilder.Build()
	if err != nil {
		return nil, MongoFilter{}, err
	}

	parsed, err := adaptFilter(*lbFilter, repository.schema)
	if err != nil {
		return nil, MongoFilter{}, err
	}

	query := parsed.Where
	if query == nil {
		query = bson.M{}
	}
	if repository.Options.Deleted {
		// Soft-deleted documents never match
		query = bson.M{"$and": bson.A{query, bson.M{DELETED: nil}}}
	}
	return query, parsed, nil
}

func (repository *MongoRepository[T]) Find(ctx context.Context, filterBuilder *FilterBuilder) ([]T, error) {
	if filterBuilder == nil {
		filterBuilder = NewFilter()
	}

	query, parsed, err := repository.buildQuery(*filterBuilder)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if len(parsed.Options.Sort) > 0 {
		findOpts.SetSort(parsed.Options.Sort)
	}
	if parsed.Options.Limit != nil {
		findOpts.SetLimit(int64(*parsed.Options.Limit))
	}
	if parsed.Options.Skip != nil {
		findOpts.SetSkip(int64(*parsed.Options.Skip))
	}
	if parsed.Options.Fields != nil {
		findOpts.SetProjection(parsed.Options.Fields)
	}

	cursor, err := repository.collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, mapMongoError(err)
	}

	var receiver []T
	if err = cursor.All(ctx, &receiver); err != nil {
		return nil, mapMongoError(err)
	}

	if receiver == nil {
		return []T{}, nil
	}
	return receiver, nil
}

func (repository *MongoRepository[T]) FindOne(ctx context.Context, filterBuilder *FilterBuilder) (*T, error) {
	if filterBuilder == nil {
		filterBuilder = NewFilter()
	}

	query, parsed, err := repository.buildQuery(*filterBuilder)
	if err != nil {
		return nil, err
	}

	findOneOpts := options.FindOne()
	if len(parsed.Options.Sort) > 0 {
		findOneOpts.SetSort(parsed.Options.Sort)
	}
	if parsed.Options.Skip != nil {
		findOneOpts.SetSkip(int64(*parsed.Options.Skip))
	}
	if parsed.Options.Fields != nil {
		findOneOpts.SetProjection(parsed.Options.Fields)
	}

	result := repository.collection.FindOne(ctx, query, findOneOpts)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, mapMongoError(result.Err())
	}

	receiver := new(T)
	if err := result.Decode(receiver); err != nil {
		return nil, mapMongoError(err)
	}
	return receiver, nil
}

func (repository *MongoRepository[T]) FindById(ctx context.Context, id any, filterBuilder *FilterBuilder) (*T, error) {
	if id == nil {
		return nil, goerrors.New(MONGO_ID_CANNOT_BE_NIL)
	}

	var filterClone *FilterBuilder
	if filterBuilder == nil {
		filterClone = NewFilter()
	} else {
		filterClone = filterBuilder.Clone()
	}

	filterClone.WithWhere(NewWhere().Eq(ID, id))
	return repository.FindOne(ctx, filterClone)
}

func (repository *MongoRepository[T]) Count(ctx context.Context, filterBuilder *FilterBuilder) (int64, error) {
	if filterBuilder == nil {
		filterBuilder = NewFilter()
	}

	query, _, err := repository.buildQuery(*filterBuilder)
	if err != nil {
		return 0, err
	}

	count, err := repository.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, mapMongoError(err)
	}
	return count, nil
}

func (repository *MongoRepository[T]) Insert(ctx context.Context, doc T) (any, error) {
	if hook, ok := any(&doc).(BeforeCreateHook); ok {
		if err := hook.BeforeCreate(); err != nil {
			return nil, err
		}
	}

	document, err := toBsonMap(doc)
	if err != nil {
		return nil, err
	}

	if repository.Options.Created {
		document[CREATED] = time.Now()
	}
	if repository.Options.Modified {
		document[MODIFIED] = time.Now()
	}

	insertedResult, err := repository.collection.InsertOne(ctx, document)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return insertedResult.InsertedID, nil
}

func (repository *MongoRepository[T]) DeleteById(ctx context.Context, id any) error {
	if id == nil {
		return goerrors.New(MONGO_ID_CANNOT_BE_NIL)
	}

	field, exists := getFieldIfExists(ID, repository.schema.JSONFields)
	idField := "_id"
	if exists {
		idField = field.BsonName
	}

	if repository.Options.Deleted {
		_, err := repository.collection.UpdateOne(ctx, bson.M{idField: id}, bson.M{"$set": bson.M{DELETED: time.Now()}})
		return mapMongoError(err)
	}

	_, err := repository.collection.DeleteOne(ctx, bson.M{idField: id})
	return mapMongoError(err)
}

func toBsonMap(doc any) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var document bson.M
	if err := bson.Unmarshal(data, &document); err != nil {
		return nil, err
	}
	return document, nil
}
