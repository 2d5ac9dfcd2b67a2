package database

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/xompass/vsaas-sideload/helpers"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

type MongoConnectorOpts struct {
	options.ClientOptions
	Name     string
	Database string
}

type MongoConnector struct {
	ctx     context.Context
	client  *mongo.Client
	options *MongoConnectorOpts
}

// NewMongoConnector creates a new MongoDB connector. It initializes the client
// with the provided options and checks the connection.
func NewMongoConnector(opts *MongoConnectorOpts) (*MongoConnector, error) {
	connector := &MongoConnector{
		ctx:     context.Background(),
		options: opts,
	}

	if err := connector.connect(); err != nil {
		return nil, err
	}
	if err := connector.Ping(); err != nil {
		return nil, err
	}
	return connector, nil
}

// NewDefaultMongoConnector builds a connector from the MONGO_URI and
// MONGO_DATABASE environment variables.
func NewDefaultMongoConnector() (*MongoConnector, error) {
	uri := helpers.GetEnv("MONGO_URI", "mongodb://localhost:27017")

	clientOptions := (&options.ClientOptions{}).ApplyURI(uri)

	conn, err := connstring.Parse(uri)
	if err != nil {
		return nil, err
	}

	dbName := conn.Database
	if dbName == "" {
		dbName = "test"
	}

	opts := MongoConnectorOpts{
		ClientOptions: *clientOptions,
		Name:          "mongodb",
		Database:      helpers.GetEnv("MONGO_DATABASE", dbName),
	}
	return NewMongoConnector(&opts)
}

func (connector *MongoConnector) connect() error {
	opts := connector.options.ClientOptions

	client, err := mongo.Connect(&opts)
	if err != nil {
		return err
	}

	connector.client = client
	return nil
}

func (connector *MongoConnector) Ping() error {
	if connector.client == nil {
		return errors.New("mongo client not initialized")
	}
	return connector.client.Ping(connector.ctx, nil)
}

func (connector *MongoConnector) Disconnect() error {
	if connector.client == nil {
		return errors.New("mongo client not initialized")
	}
	return connector.client.Disconnect(connector.ctx)
}

// GetDriver returns the underlying MongoDB client.
func (connector *MongoConnector) GetDriver() any {
	return connector.client
}

func (connector *MongoConnector) GetName() string {
	return connector.options.Name
}

func (connector *MongoConnector) GetDatabaseName() string {
	return connector.options.Database
}

func (connector *MongoConnector) GetOptions() MongoConnectorOpts {
	return *connector.options
}
