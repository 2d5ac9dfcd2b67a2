package database

import (
	"github.com/go-errors/errors"
	sideload "github.com/xompass/vsaas-sideload"
)

// Connector is a generic contract for any database connection type.
type Connector interface {
	Ping() error
	Disconnect() error
	GetName() string
	GetDatabaseName() string
	GetDriver() any
}

// Datasource registers connectors, models, repositories and the relation tree
// declared for each model. It is the configuration-time owner of the sideload
// graph: trees registered here are handed to the resolver read-only.
type Datasource struct {
	connectors           map[string]Connector
	repositories         map[string]any
	models               map[string]IModel
	connectorByModelName map[string]Connector
	trees                map[string]*sideload.RelationTree
}

func (ds *Datasource) AddConnector(connector Connector) error {
	if ds == nil {
		return errors.New("datasource is nil")
	}

	if ds.connectors == nil {
		ds.connectors = make(map[string]Connector)
	}

	ds.connectors[connector.GetName()] = connector
	return nil
}

func (ds *Datasource) Destroy() {
	for _, connector := range ds.connectors {
		if connector != nil {
			_ = connector.Disconnect()
		}
	}
}

func (ds *Datasource) RegisterModel(model IModel) error {
	if ds == nil {
		return errors.New("datasource is nil")
	}

	connector, err := ds.GetConnector(model.GetConnectorName())
	if err != nil {
		return err
	}

	if ds.models == nil {
		ds.models = make(map[string]IModel)
	}
	if ds.connectorByModelName == nil {
		ds.connectorByModelName = make(map[string]Connector)
	}

	modelName := model.GetModelName()
	if ds.connectorByModelName[modelName] != nil {
		return errors.Errorf("the model %s is already registered with connector %s", modelName, ds.connectorByModelName[modelName].GetName())
	}

	ds.models[modelName] = model
	ds.connectorByModelName[modelName] = connector
	return nil
}

func (ds *Datasource) GetModelConnector(model IModel) (Connector, error) {
	if ds == nil {
		return nil, errors.New("datasource is nil")
	}

	connector, ok := ds.connectorByModelName[model.GetModelName()]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", model.GetModelName())
	}
	return connector, nil
}

func (ds *Datasource) GetConnector(name string) (Connector, error) {
	if ds == nil {
		return nil, errors.New("datasource is nil")
	}

	connector, ok := ds.connectors[name]
	if !ok {
		return nil, errors.Errorf("the connector %s is not registered", name)
	}
	return connector, nil
}

func (ds *Datasource) GetModel(modelName string) (IModel, error) {
	if ds == nil || ds.models == nil {
		return nil, errors.Errorf("the model %s is not registered", modelName)
	}

	model, ok := ds.models[modelName]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", modelName)
	}
	return model, nil
}

// RegisterTree declares the relation tree for a model. Like every Datasource
// mutation this must happen during configuration, before resolution traffic.
func (ds *Datasource) RegisterTree(model IModel, tree *sideload.RelationTree) error {
	if ds == nil {
		return errors.New("datasource is nil")
	}
	if tree == nil {
		return errors.New("tree is nil")
	}

	if ds.trees == nil {
		ds.trees = make(map[string]*sideload.RelationTree)
	}

	modelName := model.GetModelName()
	if _, exists := ds.trees[modelName]; exists {
		return errors.Errorf("the model %s already has a relation tree", modelName)
	}

	ds.trees[modelName] = tree
	return nil
}

// TreeFor returns the relation tree declared for a model.
func (ds *Datasource) TreeFor(model IModel) (*sideload.RelationTree, error) {
	if ds == nil {
		return nil, errors.New("datasource is nil")
	}

	tree, ok := ds.trees[model.GetModelName()]
	if !ok {
		return nil, errors.Errorf("the model %s has no relation tree", model.GetModelName())
	}
	return tree, nil
}

// ValidateTrees checks every registered tree for misconfigured relations. Call
// it once configuration completes to fail fast instead of at first resolution.
func (ds *Datasource) ValidateTrees() error {
	for _, tree := range ds.trees {
		if err := tree.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func RegisterDatasourceRepository[T IModel](ds *Datasource, model T, repository Repository[T]) error {
	if ds == nil || repository == nil {
		return errors.New("datasource or repository cannot be nil")
	}

	if ds.repositories == nil {
		ds.repositories = make(map[string]any)
	}

	modelName := model.GetModelName()
	if _, exists := ds.repositories[modelName]; exists {
		return errors.Errorf("a repository is already registered for model %s", modelName)
	}

	ds.repositories[modelName] = repository
	return nil
}

func GetDatasourceModelRepository[T IModel](ds *Datasource, model T) (Repository[T], error) {
	if ds == nil {
		return nil, errors.New("datasource is nil")
	}

	repository, ok := ds.repositories[model.GetModelName()]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", model.GetModelName())
	}

	if repo, ok := repository.(Repository[T]); ok {
		return repo, nil
	}
	return nil, errors.Errorf("the repository for model %s is not of the expected type", model.GetModelName())
}
