package database

// IModel is the minimal contract for a persisted entity type.
type IModel interface {
	GetTableName() string
	GetModelName() string
	GetConnectorName() string
	GetId() any
}

// RelationalModel is a persisted model that can participate in sideloading:
// the resolver reads key attributes and writes resolved relations through the
// sideload.Record methods.
type RelationalModel interface {
	IModel
	GetAttribute(name string) any
	GetRelated(name string) any
	SetRelated(name string, value any) error
}

type BeforeCreateHook interface {
	BeforeCreate() error
}

type BeforeDeleteHook interface {
	BeforeDelete() error
}
