package database

import (
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	DtObjectID = "ObjectID"
	DtDate     = "Date"
)

type Field struct {
	FieldName string
	BsonName  string
	JsonName  string
	DataType  string
	IsPointer bool
}

// Schema maps a model's JSON field names to their storage representation. The
// filter translation layer uses it to rename fields and coerce ObjectID/date
// values coming from queries.
type Schema struct {
	Model          IModel
	Name           string
	CollectionName string
	JSONFields     map[string]*Field
}

func NewSchema(model IModel) *Schema {
	schema := &Schema{
		Model:          model,
		Name:           model.GetModelName(),
		CollectionName: model.GetTableName(),
		JSONFields:     map[string]*Field{},
	}

	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		schema.initFields(t, "", "")
	}
	return schema
}

func (s *Schema) initFields(t reflect.Type, jsonPrefix string, bsonPrefix string) {
	for i := range t.NumField() {
		structField := t.Field(i)
		if !structField.IsExported() {
			continue
		}

		jsonName := tagName(structField.Tag.Get("json"), structField.Name)
		bsonName := tagName(structField.Tag.Get("bson"), strings.ToLower(structField.Name))
		if jsonName == "-" || bsonName == "-" {
			continue
		}

		fieldType := structField.Type
		isPointer := fieldType.Kind() == reflect.Pointer
		if isPointer {
			fieldType = fieldType.Elem()
		}

		jsonPath := joinPath(jsonPrefix, jsonName)
		bsonPath := joinPath(bsonPrefix, bsonName)

		if fieldType.Kind() == reflect.Struct && dataTypeOf(fieldType) == "" {
			// Embedded documents expose their leaves as dotted paths
			s.initFields(fieldType, jsonPath, bsonPath)
			continue
		}

		s.JSONFields[jsonPath] = &Field{
			FieldName: structField.Name,
			BsonName:  bsonPath,
			JsonName:  jsonPath,
			DataType:  dataTypeOf(fieldType),
			IsPointer: isPointer,
		}
	}
}

func dataTypeOf(t reflect.Type) string {
	switch t {
	case reflect.TypeOf(bson.ObjectID{}):
		return DtObjectID
	case reflect.TypeOf(time.Time{}):
		return DtDate
	}
	return ""
}

func tagName(tag string, fallback string) string {
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return fallback
	}
	return name
}

func joinPath(prefix string, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
