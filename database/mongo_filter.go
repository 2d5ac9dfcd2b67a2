package database

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/simplereach/timeutils"
	"github.com/xompass/vsaas-sideload/lbq"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var Operators = map[string]string{
	"eq":     "$eq",
	"neq":    "$ne",
	"gt":     "$gt",
	"gte":    "$gte",
	"lt":     "$lt",
	"lte":    "$lte",
	"inq":    "$in",
	"nin":    "$nin",
	"and":    "$and",
	"or":     "$or",
	"exists": "$exists",
}

type MongoFilterOptions struct {
	Limit  *uint
	Skip   *uint
	Sort   bson.D
	Fields map[string]bool
}

type MongoFilter struct {
	Where   bson.M
	Options MongoFilterOptions
}

// adaptFilter translates an lbq filter to the mongo query shape, renaming JSON
// field names to their bson counterparts through the schema.
func adaptFilter(filter lbq.Filter, schema *Schema) (MongoFilter, error) {
	result := MongoFilter{}

	where, err := buildWhere(filter.Where, "", schema.JSONFields)
	if err != nil {
		return result, err
	}
	if len(where) == 0 && len(filter.Where) != 0 {
		return result, errors.New("invalid where parameter")
	}
	result.Where = where

	result.Options.Sort = buildSort(filter.Order)
	if len(result.Options.Sort) == 0 && len(filter.Order) != 0 {
		return result, errors.New("invalid order parameter")
	}

	if filter.Limit != 0 {
		limit := filter.Limit
		result.Options.Limit = &limit
	}
	if filter.Skip != 0 {
		skip := filter.Skip
		result.Options.Skip = &skip
	}

	if len(filter.Fields) > 0 {
		projection := map[string]bool{}
		for key, val := range filter.Fields {
			if field, exists := getFieldIfExists(key, schema.JSONFields); exists {
				projection[field.BsonName] = val
			}
		}
		if len(projection) > 0 {
			result.Options.Fields = projection
		}
	}

	return result, nil
}

func buildSort(order []lbq.Order) bson.D {
	sort := bson.D{}
	for _, lbOrder := range order {
		if lbOrder.Direction == "DESC" {
			sort = append(sort, bson.E{Key: lbOrder.Field, Value: -1})
		} else {
			sort = append(sort, bson.E{Key: lbOrder.Field, Value: 1})
		}
	}
	return sort
}

func buildWhere(where lbq.Where, parentField string, fields map[string]*Field) (bson.M, error) {
	if where == nil {
		return bson.M{}, nil
	}

	query := bson.M{}

	like, hasLikeCond := where["like"]
	nLike, hasNLikeCond := where["nlike"]
	exists, hasExistsCond := where["exists"]
	opts := where["options"]

	switch {
	case hasExistsCond:
		if _, ok := exists.(bool); !ok {
			return nil, errors.New("invalid where parameter. exists must be boolean")
		}
		query["$exists"] = exists
	case hasLikeCond:
		query["$regex"] = like
		if opts != nil {
			query["$options"] = opts
		}
	case hasNLikeCond:
		regex := bson.M{"$regex": nLike}
		if opts != nil {
			regex["$options"] = opts
		}
		query["$not"] = regex
	default:
		for key, val := range where {
			if strings.HasPrefix(key, "$") {
				continue
			}

			mongoOp, isOperator := Operators[key]
			var operatorName string
			var fieldName string
			var field *Field

			if isOperator {
				operatorName = mongoOp
				if parent, exists := getFieldIfExists(parentField, fields); exists {
					field = parent
					fieldName = parent.BsonName
				}
			} else {
				// Unknown fields are skipped rather than leaked into the query
				resolved, exists := getFieldIfExists(key, fields)
				if !exists {
					continue
				}
				field = resolved
				fieldName = field.BsonName
				operatorName = fieldName
			}

			switch v := val.(type) {
			case lbq.AndOrCondition:
				arr := bson.A{}
				for _, el := range v {
					nested, err := buildWhere(el, parentField, fields)
					if err != nil {
						return bson.M{}, err
					}
					if len(nested) > 0 {
						arr = append(arr, nested)
					}
				}
				if len(arr) == 0 {
					return bson.M{}, errors.New("invalid and/or condition")
				}
				query[operatorName] = arr
			case lbq.Where:
				nested, err := buildWhere(v, key, fields)
				if err != nil {
					return bson.M{}, err
				}
				if len(nested) > 0 {
					query[fieldName] = nested
				}
			default:
				query[operatorName] = coerceValue(key, val, field)
			}
		}
	}

	return query, nil
}

// coerceValue converts query literals to the field's storage type. Bad values
// fall through untouched and simply match nothing.
func coerceValue(op string, val any, field *Field) any {
	if field == nil {
		return val
	}

	switch field.DataType {
	case DtObjectID:
		if op == "inq" || op == "nin" {
			if arr, err := getObjectIdArray(val); err == nil {
				return arr
			}
			return val
		}
		if field.IsPointer {
			if oid, err := getObjectIdOrNil(val); err == nil {
				return oid
			}
			return val
		}
		if oid, err := getObjectId(val); err == nil {
			return oid
		}
	case DtDate:
		if op == "inq" || op == "nin" {
			if arr, err := getDateArray(val); err == nil {
				return arr
			}
			return val
		}
		if field.IsPointer {
			if date, err := getDateOrNil(val); err == nil {
				return date
			}
			return val
		}
		if date, err := getDate(val); err == nil {
			return date
		}
	}
	return val
}

func getObjectIdArray(val any) ([]bson.ObjectID, error) {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice {
		return nil, errors.New("invalid objectid collection")
	}

	var arr []bson.ObjectID
	for i := 0; i < rv.Len(); i++ {
		oid, err := getObjectId(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		arr = append(arr, oid)
	}
	return arr, nil
}

func getObjectIdOrNil(val any) (*bson.ObjectID, error) {
	if val == nil {
		return nil, nil
	}
	id, err := getObjectId(val)
	return &id, err
}

func getObjectId(val any) (bson.ObjectID, error) {
	switch v := val.(type) {
	case string:
		return bson.ObjectIDFromHex(v)
	case *string:
		return bson.ObjectIDFromHex(*v)
	case bson.ObjectID:
		return v, nil
	case *bson.ObjectID:
		if v == nil {
			return bson.ObjectID{}, errors.New("invalid ObjectID")
		}
		return *v, nil
	default:
		return bson.ObjectID{}, errors.New("invalid ObjectID")
	}
}

func getDateArray(val any) ([]time.Time, error) {
	valArr, ok := val.([]any)
	if !ok {
		return nil, errors.New("invalid date collection")
	}

	var arr []time.Time
	for _, s := range valArr {
		date, err := getDate(s)
		if err != nil {
			return nil, err
		}
		arr = append(arr, date)
	}
	return arr, nil
}

func getDateOrNil(val any) (*time.Time, error) {
	if val == nil {
		return nil, nil
	}
	value, err := getDate(val)
	return &value, err
}

func getDate(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		return *v, nil
	case string:
		return timeutils.ParseDateString(v)
	case *string:
		return timeutils.ParseDateString(*v)
	case int64:
		return time.Unix(v, 0), nil
	case float64:
		return time.Unix(int64(v), 0), nil
	default:
		return time.Time{}, errors.New("invalid date format")
	}
}

// getFieldIfExists resolves a possibly dotted field path, falling back to the
// nearest declared ancestor for paths into schemaless subdocuments.
func getFieldIfExists(fieldName string, fields map[string]*Field) (*Field, bool) {
	if field, exists := fields[fieldName]; exists {
		return field, true
	}

	parentField := fieldName
	for {
		lastDotIndex := strings.LastIndex(parentField, ".")
		if lastDotIndex == -1 {
			return nil, false
		}
		parentField = parentField[0:lastDotIndex]
		if field, exists := fields[parentField]; exists {
			return field, true
		}
	}
}
