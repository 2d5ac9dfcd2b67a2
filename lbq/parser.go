package lbq

import (
	"strings"

	"github.com/go-errors/errors"
	"github.com/valyala/fastjson"
)

var filterPool fastjson.ParserPool
var includePool fastjson.ParserPool

var operators = map[string]bool{
	"eq":     true,
	"neq":    true,
	"gt":     true,
	"gte":    true,
	"lt":     true,
	"lte":    true,
	"inq":    true,
	"nin":    true,
	"and":    true,
	"or":     true,
	"like":   true,
	"nlike":  true,
	"exists": true,
} // @name Operator

// ParseFilter parses a complete LoopBack filter from JSON.
func ParseFilter(f string) (*Filter, error) {
	parser := filterPool.Get()
	defer filterPool.Put(parser)

	parsed, err := parser.Parse(f)
	if err != nil {
		return nil, errors.New("cannot parse filter")
	}
	return parseFilterValue(parsed)
}

// ParseInclude parses the include clause on its own: a comma-separated string,
// a {relation, scope} object or an array of either.
func ParseInclude(f string) ([]Include, error) {
	parser := includePool.Get()
	defer includePool.Put(parser)

	parsed, err := parser.Parse(f)
	if err != nil {
		return nil, errors.New("cannot parse includes")
	}
	return parseIncludeValue(parsed)
}

func parseFilterValue(parsed *fastjson.Value) (*Filter, error) {
	if parsed.Type() != fastjson.TypeObject {
		return nil, errors.New("invalid filter")
	}

	filter := &Filter{}

	if whereValue := parsed.Get("where"); whereValue != nil {
		where, err := parseWhereValue(whereValue)
		if err != nil {
			return nil, err
		}
		filter.Where = where
	}

	if orderValue := parsed.Get("order"); orderValue != nil {
		order, err := parseOrderValue(orderValue)
		if err != nil {
			return nil, err
		}
		filter.Order = order
	}

	if fieldsValue := parsed.Get("fields"); fieldsValue != nil {
		fields, err := parseFieldsValue(fieldsValue)
		if err != nil {
			return nil, err
		}
		filter.Fields = fields
	}

	if limitValue := parsed.Get("limit"); limitValue != nil {
		filter.Limit = limitValue.GetUint()
	}
	if skipValue := parsed.Get("skip"); skipValue != nil {
		filter.Skip = skipValue.GetUint()
	}

	if includeValue := parsed.Get("include"); includeValue != nil {
		includes, err := parseIncludeValue(includeValue)
		if err != nil {
			return nil, err
		}
		filter.Include = includes
	}

	return filter, nil
}

func parseIncludeValue(include *fastjson.Value) ([]Include, error) {
	if include == nil {
		return nil, nil
	}

	var result []Include
	switch include.Type() { //nolint:exhaustive
	case fastjson.TypeString:
		for _, relation := range strings.Split(string(include.GetStringBytes()), ",") {
			relation = strings.TrimSpace(relation)
			if relation == "" {
				continue
			}
			result = append(result, Include{Relation: relation})
		}
	case fastjson.TypeObject:
		obj, _ := include.Object()
		relationName := obj.Get("relation")
		if relationName == nil || relationName.Type() != fastjson.TypeString {
			return nil, errors.New("invalid relation name")
		}

		var scopeValue *Filter
		if scope := obj.Get("scope"); scope != nil {
			if scope.Type() != fastjson.TypeObject {
				return nil, errors.New("invalid relation scope")
			}
			parsed, err := parseFilterValue(scope)
			if err != nil {
				return nil, err
			}
			scopeValue = parsed
		}

		result = append(result, Include{
			Relation: string(relationName.GetStringBytes()),
			Scope:    scopeValue,
		})
	case fastjson.TypeArray:
		arr, _ := include.Array()
		for _, value := range arr {
			includes, err := parseIncludeValue(value)
			if err != nil {
				return nil, err
			}
			result = append(result, includes...)
		}
	default:
		return nil, errors.New("invalid include param")
	}

	return result, nil
}

func parseWhereValue(where *fastjson.Value) (Where, error) {
	if where == nil {
		return nil, nil
	}
	if where.Type() != fastjson.TypeObject {
		return nil, errors.New("invalid where filter")
	}

	obj, _ := where.Object()

	if like := obj.Get("like"); like != nil {
		return Where{"like": getRawValue(like), "options": getRawValue(obj.Get("options"))}, nil
	}
	if nlike := obj.Get("nlike"); nlike != nil {
		return Where{"nlike": getRawValue(nlike), "options": getRawValue(obj.Get("options"))}, nil
	}

	var nestedError error
	result := Where{}
	obj.Visit(func(key []byte, v *fastjson.Value) {
		keyStr := string(key)

		// Raw mongo operators never pass through from the wire
		if strings.HasPrefix(keyStr, "$") {
			nestedError = errors.Errorf("invalid use of operator or field: %s", keyStr)
			return
		}

		valueType := v.Type()

		switch {
		case keyStr == "and" || keyStr == "or":
			if valueType != fastjson.TypeArray {
				nestedError = errors.New("invalid query")
				return
			}
			andOr := AndOrCondition{}
			arr, _ := v.Array()
			for _, nested := range arr {
				cond, err := parseWhereValue(nested)
				if err != nil {
					nestedError = err
				}
				andOr = append(andOr, cond)
			}
			result[keyStr] = andOr
		case valueType == fastjson.TypeObject:
			nested, err := parseWhereValue(v)
			if err != nil {
				nestedError = err
			}
			result[keyStr] = nested
		default:
			_, isOp := operators[keyStr]
			if isOp && (keyStr == "inq" || keyStr == "nin") && valueType != fastjson.TypeArray {
				nestedError = errors.New("invalid query")
				return
			}
			value := getRawValue(v)
			if isOp {
				result[keyStr] = value
			} else {
				result[keyStr] = Where{"eq": value}
			}
		}
	})

	return result, nestedError
}

func parseOrderValue(order *fastjson.Value) ([]Order, error) {
	switch order.Type() { //nolint:exhaustive
	case fastjson.TypeString:
		parsed, err := parseOrderStr(string(order.GetStringBytes()))
		if err != nil {
			return nil, err
		}
		return []Order{parsed}, nil
	case fastjson.TypeArray:
		var result []Order
		for _, value := range order.GetArray() {
			if value.Type() != fastjson.TypeString {
				return nil, errors.New("invalid order param")
			}
			parsed, err := parseOrderStr(string(value.GetStringBytes()))
			if err != nil {
				return nil, err
			}
			result = append(result, parsed)
		}
		return result, nil
	default:
		return nil, errors.New("invalid order param")
	}
}

func parseOrderStr(orderStr string) (Order, error) {
	sort := strings.Split(strings.TrimSpace(orderStr), " ")
	if len(sort) != 2 {
		return Order{}, errors.New("invalid order param")
	}

	direction := strings.ToUpper(sort[1])
	if direction != "ASC" && direction != "DESC" {
		return Order{}, errors.New("invalid order param")
	}

	return Order{Field: sort[0], Direction: direction}, nil
}

func parseFieldsValue(v *fastjson.Value) (Fields, error) {
	fields := Fields{}
	switch v.Type() { //nolint:exhaustive
	case fastjson.TypeArray:
		for _, value := range v.GetArray() {
			if value.Type() != fastjson.TypeString {
				return nil, errors.New("invalid fields param")
			}
			fields[string(value.GetStringBytes())] = true
		}
	case fastjson.TypeObject:
		obj := v.GetObject()
		obj.Visit(func(key []byte, v *fastjson.Value) {
			switch v.Type() { //nolint:exhaustive
			case fastjson.TypeFalse:
				fields[string(key)] = false
			case fastjson.TypeTrue:
				fields[string(key)] = true
			}
		})
	default:
		return nil, errors.New("invalid fields param")
	}
	return fields, nil
}

func getRawValue(v *fastjson.Value) interface{} {
	if v == nil {
		return nil
	}
	switch v.Type() { //nolint:exhaustive
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeArray:
		var value []interface{}
		for _, current := range v.GetArray() {
			value = append(value, getRawValue(current))
		}
		return value
	default:
		return nil
	}
}
