package database

import (
	"maps"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-errors/errors"
	"github.com/xompass/vsaas-sideload/lbq"
)

const (
	FILTER_FIELD_EMPTY                    = "FILTER_FIELD_EMPTY"
	FILTER_INVALID_DIRECTION              = "FILTER_INVALID_DIRECTION"
	FILTER_WHERE_EMPTY                    = "FILTER_WHERE_EMPTY"
	FILTER_CANNOT_MIX_INCLUSION_EXCLUSION = "FILTER_CANNOT_MIX_INCLUSION_EXCLUSION"
	FILTER_WHERE_CANNOT_BE_NIL            = "FILTER_WHERE_CANNOT_BE_NIL"
)

// FilterBuilder accumulates the clauses of an lbq.Filter. Errors are carried
// and surfaced at Build time.
type FilterBuilder struct {
	where  []lbq.Where
	fields lbq.Fields
	limit  *uint
	skip   *uint
	order  []lbq.Order
	err    error
}

func NewFilter() *FilterBuilder {
	return &FilterBuilder{
		where:  []lbq.Where{},
		fields: lbq.Fields{},
		order:  []lbq.Order{},
	}
}

func (b *FilterBuilder) Fields(fields map[string]bool) *FilterBuilder {
	maps.Copy(b.fields, fields)
	return b
}

func (b *FilterBuilder) Limit(limit uint) *FilterBuilder {
	b.limit = &limit
	return b
}

func (b *FilterBuilder) Skip(skip uint) *FilterBuilder {
	b.skip = &skip
	return b
}

func (b *FilterBuilder) Page(page, size uint) *FilterBuilder {
	if page > 0 && size > 0 {
		b.Skip((page - 1) * size)
		b.Limit(size)
	}
	return b
}

// WithoutPagination drops limit and skip. Sideloaded fetches always resolve
// unpaginated: the outer query's page never applies to related collections.
func (b *FilterBuilder) WithoutPagination() *FilterBuilder {
	b.limit = nil
	b.skip = nil
	return b
}

func (b *FilterBuilder) orderBy(field string, direction string) *FilterBuilder {
	if strings.TrimSpace(field) == "" {
		b.err = errors.New(FILTER_FIELD_EMPTY)
		return b
	}
	direction = strings.ToUpper(direction)
	if direction != "ASC" && direction != "DESC" {
		b.err = errors.New(FILTER_INVALID_DIRECTION)
		return b
	}
	b.order = append(b.order, lbq.Order{Field: field, Direction: direction})
	return b
}

func (b *FilterBuilder) OrderByAsc(field string) *FilterBuilder {
	return b.orderBy(field, "ASC")
}

func (b *FilterBuilder) OrderByDesc(field string) *FilterBuilder {
	return b.orderBy(field, "DESC")
}

func (b *FilterBuilder) WithWhere(builder *WhereBuilder) *FilterBuilder {
	where, err := builder.Build()
	if err != nil {
		b.err = err
		return b
	}

	if len(where) == 0 {
		b.err = errors.New(FILTER_WHERE_EMPTY)
		return b
	}

	b.where = append(b.where, where)
	return b
}

func (b *FilterBuilder) Build() (*lbq.Filter, error) {
	if b.err != nil {
		return nil, b.err
	}

	var where lbq.Where
	if len(b.where) == 1 {
		where = b.where[0]
	} else if len(b.where) > 1 {
		where = lbq.Where{"and": lbq.AndOrCondition(b.where)}
	}

	if !isValidProjection(b.fields) {
		return nil, errors.New(FILTER_CANNOT_MIX_INCLUSION_EXCLUSION)
	}

	return &lbq.Filter{
		Where:  where,
		Fields: b.fields,
		Order:  b.order,
		Limit:  derefUint(b.limit),
		Skip:   derefUint(b.skip),
	}, nil
}

func (b *FilterBuilder) FromLBFilter(filter *lbq.Filter) *FilterBuilder {
	if filter == nil {
		return b
	}

	b.where = []lbq.Where{}
	if len(filter.Where) > 0 {
		b.where = append(b.where, filter.Where)
	}
	b.fields = filter.Fields
	if b.fields == nil {
		b.fields = lbq.Fields{}
	}
	b.order = filter.Order
	if filter.Limit > 0 {
		b.Limit(filter.Limit)
	}
	if filter.Skip > 0 {
		b.Skip(filter.Skip)
	}

	if !isValidProjection(b.fields) {
		b.err = errors.New(FILTER_CANNOT_MIX_INCLUSION_EXCLUSION)
	}
	return b
}

func (b *FilterBuilder) Clone() *FilterBuilder {
	clone := &FilterBuilder{
		where:  make([]lbq.Where, len(b.where)),
		fields: make(lbq.Fields),
		order:  make([]lbq.Order, len(b.order)),
		err:    b.err,
	}

	copy(clone.where, b.where)
	copy(clone.order, b.order)
	maps.Copy(clone.fields, b.fields)

	if b.limit != nil {
		limit := *b.limit
		clone.limit = &limit
	}
	if b.skip != nil {
		skip := *b.skip
		clone.skip = &skip
	}
	return clone
}

// MergeWith combines this builder with another and returns a new builder.
// WHERE clauses combine with AND, the other builder's order/limit/skip win
// when present, field projections must not conflict. This is the composition
// point for per-relation include scopes: the relation's base filter merged
// with the caller-supplied one.
func (b *FilterBuilder) MergeWith(other *FilterBuilder) *FilterBuilder {
	if b == nil {
		if other == nil {
			return NewFilter()
		}
		return other.Clone()
	}
	if other == nil {
		return b.Clone()
	}

	if b.err != nil {
		return &FilterBuilder{err: b.err}
	}
	if other.err != nil {
		return &FilterBuilder{err: other.err}
	}

	result := b.Clone()
	result.where = append(result.where, other.where...)

	if len(other.fields) > 0 {
		for field, otherValue := range other.fields {
			if currentValue, exists := result.fields[field]; exists && currentValue != otherValue {
				result.err = errors.Errorf("field projection conflict for '%s'", field)
				return result
			}
		}
		maps.Copy(result.fields, other.fields)

		if !isValidProjection(result.fields) {
			result.err = errors.New(FILTER_CANNOT_MIX_INCLUSION_EXCLUSION)
			return result
		}
	}

	if other.limit != nil {
		limit := *other.limit
		result.limit = &limit
	}
	if other.skip != nil {
		skip := *other.skip
		result.skip = &skip
	}
	if len(other.order) > 0 {
		result.order = make([]lbq.Order, len(other.order))
		copy(result.order, other.order)
	}
	return result
}

func (b *FilterBuilder) ToJSON() (string, error) {
	filter, err := b.Build()
	if err != nil {
		return "", err
	}
	data, err := sonic.Marshal(filter)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

/************************
 * Where Builder
 ************************/

type WhereBuilder struct {
	conditions []lbq.Where
	err        error
}

func NewWhere() *WhereBuilder {
	return &WhereBuilder{}
}

func (b *WhereBuilder) Eq(field string, value any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"eq": value}})
}

func (b *WhereBuilder) Neq(field string, value any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"neq": value}})
}

func (b *WhereBuilder) In(field string, values any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"inq": values}})
}

func (b *WhereBuilder) Nin(field string, values any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"nin": values}})
}

func (b *WhereBuilder) Gt(field string, value any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"gt": value}})
}

func (b *WhereBuilder) Gte(field string, value any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"gte": value}})
}

func (b *WhereBuilder) Lt(field string, value any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"lt": value}})
}

func (b *WhereBuilder) Lte(field string, value any) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}
	return b.Raw(lbq.Where{field: lbq.Where{"lte": value}})
}

func (b *WhereBuilder) Like(field string, pattern string, options ...string) *WhereBuilder {
	if err := validateField(field); err != nil {
		b.err = err
		return b
	}

	where := lbq.Where{"like": pattern}
	if len(options) > 0 {
		where["options"] = options[0]
	}
	return b.Raw(lbq.Where{field: where})
}

func (b *WhereBuilder) Raw(w lbq.Where) *WhereBuilder {
	if b.err != nil {
		return b
	}
	if len(w) == 0 {
		b.err = errors.New("raw where condition cannot be empty")
		return b
	}
	b.conditions = append(b.conditions, w)
	return b
}

func (b *WhereBuilder) Or(builders ...*WhereBuilder) *WhereBuilder {
	var ors []lbq.Where
	for _, sub := range builders {
		w, err := sub.Build()
		if err != nil {
			b.err = err
		}
		if len(w) > 0 {
			ors = append(ors, w)
		}
	}
	if len(ors) > 0 {
		b.conditions = append(b.conditions, lbq.Where{"or": lbq.AndOrCondition(ors)})
	}
	return b
}

func (b *WhereBuilder) And(builders ...*WhereBuilder) *WhereBuilder {
	var flat []lbq.Where
	for _, sub := range builders {
		w, err := sub.Build()
		if err != nil {
			b.err = err
			return b
		}

		// Flatten nested "and" conditions
		if inner, ok := w["and"]; ok {
			if conds, ok := inner.(lbq.AndOrCondition); ok {
				flat = append(flat, conds...)
				continue
			}
		}
		if len(w) > 0 {
			flat = append(flat, w)
		}
	}

	if len(flat) > 0 {
		b.conditions = append(b.conditions, lbq.Where{"and": lbq.AndOrCondition(flat)})
	}
	return b
}

func (b *WhereBuilder) Build() (lbq.Where, error) {
	if b == nil {
		return nil, errors.New(FILTER_WHERE_CANNOT_BE_NIL)
	}
	if b.err != nil {
		return nil, b.err
	}

	switch len(b.conditions) {
	case 0:
		return lbq.Where{}, nil
	case 1:
		return b.conditions[0], nil
	default:
		return lbq.Where{"and": lbq.AndOrCondition(b.conditions)}, nil
	}
}

func derefUint(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}

func isValidProjection(fields map[string]bool) bool {
	hasTrue := false
	hasFalse := false
	for key, val := range fields {
		if key == "_id" {
			continue
		}
		if val {
			hasTrue = true
		} else {
			hasFalse = true
		}
	}
	return !(hasTrue && hasFalse)
}

func validateField(field string) error {
	if strings.TrimSpace(field) == "" {
		return errors.New(FILTER_FIELD_EMPTY)
	}
	return nil
}
