// Package lbq holds the LoopBack-style query types consumed by the sideload
// pipeline: filters with where/order/fields/limit/skip clauses and nested
// include directives, plus their JSON parsing.
package lbq

type AndOrCondition []Where

type Where map[string]interface{} // @name Where

type Fields map[string]bool // @name Fields

type Order struct {
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty"`
} // @name Order

type Filter struct {
	Fields  Fields    `json:"fields,omitempty"`
	Limit   uint      `json:"limit,omitempty"`
	Order   []Order   `json:"order,omitempty"`
	Skip    uint      `json:"skip,omitempty"`
	Where   Where     `json:"where,omitempty"`
	Include []Include `json:"include,omitempty"`
} // @name Filter

// Include is the wire form of one requested relation: its name plus an
// optional scope filtering the related records. Nested includes live inside
// the scope.
type Include struct {
	Relation string  `json:"relation,omitempty"`
	Scope    *Filter `json:"scope,omitempty"`
} // @name Include
