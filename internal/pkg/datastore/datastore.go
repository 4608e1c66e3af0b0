// Package datastore is the data-access capability the content services are built on.
// Every backend addresses fields by their GORM column name ("article_id", "url"), so a
// service written against Repository runs unchanged on MySQL, Postgres, Mongo or memory.
package datastore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get, Update and Delete when no row has the given id.
var ErrNotFound = errors.New("datastore: record not found")

// Sort orders a List by one column.
type Sort struct {
	Field string
	Desc  bool
}

// Query narrows a List. Filter holds equality predicates only; a nil value matches NULL.
type Query struct {
	Filter map[string]any
	Order  []Sort
}

// Where starts a query with a single equality predicate.
func Where(field string, value any) Query {
	return Query{Filter: map[string]any{field: value}}
}

// And returns a copy of q with one more equality predicate.
func (q Query) And(field string, value any) Query {
	filter := make(map[string]any, len(q.Filter)+1)
	for k, v := range q.Filter {
		filter[k] = v
	}
	filter[field] = value
	q.Filter = filter
	return q
}

// OrderBy returns a copy of q with an extra sort column.
func (q Query) OrderBy(field string, desc bool) Query {
	order := make([]Sort, 0, len(q.Order)+1)
	order = append(order, q.Order...)
	q.Order = append(order, Sort{Field: field, Desc: desc})
	return q
}

// Repository is the generic CRUD surface over one entity type.
type Repository[T any] interface {
	List(ctx context.Context, q Query) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, row *T) error
	Update(ctx context.Context, id string, fields map[string]any) (*T, error)
	Delete(ctx context.Context, id string) error
}
