package datastore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Repository. It backs the "memory" database driver
// used for local development and the service tests.
type Memory[T any] struct {
	mu    sync.RWMutex
	tbl   table
	rows  map[string]*T
	order []string
	now   func() time.Time
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		tbl:  parseTable[T](),
		rows: make(map[string]*T),
		now:  time.Now,
	}
}

func (m *Memory[T]) List(ctx context.Context, q Query) ([]T, error) {
	for field := range q.Filter {
		if m.tbl.field(field) == nil {
			return nil, fmt.Errorf("datastore: %s has no column %q", m.tbl.name(), field)
		}
	}

	m.mu.RLock()
	out := make([]T, 0, len(m.rows))
	for _, id := range m.order {
		row, ok := m.rows[id]
		if !ok {
			continue
		}
		if m.matches(ctx, row, q.Filter) {
			out = append(out, *row)
		}
	}
	m.mu.RUnlock()

	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := reflect.ValueOf(&out[i]), reflect.ValueOf(&out[j])
			for _, s := range q.Order {
				av, _ := m.tbl.get(ctx, a, s.Field)
				bv, _ := m.tbl.get(ctx, b, s.Field)
				c := compareValues(av, bv)
				if c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	return out, nil
}

func (m *Memory[T]) Get(_ context.Context, id string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *Memory[T]) Create(ctx context.Context, row *T) error {
	rv := reflect.ValueOf(row)
	if err := m.tbl.stamp(ctx, rv, m.now()); err != nil {
		return err
	}
	id := m.tbl.id(ctx, rv)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[id]; exists {
		return fmt.Errorf("datastore: duplicate id %q in %s", id, m.tbl.name())
	}
	cp := *row
	m.rows[id] = &cp
	m.order = append(m.order, id)
	return nil
}

func (m *Memory[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	rv := reflect.ValueOf(&cp)
	for name, value := range fields {
		if err := m.tbl.set(ctx, rv, name, value); err != nil {
			return nil, err
		}
	}
	if _, ok := m.tbl.get(ctx, rv, "updated_at"); ok {
		if err := m.tbl.set(ctx, rv, "updated_at", m.now()); err != nil {
			return nil, err
		}
	}
	m.rows[id] = &cp
	out := cp
	return &out, nil
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory[T]) matches(ctx context.Context, row *T, filter map[string]any) bool {
	rv := reflect.ValueOf(row)
	for field, want := range filter {
		got, _ := m.tbl.get(ctx, rv, field)
		if !equalValues(got, deref(want)) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders the column types the models use; nil sorts first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	ar, br := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case ar.CanInt() && br.CanInt():
		return cmpOrdered(ar.Int(), br.Int())
	case ar.CanUint() && br.CanUint():
		return cmpOrdered(ar.Uint(), br.Uint())
	case ar.CanFloat() && br.CanFloat():
		return cmpOrdered(ar.Float(), br.Float())
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[N int64 | uint64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
