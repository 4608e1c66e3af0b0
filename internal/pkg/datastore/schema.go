package datastore

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/mx-space/press/internal/models"
	"gorm.io/gorm/schema"
)

var schemaCache sync.Map

// table resolves column names of T through the GORM schema, so the non-SQL
// backends agree with the SQL one on field naming.
type table struct {
	sch *schema.Schema
}

func parseTable[T any]() table {
	var zero T
	sch, err := schema.Parse(&zero, &schemaCache, schema.NamingStrategy{})
	if err != nil {
		panic(fmt.Sprintf("datastore: parse schema of %T: %v", zero, err))
	}
	return table{sch: sch}
}

func (t table) name() string { return t.sch.Table }

func (t table) field(name string) *schema.Field {
	f := t.sch.LookUpField(name)
	if f == nil || f.DBName == "" {
		return nil
	}
	return f
}

// get reads the column value of row; pointers are dereferenced and nil pointers
// come back as nil.
func (t table) get(ctx context.Context, rv reflect.Value, name string) (any, bool) {
	f := t.field(name)
	if f == nil {
		return nil, false
	}
	v, _ := f.ValueOf(ctx, rv)
	return deref(v), true
}

func (t table) set(ctx context.Context, rv reflect.Value, name string, value any) error {
	f := t.field(name)
	if f == nil {
		return fmt.Errorf("datastore: %s has no column %q", t.name(), name)
	}
	if err := f.Set(ctx, rv, value); err != nil {
		return fmt.Errorf("datastore: set %s.%s: %w", t.name(), name, err)
	}
	return nil
}

func (t table) id(ctx context.Context, rv reflect.Value) string {
	v, _ := t.get(ctx, rv, "id")
	s, _ := v.(string)
	return s
}

// stamp fills id, created_at and updated_at the way the GORM hooks would.
func (t table) stamp(ctx context.Context, rv reflect.Value, now time.Time) error {
	if t.id(ctx, rv) == "" {
		if err := t.set(ctx, rv, "id", models.NewID()); err != nil {
			return err
		}
	}
	if v, ok := t.get(ctx, rv, "created_at"); ok {
		if ts, _ := v.(time.Time); ts.IsZero() {
			if err := t.set(ctx, rv, "created_at", now); err != nil {
				return err
			}
		}
	}
	if _, ok := t.get(ctx, rv, "updated_at"); ok {
		if err := t.set(ctx, rv, "updated_at", now); err != nil {
			return err
		}
	}
	return nil
}

// columns lists persisted columns, skipping the soft-delete marker which only the
// SQL backend understands.
func (t table) columns() []*schema.Field {
	out := make([]*schema.Field, 0, len(t.sch.Fields))
	for _, f := range t.sch.Fields {
		if f.DBName == "" || f.DBName == "deleted_at" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
