package datastore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores each entity type in the collection named after its SQL table.
// Documents are keyed by column name with "id" mapped to "_id".
type Mongo[T any] struct {
	coll *mongo.Collection
	tbl  table
	now  func() time.Time
}

func NewMongo[T any](db *mongo.Database) *Mongo[T] {
	tbl := parseTable[T]()
	return &Mongo[T]{coll: db.Collection(tbl.name()), tbl: tbl, now: time.Now}
}

func (m *Mongo[T]) List(ctx context.Context, q Query) ([]T, error) {
	filter := bson.M{}
	for k, v := range q.Filter {
		filter[mongoKey(k)] = deref(v)
	}
	opts := options.Find()
	if len(q.Order) > 0 {
		sortDoc := bson.D{}
		for _, s := range q.Order {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: mongoKey(s.Field), Value: dir})
		}
		opts.SetSort(sortDoc)
	}

	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []T
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		row, err := m.fromDoc(ctx, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, cur.Err()
}

func (m *Mongo[T]) Get(ctx context.Context, id string) (*T, error) {
	var doc bson.M
	if err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.fromDoc(ctx, doc)
}

func (m *Mongo[T]) Create(ctx context.Context, row *T) error {
	rv := reflect.ValueOf(row)
	if err := m.tbl.stamp(ctx, rv, m.now()); err != nil {
		return err
	}
	doc := bson.M{}
	for _, f := range m.tbl.columns() {
		v, _ := f.ValueOf(ctx, rv)
		doc[mongoKey(f.DBName)] = v
	}
	_, err := m.coll.InsertOne(ctx, doc)
	return err
}

func (m *Mongo[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	set := bson.M{}
	for k, v := range fields {
		if m.tbl.field(k) == nil {
			return nil, fmt.Errorf("datastore: %s has no column %q", m.tbl.name(), k)
		}
		set[mongoKey(k)] = v
	}
	if m.tbl.field("updated_at") != nil {
		set["updated_at"] = m.now()
	}

	var doc bson.M
	err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.fromDoc(ctx, doc)
}

func (m *Mongo[T]) Delete(ctx context.Context, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo[T]) fromDoc(ctx context.Context, doc bson.M) (*T, error) {
	row := new(T)
	rv := reflect.ValueOf(row)
	for k, v := range doc {
		name := k
		if k == "_id" {
			name = "id"
		}
		if m.tbl.field(name) == nil {
			continue
		}
		if err := m.tbl.set(ctx, rv, name, fromBSON(v)); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func mongoKey(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

// fromBSON converts driver-specific decode types into plain Go values the GORM
// field setters accept.
func fromBSON(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time()
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = fromBSON(item)
		}
		return out
	case int32:
		return int64(val)
	default:
		return v
	}
}
