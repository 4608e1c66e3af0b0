package datastore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the SQL Repository used with the MySQL and Postgres drivers.
type Gorm[T any] struct {
	db *gorm.DB
}

func NewGorm[T any](db *gorm.DB) *Gorm[T] {
	return &Gorm[T]{db: db}
}

func (g *Gorm[T]) List(ctx context.Context, q Query) ([]T, error) {
	tx := g.db.WithContext(ctx).Model(new(T))
	if len(q.Filter) > 0 {
		tx = tx.Where(map[string]interface{}(q.Filter))
	}
	for _, s := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: s.Field}, Desc: s.Desc})
	}
	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (g *Gorm[T]) Get(ctx context.Context, id string) (*T, error) {
	var row T
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (g *Gorm[T]) Create(ctx context.Context, row *T) error {
	return g.db.WithContext(ctx).Create(row).Error
}

func (g *Gorm[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	row, err := g.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := g.db.WithContext(ctx).Model(row).Updates(map[string]interface{}(fields)).Error; err != nil {
			return nil, err
		}
	}
	return g.Get(ctx, id)
}

func (g *Gorm[T]) Delete(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
