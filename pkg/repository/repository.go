package repository

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/pkg/db/option"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository is the generic store every service builds on. FindOne returns
// (nil, nil) when no row matches.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, entity *T) error
	BatchCreate(ctx context.Context, entities []*T) error
	Update(ctx context.Context, id any, updates map[string]any) error
	UpdateWhere(ctx context.Context, updates map[string]any, opts ...option.QueryOption) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	Sum(ctx context.Context, column string, query *T, opts ...option.QueryOption) (decimal.Decimal, error)
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) query(ctx context.Context, query *T, opts []option.QueryOption) (*gorm.DB, error) {
	if s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	tx := s.db.WithContext(ctx).Model(new(T))
	if query != nil {
		tx = tx.Where(query)
	}
	for _, opt := range opts {
		tx = opt(tx)
	}
	return tx, nil
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	tx, err := s.query(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var out []*T
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	tx, err := s.query(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var out T
	if err := tx.Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (s *store[T]) Create(ctx context.Context, entity *T) error {
	if s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.WithContext(ctx).Create(entity).Error
}

func (s *store[T]) BatchCreate(ctx context.Context, entities []*T) error {
	if s.db == nil {
		return gorm.ErrInvalidDB
	}
	if len(entities) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(entities, 100).Error
}

func (s *store[T]) Update(ctx context.Context, id any, updates map[string]any) error {
	if s.db == nil {
		return gorm.ErrInvalidDB
	}
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateWhere applies updates to every row matched by opts and reports how
// many rows changed. Callers use the count to detect lost races.
func (s *store[T]) UpdateWhere(ctx context.Context, updates map[string]any, opts ...option.QueryOption) (int64, error) {
	if len(opts) == 0 {
		return 0, fmt.Errorf("refusing unconditional update")
	}
	tx, err := s.query(ctx, nil, opts)
	if err != nil {
		return 0, err
	}
	res := tx.Updates(updates)
	return res.RowsAffected, res.Error
}

func (s *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	tx, err := s.query(ctx, query, opts)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *store[T]) Sum(ctx context.Context, column string, query *T, opts ...option.QueryOption) (decimal.Decimal, error) {
	tx, err := s.query(ctx, query, opts)
	if err != nil {
		return decimal.Zero, err
	}

	var out struct {
		Total decimal.Decimal
	}
	if err := tx.Select(fmt.Sprintf("COALESCE(SUM(%s), 0) AS total", column)).Scan(&out).Error; err != nil {
		return decimal.Zero, err
	}
	return out.Total, nil
}
