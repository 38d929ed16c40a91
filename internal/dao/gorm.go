package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormRepository gorm实现, works on mysql, postgres and sqlite dialects
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 创建数据访问对象
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// 确保GormRepository实现了所有接口
var _ Repository = (*GormRepository)(nil)

func (d *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func (d *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// notFound maps gorm's record-not-found onto ErrNotFound, keeping both in the chain.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w: %w", what, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// DB exposes the underlying handle for migrations and health checks.
func (d *GormRepository) DB() *gorm.DB {
	return d.db
}
