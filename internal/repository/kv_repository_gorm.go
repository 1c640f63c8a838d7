package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/alumni-portal-client/internal/domain"
	"github.com/sandeepkv93/alumni-portal-client/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var keyColumn = clause.Column{Name: "key"}

type GormKeyValueRepository struct{ db *gorm.DB }

func NewGormKeyValueRepository(db *gorm.DB) *GormKeyValueRepository {
	return &GormKeyValueRepository{db: db}
}

func (r *GormKeyValueRepository) Get(ctx context.Context, key string) (string, error) {
	var rec domain.StoredRecord
	err := r.db.WithContext(ctx).Where(clause.Eq{Column: keyColumn, Value: key}).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordStorageOperation(ctx, "gorm", "get", "miss")
			return "", ErrKeyNotFound
		}
		observability.RecordStorageOperation(ctx, "gorm", "get", "error")
		return "", err
	}
	observability.RecordStorageOperation(ctx, "gorm", "get", "hit")
	return rec.Value, nil
}

func (r *GormKeyValueRepository) Set(ctx context.Context, key, value string) error {
	rec := domain.StoredRecord{Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{keyColumn},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		observability.RecordStorageOperation(ctx, "gorm", "set", "error")
		return err
	}
	observability.RecordStorageOperation(ctx, "gorm", "set", "success")
	return nil
}

func (r *GormKeyValueRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		values = append(values, k)
	}
	err := r.db.WithContext(ctx).Where(clause.IN{Column: keyColumn, Values: values}).Delete(&domain.StoredRecord{}).Error
	if err != nil {
		observability.RecordStorageOperation(ctx, "gorm", "delete", "error")
		return err
	}
	observability.RecordStorageOperation(ctx, "gorm", "delete", "success")
	return nil
}

func (r *GormKeyValueRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
