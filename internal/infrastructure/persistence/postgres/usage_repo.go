// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"manzai-script-api/internal/domain/entity"
)

// UsageRecordRepository 用量记录仓储实现
type UsageRecordRepository struct {
	client *Client
}

// NewUsageRecordRepository 创建用量记录仓储
func NewUsageRecordRepository(client *Client) *UsageRecordRepository {
	return &UsageRecordRepository{client: client}
}

// Get 根据 user_id 获取用量记录，未命中返回 (nil, nil)
func (r *UsageRecordRepository) Get(ctx context.Context, userID string) (*entity.UsageRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.Get")
	defer span.End()

	var record entity.UsageRecord
	if err := r.client.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}
	return &record, nil
}

// Save 全量 upsert 用量记录（首次写入时惰性建行）
func (r *UsageRecordRepository) Save(ctx context.Context, record *entity.UsageRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.Save")
	defer span.End()

	err := r.client.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"output_count", "paid_credits", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save usage record: %w", err)
	}
	return nil
}

// Migrate 创建 user_usage 表
func (r *UsageRecordRepository) Migrate(ctx context.Context) error {
	return r.client.db.WithContext(ctx).AutoMigrate(&entity.UsageRecord{})
}
