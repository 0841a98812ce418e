// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"manzai-script-api/internal/domain/entity"
)

// UsageRecordRepository 用量记录仓储。
// Get 未命中时返回 (nil, nil)；Save 为全量 upsert。
type UsageRecordRepository interface {
	Get(ctx context.Context, userID string) (*entity.UsageRecord, error)
	Save(ctx context.Context, record *entity.UsageRecord) error
}
