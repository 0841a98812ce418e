// Package entity 定义领域实体
package entity

import "time"

// ChargeOutcome 标记一次成功生成从哪个余额桶扣费
type ChargeOutcome string

const (
	// ChargeFree 扣免费额度
	ChargeFree ChargeOutcome = "free"
	// ChargePaid 扣付费点数
	ChargePaid ChargeOutcome = "paid"
	// ChargeNone 两个桶都不可用，未扣费（正常情况下被前置校验拦截）
	ChargeNone ChargeOutcome = "none"
)

// UsageRecord 用户用量记录。
// 每个 user_id 一行；首次写入时惰性创建，缺失视为全零。
type UsageRecord struct {
	UserID string `json:"user_id" gorm:"type:varchar(128);primaryKey"`
	// OutputCount 累计消费次数（免费+付费）
	OutputCount int `json:"output_count" gorm:"not null;default:0"`
	// PaidCredits 剩余付费点数
	PaidCredits int       `json:"paid_credits" gorm:"not null;default:0"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string {
	return "user_usage"
}

// NewUsageRecord 创建全零用量记录
func NewUsageRecord(userID string) *UsageRecord {
	return &UsageRecord{
		UserID:    userID,
		UpdatedAt: time.Now(),
	}
}

// Eligible 判断在给定免费额度下是否还能生成
func (r *UsageRecord) Eligible(freeQuota int) bool {
	if r == nil {
		return true
	}
	return r.OutputCount < freeQuota || r.PaidCredits > 0
}
