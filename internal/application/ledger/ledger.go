// Package ledger 实现后付费的用量账本：
// 生成前只校验资格，生成成功后才扣费，失败路径绝不扣费。
package ledger

import (
	"context"
	"sync"
	"time"

	"manzai-script-api/internal/domain/entity"
	"manzai-script-api/internal/domain/repository"
	perrors "manzai-script-api/pkg/errors"
	"manzai-script-api/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("ledger")

// Ledger 用量账本服务。
// 写路径（Charge/AddCredits）按用户串行化，避免同进程内的丢失更新；
// 跨进程的读改写竞态由上层以单实例部署约束接受。
type Ledger struct {
	repo      repository.UsageRecordRepository
	freeQuota int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New 创建账本服务
func New(repo repository.UsageRecordRepository, freeQuota int) *Ledger {
	return &Ledger{
		repo:      repo,
		freeQuota: freeQuota,
		locks:     make(map[string]*sync.Mutex),
	}
}

// FreeQuota 返回免费额度
func (l *Ledger) FreeQuota() int {
	return l.freeQuota
}

// userLock 返回用户粒度的互斥锁
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[userID] = lk
	}
	return lk
}

// CheckEligibility 生成前的资格校验，无副作用。
// 未知用户（无记录）按全新额度放行；未指定 userID 视为不计量，直接放行。
func (l *Ledger) CheckEligibility(ctx context.Context, userID string) (bool, *entity.UsageRecord, error) {
	ctx, span := tracer.Start(ctx, "ledger.CheckEligibility")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	if userID == "" {
		return true, nil, nil
	}

	rec, err := l.repo.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return false, nil, perrors.Wrap(err, perrors.CodeStoreError, "usage store unavailable")
	}

	ok := rec.Eligible(l.freeQuota)
	if !ok {
		metrics.CreditGateRejectsTotal.Inc()
	}
	span.SetAttributes(attribute.Bool("ledger.eligible", ok))
	return ok, rec, nil
}

// Charge 生成成功后执行一次扣费。
// 免费额度未用尽时走免费桶（仅累加次数）；
// 否则有付费积分时走付费桶（累加次数并扣减积分）；
// 两者皆无时不做任何写入，返回 ChargeNone。
func (l *Ledger) Charge(ctx context.Context, userID string) (entity.ChargeOutcome, error) {
	ctx, span := tracer.Start(ctx, "ledger.Charge")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	if userID == "" {
		return entity.ChargeNone, nil
	}

	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	rec, err := l.repo.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return entity.ChargeNone, perrors.Wrap(err, perrors.CodeStoreError, "usage store unavailable")
	}
	if rec == nil {
		rec = entity.NewUsageRecord(userID)
	}

	outcome := entity.ChargeNone
	switch {
	case rec.OutputCount < l.freeQuota:
		rec.OutputCount++
		outcome = entity.ChargeFree
	case rec.PaidCredits > 0:
		rec.OutputCount++
		rec.PaidCredits--
		outcome = entity.ChargePaid
	default:
		span.SetAttributes(attribute.String("ledger.outcome", string(outcome)))
		metrics.CreditChargesTotal.WithLabelValues(string(outcome)).Inc()
		return outcome, nil
	}

	rec.UpdatedAt = time.Now()
	if err := l.repo.Save(ctx, rec); err != nil {
		span.RecordError(err)
		return entity.ChargeNone, perrors.Wrap(err, perrors.CodeStoreError, "usage store unavailable")
	}

	span.SetAttributes(attribute.String("ledger.outcome", string(outcome)))
	metrics.CreditChargesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

// AddCredits 充值付费积分，delta 必须为正。
// 返回充值后的积分余额。
func (l *Ledger) AddCredits(ctx context.Context, userID string, delta int) (int, error) {
	ctx, span := tracer.Start(ctx, "ledger.AddCredits")
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("ledger.delta", delta),
	)
	defer span.End()

	if userID == "" {
		return 0, perrors.New(perrors.CodeInvalidParam, "user_id is required")
	}
	if delta <= 0 {
		return 0, perrors.New(perrors.CodeInvalidParam, "delta must be positive")
	}

	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	rec, err := l.repo.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, perrors.Wrap(err, perrors.CodeStoreError, "usage store unavailable")
	}
	if rec == nil {
		rec = entity.NewUsageRecord(userID)
	}

	rec.PaidCredits += delta
	rec.UpdatedAt = time.Now()
	if err := l.repo.Save(ctx, rec); err != nil {
		span.RecordError(err)
		return 0, perrors.Wrap(err, perrors.CodeStoreError, "usage store unavailable")
	}

	return rec.PaidCredits, nil
}

// Snapshot 读取用户当前用量，不存在的用户返回 nil
func (l *Ledger) Snapshot(ctx context.Context, userID string) (*entity.UsageRecord, error) {
	if userID == "" {
		return nil, nil
	}
	rec, err := l.repo.Get(ctx, userID)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeStoreError, "usage store unavailable")
	}
	return rec, nil
}
