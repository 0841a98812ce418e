package script

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	perrors "manzai-script-api/pkg/errors"
	"manzai-script-api/pkg/logger"
	"manzai-script-api/pkg/metrics"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var engineTracer = otel.Tracer("script.engine")

const (
	// continuationThreshold 正文距目标字数不足此值时触发一次续写
	continuationThreshold = 30
	// tokenHardCap 单次调用的 token 上限
	tokenHardCap = 8192

	mainTemperature         float32 = 0
	continuationTemperature float32 = 0.1
)

// ChatModelFactory 按名称提供 ChatModel 客户端
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Result 一次生成的最终产物
type Result struct {
	Title      string
	Body       string
	Band       LengthBand
	Techniques []string
	Structure  []string
	ActualLen  int
	// Accepted 为 false 表示正文低于目标字数 90%，不得扣费
	Accepted bool
	Reason   string
}

// Engine 长度收敛引擎：主调用一次，必要时续写一次，
// 每次模型输出都经过同一套整形流水线，最终收敛到 ±10% 区间。
type Engine struct {
	factory  ChatModelFactory
	provider string
	model    string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEngine 创建引擎。rng 为 nil 时使用时间种子。
func NewEngine(factory ChatModelFactory, provider, modelName string, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		factory:  factory,
		provider: provider,
		model:    modelName,
		rng:      rng,
	}
}

// Generate 执行一次完整的台本生成。
// 失败路径（上游错误、空正文）不产生任何可计费结果；
// 低于 90% 下限时返回 Accepted=false 的结果而非错误。
func (e *Engine) Generate(ctx context.Context, brief *GenerationBrief) (*Result, error) {
	ctx, span := engineTracer.Start(ctx, "engine.Generate")
	span.SetAttributes(
		attribute.Int("script.target_length", brief.Band.TargetLen),
		attribute.String("script.lang", brief.LangCode),
	)
	defer span.End()

	start := time.Now()
	bundle := e.composePrompt(brief)
	band := brief.Band

	cm, err := e.factory.Get(ctx, e.provider)
	if err != nil {
		span.RecordError(err)
		return nil, perrors.Wrap(err, perrors.CodeLLMProviderError, "LLM provider unavailable")
	}

	messages := []*schema.Message{
		schema.SystemMessage(bundle.SystemLines[0]),
		schema.SystemMessage(bundle.SystemLines[1]),
		schema.UserMessage(bundle.Prompt),
	}

	raw, err := e.callModel(ctx, cm, messages, mainTemperature, mainTokenCap(band.MaxLen))
	if err != nil {
		metrics.ScriptGenerationTotal.WithLabelValues("upstream_error").Inc()
		span.RecordError(err)
		return nil, perrors.Wrap(err, perrors.CodeLLMProviderError, "completion request failed")
	}

	title, body := SplitTitleAndBody(raw)

	// 整形顺序固定：清理 → 冒号归一 → 台词空行 → 收尾台词
	body = EnforceCharLimit(body, band.MinLen, math.MaxInt, true)
	if strings.TrimSpace(body) == "" {
		// 收尾台词强制追加前判空，否则空输出会被伪装成只有一句收尾
		metrics.ScriptGenerationTotal.WithLabelValues("empty").Inc()
		return nil, perrors.New(perrors.CodeEmptyOutput, "empty output")
	}
	body = NormalizeSpeakerColons(body)
	body = EnsureBlankLineBetweenTurns(body)
	body = EnsureTsukkomiOutro(body, bundle.TsukkomiName)

	// 距目标字数不足 30 字以上时补一次续写，失败则保留续写前的正文
	deficit := band.TargetLen - RuneLen(body)
	if deficit >= continuationThreshold {
		extended, contErr := e.generateContinuation(ctx, cm, body, deficit, bundle.TsukkomiName)
		if contErr != nil {
			metrics.ScriptContinuationTotal.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "continuation failed", "error", contErr.Error(), "deficit", deficit)
		} else {
			metrics.ScriptContinuationTotal.WithLabelValues("ok").Inc()
			body = NormalizeSpeakerColons(extended)
			body = EnsureBlankLineBetweenTurns(body)
			body = EnsureTsukkomiOutro(body, bundle.TsukkomiName)
		}
	}

	// 最终收敛到 ±10% 区间
	body = EnforceCharLimit(body, band.MinLen, band.MaxLen, false)

	if strings.TrimSpace(body) == "" {
		metrics.ScriptGenerationTotal.WithLabelValues("empty").Inc()
		return nil, perrors.New(perrors.CodeEmptyOutput, "empty output")
	}

	actual := RuneLen(body)
	res := &Result{
		Title:      title,
		Body:       body,
		Band:       band,
		Techniques: bundle.Plan.Techniques,
		Structure:  bundle.Plan.Structure,
		ActualLen:  actual,
		Accepted:   true,
	}
	if actual < band.AcceptFloor() {
		res.Accepted = false
		res.Reason = "below_90_percent"
		metrics.ScriptGenerationTotal.WithLabelValues("below_floor").Inc()
	} else {
		metrics.ScriptGenerationTotal.WithLabelValues("accepted").Inc()
	}

	metrics.ScriptGenerationDuration.WithLabelValues(brief.LangCode).Observe(time.Since(start).Seconds())
	metrics.ScriptCharCount.WithLabelValues(brief.LangCode).Observe(float64(actual))
	span.SetAttributes(
		attribute.Int("script.actual_length", actual),
		attribute.Bool("script.accepted", res.Accepted),
	)
	return res, nil
}

// composePrompt 串行化随机源后组装提示词
func (e *Engine) composePrompt(brief *GenerationBrief) *PromptBundle {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return ComposePrompt(brief, e.rng)
}

// generateContinuation 在既有正文之后续写不足的部分。
// seed 去掉收尾台词后作为上文传入，返回拼接后的完整正文。
func (e *Engine) generateContinuation(ctx context.Context, cm model.BaseChatModel, baseBody string, remaining int, tsukkomiName string) (string, error) {
	ctx, span := engineTracer.Start(ctx, "engine.Continuation")
	span.SetAttributes(attribute.Int("script.deficit", remaining))
	defer span.End()

	seed := strings.TrimRight(baseBody, " \t\r\n")
	seed = strings.TrimSpace(strings.TrimSuffix(seed, Outro(tsukkomiName)))

	messages := []*schema.Message{
		schema.SystemMessage(ContinuationSystemLine),
		schema.UserMessage(ComposeContinuationPrompt(seed, remaining, tsukkomiName)),
	}

	cont, err := e.callModel(ctx, cm, messages, continuationTemperature, continuationTokenCap(remaining))
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	cont = NormalizeSpeakerColons(strings.TrimSpace(cont))
	cont = EnsureBlankLineBetweenTurns(cont)
	cont = EnsureTsukkomiOutro(cont, tsukkomiName)
	return strings.TrimSpace(seed + "\n" + cont), nil
}

// callModel 单次模型调用，统一打点
func (e *Engine) callModel(ctx context.Context, cm model.BaseChatModel, messages []*schema.Message, temperature float32, maxTokens int) (string, error) {
	start := time.Now()
	out, err := cm.Generate(ctx, messages,
		model.WithTemperature(temperature),
		model.WithMaxTokens(maxTokens),
	)
	metrics.LLMCallDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		return "", err
	}
	metrics.LLMCallTotal.WithLabelValues(e.provider, e.model, "ok").Inc()
	return strings.TrimSpace(out.Content), nil
}

// mainTokenCap 主调用 token 上限：与目标上限字数成比例，封顶 8192
func mainTokenCap(maxLen int) int {
	base := maxLen * 2
	if base < 3500 {
		base = 3500
	}
	if limit := base * 3; limit < tokenHardCap {
		return limit
	}
	return tokenHardCap
}

// continuationTokenCap 续写调用 token 上限
func continuationTokenCap(remaining int) int {
	base := remaining * 2
	if base < 400 {
		base = 400
	}
	if limit := base * 3; limit < tokenHardCap {
		return limit
	}
	return tokenHardCap
}
