package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	perrors "manzai-script-api/pkg/errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel 按脚本顺序返回应答
type fakeChatModel struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	inputs    [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.inputs = append(f.inputs, input)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return &schema.Message{Role: schema.Assistant, Content: f.responses[i]}, nil
	}
	return nil, errors.New("no scripted response")
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	cm  model.BaseChatModel
	err error
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.cm, f.err
}

// scriptTurns 生成 n 条各 29 字的台词，以空行分隔
func scriptTurns(n int) string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		speaker := "A"
		if i%2 == 1 {
			speaker = "B"
		}
		lines = append(lines, speaker+": "+strings.Repeat("あ", 25)+"。")
	}
	return strings.Join(lines, "\n\n")
}

func newTestEngine(cm model.BaseChatModel) *Engine {
	return NewEngine(&fakeFactory{cm: cm}, "xai", "grok-4-fast-reasoning", testRNG())
}

func TestEngineGenerateAccepted(t *testing.T) {
	// 10 ターン + 落ち行 = 330 字、目標 350 の ±10% 圏内
	body := scriptTurns(10) + "\n\n" + Outro("花子")
	fake := &fakeChatModel{responses: []string{"【題名】\n\n" + body}}

	eng := newTestEngine(fake)
	res, err := eng.Generate(context.Background(), testBrief(TechniqueSelection{}))
	require.NoError(t, err)

	assert.Equal(t, "題名", res.Title)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Reason)
	assert.GreaterOrEqual(t, res.ActualLen, res.Band.MinLen)
	assert.LessOrEqual(t, res.ActualLen, res.Band.MaxLen)

	// 不足 30 字未満なので追記呼び出しは起きない
	assert.Equal(t, 1, fake.calls)
	require.Len(t, fake.inputs, 1)
	assert.Len(t, fake.inputs[0], 3)
	assert.Equal(t, schema.System, fake.inputs[0][0].Role)
	assert.Equal(t, schema.User, fake.inputs[0][2].Role)
}

func TestEngineGenerateTriggersSingleContinuation(t *testing.T) {
	// 318 字：下限 315 は満たすが不足 32 で追記が走る
	short := scriptTurns(9) + "\n\n" +
		"A: " + strings.Repeat("い", 13) + "。" + "\n\n" + Outro("花子")
	cont := scriptTurns(2)
	fake := &fakeChatModel{responses: []string{"【題名】\n\n" + short, cont}}

	eng := newTestEngine(fake)
	res, err := eng.Generate(context.Background(), testBrief(TechniqueSelection{}))
	require.NoError(t, err)

	// 追記はちょうど 1 回
	assert.Equal(t, 2, fake.calls)
	require.Len(t, fake.inputs, 2)
	assert.Len(t, fake.inputs[1], 2)

	// 落ち行はシード（Previous text 以降）から取り除かれている
	parts := strings.SplitN(fake.inputs[1][1].Content, "【Previous text】", 2)
	require.Len(t, parts, 2)
	assert.NotContains(t, parts[1], ClosingLine)

	assert.True(t, res.Accepted)
	assert.GreaterOrEqual(t, res.ActualLen, res.Band.MinLen)
	assert.LessOrEqual(t, res.ActualLen, res.Band.MaxLen)
	assert.True(t, strings.HasSuffix(res.Body, Outro("花子")))
}

func TestEngineGenerateContinuationFailureKeepsBase(t *testing.T) {
	short := scriptTurns(4) + "\n\n" + Outro("花子")
	fake := &fakeChatModel{
		responses: []string{"【題名】\n\n" + short, ""},
		errs:      []error{nil, errors.New("upstream timeout")},
	}

	eng := newTestEngine(fake)
	res, err := eng.Generate(context.Background(), testBrief(TechniqueSelection{}))
	require.NoError(t, err)

	// 追記失敗時は追記前の本文のまま、90% 未満なので非課金
	assert.Equal(t, 2, fake.calls)
	assert.False(t, res.Accepted)
	assert.Equal(t, "below_90_percent", res.Reason)
	assert.Less(t, res.ActualLen, res.Band.AcceptFloor())
	assert.Contains(t, res.Body, Outro("花子"))
}

func TestEngineGenerateEmptyOutput(t *testing.T) {
	fake := &fakeChatModel{responses: []string{""}}

	eng := newTestEngine(fake)
	res, err := eng.Generate(context.Background(), testBrief(TechniqueSelection{}))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, perrors.CodeEmptyOutput, perrors.AsAppError(err).Code)
	assert.Equal(t, 1, fake.calls)
}

func TestEngineGenerateUpstreamError(t *testing.T) {
	fake := &fakeChatModel{errs: []error{errors.New("api down")}}

	eng := newTestEngine(fake)
	res, err := eng.Generate(context.Background(), testBrief(TechniqueSelection{}))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, perrors.CodeLLMProviderError, perrors.AsAppError(err).Code)
}

func TestEngineGenerateFactoryError(t *testing.T) {
	eng := NewEngine(&fakeFactory{err: fmt.Errorf("provider missing")}, "xai", "m", testRNG())
	_, err := eng.Generate(context.Background(), testBrief(TechniqueSelection{}))
	require.Error(t, err)
	assert.Equal(t, perrors.CodeLLMProviderError, perrors.AsAppError(err).Code)
}

func TestTokenCaps(t *testing.T) {
	// 下限 3500*3、上限 8192
	assert.Equal(t, 8192, mainTokenCap(385))
	assert.Equal(t, 8192, mainTokenCap(2200))

	assert.Equal(t, 1200, continuationTokenCap(30))  // max(60,400)*3
	assert.Equal(t, 1800, continuationTokenCap(300)) // 600*3
	assert.Equal(t, 8192, continuationTokenCap(5000))
}
