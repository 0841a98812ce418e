package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"manzai-script-api/internal/application/ledger"
	"manzai-script-api/internal/application/script"
	"manzai-script-api/internal/config"
	"manzai-script-api/internal/domain/entity"
	"manzai-script-api/internal/domain/repository"
	"manzai-script-api/internal/interfaces/http/handler"
	"manzai-script-api/internal/interfaces/http/router"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo 内存版用量仓储
type memRepo struct {
	mu   sync.Mutex
	rows map[string]entity.UsageRecord
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]entity.UsageRecord)}
}

func (r *memRepo) Get(_ context.Context, userID string) (*entity.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := row
	return &cp, nil
}

func (r *memRepo) Save(_ context.Context, record *entity.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[record.UserID] = *record
	return nil
}

func (r *memRepo) seed(userID string, outputCount, paidCredits int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[userID] = entity.UsageRecord{UserID: userID, OutputCount: outputCount, PaidCredits: paidCredits}
}

func (r *memRepo) row(userID string) entity.UsageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[userID]
}

// fakeChatModel 按脚本顺序返回应答
type fakeChatModel struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
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
	cm model.BaseChatModel
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.cm, nil
}

func newTestRouter(repo repository.UsageRecordRepository, cm model.BaseChatModel) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Quota.FreeQuota = 500
	cfg.Quota.MaxTargetLength = 2000

	ldg := ledger.New(repo, cfg.Quota.FreeQuota)
	eng := script.NewEngine(&fakeFactory{cm: cm}, "xai", "grok-4-fast-reasoning", rand.New(rand.NewSource(1)))

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(nil, nil),
		Script: handler.NewScriptHandler(cfg, ldg, eng, nil),
		Credit: handler.NewCreditHandler(ldg, nil),
	}
	return router.New(cfg, handlers, nil).Engine()
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// acceptableBody 返回落在 350±10% 圏内的正文（10 ターン + 落ち行）
func acceptableBody() string {
	lines := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		speaker := "A"
		if i%2 == 1 {
			speaker = "B"
		}
		lines = append(lines, speaker+": "+strings.Repeat("あ", 25)+"。")
	}
	return strings.Join(lines, "\n\n") + "\n\n" + script.Outro("B")
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	r := newTestRouter(newMemRepo(), &fakeChatModel{})
	w := doJSON(r, http.MethodGet, "/api/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "Method Not Allowed")
}

func TestGenerateBadParams(t *testing.T) {
	r := newTestRouter(newMemRepo(), &fakeChatModel{})
	w := doJSON(r, http.MethodPost, "/api/generate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad params")
}

func TestGenerateQuotaGate(t *testing.T) {
	repo := newMemRepo()
	repo.seed("u1", 500, 0)
	fake := &fakeChatModel{}
	r := newTestRouter(repo, fake)

	w := doJSON(r, http.MethodPost, "/api/generate", `{"user_id":"u1","theme":"学校"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp struct {
		Error       string `json:"error"`
		UsageCount  int    `json:"usage_count"`
		PaidCredits int    `json:"paid_credits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "usage limit")
	assert.Equal(t, 500, resp.UsageCount)
	assert.Equal(t, 0, resp.PaidCredits)

	// ゲートで弾かれたら生成呼び出しは発生しない
	assert.Equal(t, 0, fake.calls)
}

func TestGenerateSuccessChargesOnce(t *testing.T) {
	repo := newMemRepo()
	fake := &fakeChatModel{responses: []string{"【学校の話】\n\n" + acceptableBody()}}
	r := newTestRouter(repo, fake)

	w := doJSON(r, http.MethodPost, "/api/generate", `{"user_id":"u1","length":350}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Title string `json:"title"`
		Text  string `json:"text"`
		Meta  struct {
			UsageCount     *int     `json:"usage_count"`
			PaidCredits    *int     `json:"paid_credits"`
			TargetLength   int      `json:"target_length"`
			ActualLength   int      `json:"actual_length"`
			CreditConsumed bool     `json:"credit_consumed"`
			Reason         string   `json:"reason"`
			Structure      []string `json:"structure"`
			Techniques     []string `json:"techniques"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "学校の話", resp.Title)
	assert.NotEmpty(t, resp.Text)
	assert.True(t, resp.Meta.CreditConsumed)
	assert.Empty(t, resp.Meta.Reason)
	assert.Equal(t, 350, resp.Meta.TargetLength)
	assert.NotEmpty(t, resp.Meta.Structure)
	assert.NotEmpty(t, resp.Meta.Techniques)

	require.NotNil(t, resp.Meta.UsageCount)
	assert.Equal(t, 1, *resp.Meta.UsageCount)

	assert.Equal(t, 1, repo.row("u1").OutputCount)
}

func TestGenerateBelowFloorDoesNotCharge(t *testing.T) {
	repo := newMemRepo()
	// 短い本文、追記も失敗 → 90% 未満で返る
	short := "A: " + strings.Repeat("あ", 25) + "。\n\nB: " + strings.Repeat("い", 25) + "。"
	fake := &fakeChatModel{
		responses: []string{"【短い】\n\n" + short, ""},
		errs:      []error{nil, errors.New("continuation down")},
	}
	r := newTestRouter(repo, fake)

	w := doJSON(r, http.MethodPost, "/api/generate", `{"user_id":"u1","length":350}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Meta struct {
			CreditConsumed bool   `json:"credit_consumed"`
			Reason         string `json:"reason"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Meta.CreditConsumed)
	assert.Equal(t, "below_90_percent", resp.Meta.Reason)

	// 非課金：行は作られない
	assert.Equal(t, 0, repo.row("u1").OutputCount)
}

func TestGenerateEmptyOutput(t *testing.T) {
	repo := newMemRepo()
	fake := &fakeChatModel{responses: []string{""}}
	r := newTestRouter(repo, fake)

	w := doJSON(r, http.MethodPost, "/api/generate", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Empty output")
	assert.Equal(t, 0, repo.row("u1").OutputCount)
}

func TestGenerateUpstreamFailureDoesNotCharge(t *testing.T) {
	repo := newMemRepo()
	fake := &fakeChatModel{errs: []error{errors.New("api down")}}
	r := newTestRouter(repo, fake)

	w := doJSON(r, http.MethodPost, "/api/generate", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "completion request failed")
	assert.Equal(t, 0, repo.row("u1").OutputCount)
}

func TestGenerateUnmeteredWithoutUserID(t *testing.T) {
	repo := newMemRepo()
	fake := &fakeChatModel{responses: []string{"【題】\n\n" + acceptableBody()}}
	r := newTestRouter(repo, fake)

	w := doJSON(r, http.MethodPost, "/api/generate", `{"length":350}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Meta struct {
			UsageCount  *int `json:"usage_count"`
			PaidCredits *int `json:"paid_credits"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Meta.UsageCount)
	assert.Nil(t, resp.Meta.PaidCredits)
	assert.Empty(t, repo.rows)
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(newMemRepo(), &fakeChatModel{})

	w := doJSON(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
