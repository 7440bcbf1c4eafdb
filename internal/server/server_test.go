package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"flockkeeper-backend/internal/auth"
	"flockkeeper-backend/internal/config"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/models"
	"flockkeeper-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// flakyStore fails every write it is told to, passing the rest through.
type flakyStore struct {
	*mirror.GormStore
	failExpenses bool
	failEvents   bool
}

func (s *flakyStore) InsertExpense(ctx context.Context, exp *models.Expense) error {
	if s.failExpenses {
		return errors.New("expense ledger offline")
	}
	return s.GormStore.InsertExpense(ctx, exp)
}

func (s *flakyStore) DeleteFlockEvents(ctx context.Context, source models.BatchEvent) (int64, error) {
	if s.failEvents {
		return 0, errors.New("flock timeline offline")
	}
	return s.GormStore.DeleteFlockEvents(ctx, source)
}

type harness struct {
	app    *fiber.App
	db     *gorm.DB
	runner *mirror.Runner
	store  *flakyStore
}

func newHarness(t *testing.T) harness {
	t.Helper()
	return newHarnessWithLog(t, nil)
}

func newHarnessWithLog(t *testing.T, log *zap.Logger) harness {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWTSecret:         testSecret,
		CORSOrigins:       "*",
		TokenTTL:          time.Hour,
		SideEffectTimeout: time.Second,
	}
	runner := mirror.NewRunner(nil, time.Second)
	store := &flakyStore{GormStore: mirror.NewGormStore(db)}
	app := New(Deps{Config: cfg, DB: db, Log: log, Runner: runner, Store: store})
	return harness{app: app, db: db, runner: runner, store: store}
}

func token(t *testing.T, ownerID uint) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, time.Hour, &models.User{ID: ownerID, Email: "keeper@example.com"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (h harness) do(t *testing.T, method, path, tok string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func batchBody() map[string]any {
	return map[string]any{
		"batch_name":         "Spring Reds",
		"breed":              "Rhode Island Red",
		"acquisition_date":   "2025-03-01",
		"initial_count":      10,
		"type":               "layers",
		"age_at_acquisition": "juvenile",
		"source":             "Hatchery",
		"cost":               "150.00",
		"hens_count":         8,
		"roosters_count":     2,
	}
}

func (h harness) createBatch(t *testing.T, tok string) uint {
	t.Helper()
	status, body := h.do(t, http.MethodPost, "/api/batches", tok, batchBody())
	if status != http.StatusCreated {
		t.Fatalf("create batch: want=201 got=%d body=%s", status, body)
	}
	var out struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	return out.ID
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/api/batches", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("want=401 got=%d body=%s", status, body)
	}
	status, _ = h.do(t, http.MethodGet, "/api/batches", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad token: want=401 got=%d", status)
	}
}

func TestCreateBatchSurvivesExpenseOutage(t *testing.T) {
	h := newHarness(t)
	h.store.failExpenses = true
	tok := token(t, 1)

	id := h.createBatch(t, tok)
	h.runner.Wait()

	var n int64
	h.db.Model(&models.Expense{}).Count(&n)
	if n != 0 {
		t.Fatalf("expenses: want=0 got=%d", n)
	}

	status, body := h.do(t, http.MethodGet, "/api/batches/"+itoa(id), tok, nil)
	if status != http.StatusOK {
		t.Fatalf("get batch: want=200 got=%d body=%s", status, body)
	}
	var got struct {
		CurrentCount int `json:"current_count"`
	}
	_ = json.Unmarshal(body, &got)
	if got.CurrentCount != 10 {
		t.Fatalf("current_count: want=10 got=%d", got.CurrentCount)
	}
}

func TestCreateBatchCountMismatchIsBadRequest(t *testing.T) {
	h := newHarness(t)
	body := batchBody()
	body["hens_count"] = 9

	status, out := h.do(t, http.MethodPost, "/api/batches", token(t, 1), body)
	if status != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d body=%s", status, out)
	}
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(out, &e); err != nil || e.Error == "" {
		t.Fatalf("error body: got=%s", out)
	}
}

func TestForeignBatchIsNotFound(t *testing.T) {
	h := newHarness(t)
	id := h.createBatch(t, token(t, 1))
	h.runner.Wait()

	status, _ := h.do(t, http.MethodGet, "/api/batches/"+itoa(id), token(t, 2), nil)
	if status != http.StatusNotFound {
		t.Fatalf("get foreign: want=404 got=%d", status)
	}
	status, _ = h.do(t, http.MethodPost, "/api/death-records", token(t, 2), map[string]any{
		"batch_id": id, "date": "2025-04-01", "count": 1, "cause": "predator", "description": "hawk",
	})
	if status != http.StatusNotFound {
		t.Fatalf("death record on foreign batch: want=404 got=%d", status)
	}
}

func TestDeleteEventWithoutMirrorCounterpart(t *testing.T) {
	h := newHarness(t)
	tok := token(t, 1)
	id := h.createBatch(t, tok)
	h.runner.Wait()

	status, body := h.do(t, http.MethodPost, "/api/batch-events", tok, map[string]any{
		"batch_id": id, "date": "2025-04-02", "type": "brooding_start", "description": "Goldie went broody", "affected_count": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("create event: want=201 got=%d body=%s", status, body)
	}
	var ev struct {
		ID uint `json:"id"`
	}
	_ = json.Unmarshal(body, &ev)

	if err := h.db.Where("1 = 1").Delete(&models.FlockEvent{}).Error; err != nil {
		t.Fatalf("clear flock events: %v", err)
	}
	h.store.failEvents = true

	status, body = h.do(t, http.MethodDelete, "/api/batch-events/"+itoa(ev.ID), tok, nil)
	if status != http.StatusOK {
		t.Fatalf("delete event: want=200 got=%d body=%s", status, body)
	}

	var b models.FlockBatch
	if err := h.db.First(&b, id).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if b.BroodingCount != 0 {
		t.Fatalf("brooding_count: want=0 got=%d", b.BroodingCount)
	}
}

func TestDeathRecordFlow(t *testing.T) {
	h := newHarness(t)
	tok := token(t, 1)
	id := h.createBatch(t, tok)
	h.runner.Wait()

	status, body := h.do(t, http.MethodPost, "/api/death-records", tok, map[string]any{
		"batch_id": id, "date": "2025-04-01", "count": 11, "cause": "predator", "description": "fox",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("too many: want=400 got=%d body=%s", status, body)
	}

	status, body = h.do(t, http.MethodPost, "/api/death-records", tok, map[string]any{
		"batch_id": id, "date": "2025-04-01", "count": 3, "cause": "predator", "description": "fox",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d body=%s", status, body)
	}

	status, body = h.do(t, http.MethodGet, "/api/death-records?batch_id="+itoa(id), tok, nil)
	if status != http.StatusOK {
		t.Fatalf("list: want=200 got=%d body=%s", status, body)
	}
	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil || len(records) != 1 {
		t.Fatalf("list body: got=%s", body)
	}

	var b models.FlockBatch
	h.db.First(&b, id)
	if b.CurrentCount != 7 {
		t.Fatalf("current_count: want=7 got=%d", b.CurrentCount)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "cluckcluck",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: want=201 got=%d body=%s", status, body)
	}

	status, body = h.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "cluckcluck",
	})
	if status != http.StatusOK {
		t.Fatalf("login: want=200 got=%d body=%s", status, body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("login body: got=%s", body)
	}

	status, body = h.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me: want=200 got=%d body=%s", status, body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Fatalf("missing %s header", fiber.HeaderXRequestID)
	}
}

func TestPanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarnessWithLog(t, zap.New(core))
	h.app.Get("/boom", func(*fiber.Ctx) error {
		panic("boom")
	})

	status, _ := h.do(t, http.MethodGet, "/boom", "", nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", status)
	}

	entries := logs.FilterMessage("http request").FilterField(zap.String("path", "/boom")).All()
	if len(entries) != 1 {
		t.Fatalf("access log entries: want=1 got=%d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusInternalServerError) {
		t.Fatalf("logged status: want=500 got=%v", got)
	}
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
