package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/dojo-hub/ninja-dashboard/internal/application/command"
	"github.com/dojo-hub/ninja-dashboard/internal/application/query"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/messaging"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/metrics"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/ninja-dashboard/internal/interface/http/handlers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const adminKey = "sensei-key"

type testEnv struct {
	server   *Server
	recorder *metrics.Recorder
	bus      *messaging.InMemoryEventBus
}

func newTestEnv(t *testing.T, health handlers.HealthChecker) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)

	store := memory.NewStore()
	cache := memory.NewCache()
	recorder := metrics.NewRecorder()

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = false
	bus := messaging.NewInMemoryEventBus(busCfg)
	t.Cleanup(func() { _ = bus.Close() })

	cmdOpts := command.Options{Observer: recorder}
	queryOpts := query.Options{Observer: recorder}

	if health == nil {
		health = handlers.NoopHealthChecker{Version: "test"}
	}

	cfg := DefaultConfig()
	cfg.Version = "test"

	s := NewServer(cfg, Dependencies{
		CreateNinja:        command.NewCreateNinjaHandler(store.Ninjas(), bus, nil, cmdOpts),
		UpdateProgression:  command.NewUpdateProgressionHandler(store.Ninjas(), cache, bus, cmdOpts),
		LessonUp:           command.NewLessonUpHandler(store.Ninjas(), cache, nil, bus, cmdOpts),
		CorrectProgress:    command.NewCorrectProgressHandler(store.History(), bus, cmdOpts),
		GetBounds:          query.NewGetBoundsHandler(queryOpts),
		GetCurriculum:      query.NewGetCurriculumHandler(queryOpts),
		GetNinja:           query.NewGetNinjaHandler(store.Ninjas(), cache, time.Minute, queryOpts),
		GetProgressHistory: query.NewGetProgressHistoryHandler(store.Ninjas(), store.History()),
		PreviewAdvance:     query.NewPreviewAdvanceHandler(queryOpts),
		RequestObserver:    recorder,
		MetricsHandler:     recorder.Handler(),
		HealthChecker:      health,
		AdminAuth:          handlers.NewAPIKeyAuth("X-API-Key", string(hash)),
	})

	return &testEnv{server: s, recorder: recorder, bus: bus}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, target string, body any, admin bool) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-API-Key", adminKey)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out), string(resp.Data))
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Health
// ──────────────────────────────────────────────────────────────────────────────

func TestServer_HealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/health", "/ready", "/live", "/"} {
		code, resp := env.do(t, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusOK, code, path)
		assert.True(t, resp.Success, path)
	}
}

func TestServer_HealthEndpointsUnhealthy(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	env := newTestEnv(t, checker)

	code, _ := env.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = env.do(t, http.MethodGet, "/ready", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = env.do(t, http.MethodGet, "/live", nil, false)
	assert.Equal(t, http.StatusOK, code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Curriculum & progression
// ──────────────────────────────────────────────────────────────────────────────

func TestServer_Curriculum(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.do(t, http.MethodGet, "/api/v1/curriculum/javascript", nil, false)
	require.Equal(t, http.StatusOK, code)

	dto := decodeData[query.CurriculumDTO](t, resp)
	require.Len(t, dto.Paths, 1)
	assert.Equal(t, "javascript", dto.Paths[0].Path)
	assert.Equal(t, 8, dto.FallbackBound)
	assert.Equal(t, []int{8, 6, 6, 7, 7, 6, 6, 8}, dto.Paths[0].Belts[0].Lessons)

	code, resp = env.do(t, http.MethodGet, "/api/v1/curriculum/cobol", nil, false)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp.Error.Code)
}

func TestServer_Bounds(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.do(t, http.MethodGet, "/api/v1/progression/bounds?path=javascript&belt=white&level=99&lesson=abc", nil, false)
	require.Equal(t, http.StatusOK, code)

	dto := decodeData[query.BoundsDTO](t, resp)
	assert.Equal(t, 8, dto.MaxLevel)
	assert.Equal(t, 8, dto.MaxLesson)
	assert.False(t, dto.LevelFallback)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 8, Lesson: 1}, dto.Normalized)

	code, _ = env.do(t, http.MethodGet, "/api/v1/progression/bounds?belt=plaid", nil, false)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Normalize(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.do(t, http.MethodPost, "/api/v1/progression/normalize",
		`{"path":"javascript","belt":"white","level":"3","lesson":99}`, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 3, Lesson: 6}, decodeData[query.StateDTO](t, resp))

	code, resp = env.do(t, http.MethodPost, "/api/v1/progression/normalize", `{"belt":"plaid"}`, false)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error.Fields, "belt")

	code, resp = env.do(t, http.MethodPost, "/api/v1/progression/normalize", `{"belt":`, false)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", resp.Error.Code)
}

func TestServer_PreviewAdvance(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.do(t, http.MethodPost, "/api/v1/progression/advance",
		`{"belt":"white","level":1,"lesson":8}`, false)
	require.Equal(t, http.StatusOK, code)

	dto := decodeData[query.AdvancePreviewDTO](t, resp)
	assert.Equal(t, "level", dto.Rollover)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 2, Lesson: 1}, dto.To)
}

// ──────────────────────────────────────────────────────────────────────────────
// Ninjas
// ──────────────────────────────────────────────────────────────────────────────

func createNinja(t *testing.T, env *testEnv, username string) query.NinjaDTO {
	t.Helper()
	code, resp := env.do(t, http.MethodPost, "/api/v1/ninjas", map[string]string{
		"first_name": "Kai",
		"last_name":  "Chen",
		"username":   username,
	}, true)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	return decodeData[query.NinjaDTO](t, resp)
}

func TestServer_CreateNinja(t *testing.T) {
	env := newTestEnv(t, nil)

	n := createNinja(t, env, "kai")
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 1, Lesson: 1}, n.Progression)
	assert.Equal(t, 1, n.Position)

	code, resp := env.do(t, http.MethodGet, "/api/v1/ninjas/"+n.ID, nil, false)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "kai", decodeData[query.NinjaDTO](t, resp).Username)

	code, resp = env.do(t, http.MethodGet, "/api/v1/ninjas", nil, false)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]query.NinjaDTO](t, resp), 1)
}

func TestServer_CreateNinjaErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.do(t, http.MethodPost, "/api/v1/ninjas", map[string]string{"username": "kai"}, false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_api_key", resp.Error.Code)

	code, resp = env.do(t, http.MethodPost, "/api/v1/ninjas", map[string]string{
		"first_name": " ",
		"username":   "kai",
	}, true)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error.Fields, "first_name")
	assert.Contains(t, resp.Error.Fields, "last_name")

	code, resp = env.do(t, http.MethodPost, "/api/v1/ninjas", `{"username":"kai","shoe_size":9}`, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", resp.Error.Code)

	createNinja(t, env, "kai")
	code, resp = env.do(t, http.MethodPost, "/api/v1/ninjas", map[string]string{
		"first_name": "Kai",
		"last_name":  "Other",
		"username":   "kai",
	}, true)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_exists", resp.Error.Code)
}

func TestServer_GetNinjaNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.do(t, http.MethodGet, "/api/v1/ninjas/missing", nil, false)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp.Error.Code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/ninjas/missing/lesson-up", nil, true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_LessonUpFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	n := createNinja(t, env, "kai")

	code, resp := env.do(t, http.MethodPost, "/api/v1/ninjas/"+n.ID+"/lesson-up", nil, true)
	require.Equal(t, http.StatusOK, code)
	up := decodeData[LessonUpResponse](t, resp)
	assert.Equal(t, "lesson", up.Rollover)
	assert.False(t, up.AtMaximum)
	assert.NotEmpty(t, up.EntryID)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 1, Lesson: 2}, up.To)

	// Admin edit straight to the terminal state.
	code, resp = env.do(t, http.MethodPut, "/api/v1/ninjas/"+n.ID+"/progression",
		`{"belt":"black","level":"99","lesson":99,"note":"transfer"}`, true)
	require.Equal(t, http.StatusOK, code)
	edit := decodeData[ProgressionResponse](t, resp)
	assert.True(t, edit.Changed)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "black", Level: 4, Lesson: 25}, edit.To)

	code, resp = env.do(t, http.MethodPost, "/api/v1/ninjas/"+n.ID+"/lesson-up", nil, true)
	require.Equal(t, http.StatusOK, code)
	top := decodeData[LessonUpResponse](t, resp)
	assert.True(t, top.AtMaximum)
	assert.Equal(t, AtMaximumMessage, top.Message)
	assert.Empty(t, top.EntryID)
	assert.Equal(t, top.From, top.To)

	code, resp = env.do(t, http.MethodGet, "/api/v1/ninjas/"+n.ID+"/progress", nil, false)
	require.Equal(t, http.StatusOK, code)
	history := decodeData[query.ProgressHistoryDTO](t, resp)
	require.Len(t, history.Entries, 2)
	assert.Equal(t, "admin_edit", history.Entries[0].Kind)
	assert.Equal(t, "lesson_up", history.Entries[1].Kind)
}

func TestServer_CorrectProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	n := createNinja(t, env, "kai")

	code, resp := env.do(t, http.MethodPost, "/api/v1/ninjas/"+n.ID+"/lesson-up", nil, true)
	require.Equal(t, http.StatusOK, code)
	entryID := decodeData[LessonUpResponse](t, resp).EntryID

	target := "/api/v1/ninjas/" + n.ID + "/progress/" + entryID
	code, resp = env.do(t, http.MethodPut, target, `{"belt":"white","level":2,"lesson":42}`, true)
	require.Equal(t, http.StatusOK, code)

	corr := decodeData[CorrectionResponse](t, resp)
	assert.True(t, corr.Changed)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 1, Lesson: 2}, corr.Previous)
	assert.Equal(t, query.StateDTO{Path: "javascript", Belt: "white", Level: 2, Lesson: 6}, corr.Entry.To)

	code, _ = env.do(t, http.MethodPut, "/api/v1/ninjas/someone-else/progress/"+entryID, `{"belt":"white"}`, true)
	assert.Equal(t, http.StatusNotFound, code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Middleware & metrics
// ──────────────────────────────────────────────────────────────────────────────

func TestServer_RequestIDAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ninjas/missing", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dojo_http_requests_total{code="404",method="GET",route="GET /api/v1/ninjas/{id}"} 1`)
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ninjas", nil)
	req.Header.Set("Origin", "https://dojo.example")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dojo.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := NewServer(cfg, Dependencies{})

	errCh := s.StartAsync()
	require.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(), ErrServerRunning)
	assert.NotEqual(t, "127.0.0.1:0", s.Address())

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + s.Address() + "/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))

	for err := range errCh {
		require.NoError(t, err)
	}
	assert.False(t, s.IsRunning())
	assert.Zero(t, s.Uptime())
}

func TestServer_StartAsyncBindError(t *testing.T) {
	first := NewServer(Config{Host: "127.0.0.1", Port: 0}, Dependencies{})
	errCh := first.StartAsync()
	defer func() {
		_ = first.Shutdown(context.Background())
		for range errCh {
		}
	}()

	_, port, err := net.SplitHostPort(first.Address())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	second := NewServer(cfg, Dependencies{})
	bindErr, ok := <-second.StartAsync()
	require.True(t, ok)
	assert.Error(t, bindErr)
	assert.False(t, second.IsRunning())
}
