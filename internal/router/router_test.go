package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	repository "github.com/Yusufzhafir/illiquid-sim/internal/repository/user"
	"github.com/Yusufzhafir/illiquid-sim/internal/router/middleware"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/simulation"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserUseCase struct{}

func (fakeUserUseCase) Register(ctx context.Context, username, password string) (int64, error) {
	if username == "taken" {
		return 0, model.ErrUsernameTaken
	}
	return 1, nil
}

func (fakeUserUseCase) Login(ctx context.Context, username, password string) (*repository.User, error) {
	if password != "correct-horse" {
		return nil, model.ErrInvalidCredentials
	}
	return &repository.User{ID: 1, Username: username, CreatedAt: time.Now()}, nil
}

func (fakeUserUseCase) GetProfile(ctx context.Context, userID int64) (*repository.User, error) {
	return &repository.User{ID: userID, Username: "trader"}, nil
}

type testServer struct {
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mux := http.NewServeMux()
	maker := middleware.NewJWTMaker("secret")
	BindRouter(BindRouterOpts{
		ServerRouter:      mux,
		SimulationUseCase: simulation.NewSimulationUseCase(context.Background(), simulation.SimulationUseCaseOpts{Logger: zerolog.Nop()}),
		Logger:            zerolog.Nop(),
		UserUseCase:       fakeUserUseCase{},
		TokenMaker:        maker,
		TokenTTL:          time.Hour,
	})
	token, _, err := maker.CreateToken(1, "trader", time.Hour)
	require.NoError(t, err)
	return &testServer{handler: Cors(mux), token: token}
}

func (s *testServer) do(t *testing.T, method, target string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(b))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRunRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/simulation/run", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunAndFetch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/simulation/run", map[string]any{"seed": 5}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[model.RunReport](t, rec)
	assert.Equal(t, uint64(5), report.Seed)
	assert.Len(t, report.Result.History, 30)

	rec = s.do(t, http.MethodGet, "/api/v1/simulation/runs/"+report.ID.String(), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.Result, decode[model.RunReport](t, rec).Result)

	rec = s.do(t, http.MethodGet, "/api/v1/simulation/runs?limit=5", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Runs []model.RunSummary `json:"runs"`
	}](t, rec)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, report.ID, list.Runs[0].ID)
}

func TestRunErrors(t *testing.T) {
	s := newTestServer(t)

	cfg := model.DefaultSimulationConfig()
	cfg.Steps = 5
	rec := s.do(t, http.MethodPost, "/api/v1/simulation/run", map[string]any{"config": cfg}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/simulation/run", map[string]any{"preset": "nope"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/simulation/run", map[string]any{"unknown": 1}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/simulation/runs/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/simulation/runs/7f1c1d7e-8f43-4a40-9d52-3c1f0d6a2b11", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/simulation/runs?limit=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartReturnsRunID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/simulation/start", map[string]any{"seed": 1}, true)
	require.Equal(t, http.StatusAccepted, rec.Code)
	res := decode[struct {
		RunID  string   `json:"runId"`
		Topics []string `json:"topics"`
	}](t, rec)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"simulation", res.RunID}, res.Topics)
}

func TestChase(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/simulation/chase", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.ChaseResult](t, rec)
	assert.Len(t, res.Steps, 20)
	assert.InDelta(t, 8.0, float64(res.Loss), 1e-9)

	rec = s.do(t, http.MethodGet, "/api/v1/simulation/chase?fair=50&start=45", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.ChaseResult](t, rec).Steps, 5)

	for _, q := range []string{"fair=NaN", "start=abc", "fair=1e300", "fair=Inf"} {
		rec = s.do(t, http.MethodGet, "/api/v1/simulation/chase?"+q, nil, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestPresetsAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/simulation/presets", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		Presets map[string]model.SimulationConfig `json:"presets"`
	}](t, rec)
	assert.Equal(t, model.DefaultSimulationConfig(), res.Presets["default"])

	rec = s.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/user/register", map[string]string{"username": "trader", "password": "correct-horse"}, false)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/user/register", map[string]string{"username": "taken", "password": "correct-horse"}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/user/login", map[string]string{"username": "trader", "password": "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/user/login", map[string]string{"username": "trader", "password": "correct-horse"}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	assert.NotEmpty(t, login.Token)

	rec = s.do(t, http.MethodGet, "/api/v1/user/", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trader", decode[UserResponse](t, rec).Username)
}

func TestCorsPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/simulation/run", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
