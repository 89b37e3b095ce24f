package router

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/Yusufzhafir/illiquid-sim/internal/router/middleware"
	simulator "github.com/Yusufzhafir/illiquid-sim/internal/simulation"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/simulation"
	"github.com/Yusufzhafir/illiquid-sim/internal/websocket"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/google/uuid"
)

const (
	defaultChaseFair  = 40
	defaultChaseStart = 20
	maxChaseCycles    = 10_000
)

type SimulationRouter interface {
	Run(w http.ResponseWriter, r *http.Request)
	Start(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	Chase(w http.ResponseWriter, r *http.Request)
	Presets(w http.ResponseWriter, r *http.Request)
}

type simulationRouterImpl struct {
	usecase simulation.SimulationUseCase
}

func NewSimulationRouter(usecase simulation.SimulationUseCase) SimulationRouter {
	return &simulationRouterImpl{
		usecase: usecase,
	}
}

type RunRequest struct {
	Preset string                  `json:"preset,omitempty"`
	Seed   *uint64                 `json:"seed,omitempty"`
	Config *model.SimulationConfig `json:"config,omitempty"`
}

// decodeRunRequest accepts an empty body as "default preset, random seed".
func decodeRunRequest(w http.ResponseWriter, r *http.Request) (simulation.RunRequest, error) {
	var req RunRequest
	if r.ContentLength != 0 {
		var err error
		req, err = decodeJSON[RunRequest](w, r)
		if err != nil {
			return simulation.RunRequest{}, err
		}
	}
	out := simulation.RunRequest{
		Preset: req.Preset,
		Seed:   req.Seed,
		Config: req.Config,
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		out.UserID = claims.UserId
	}
	return out, nil
}

func (sr *simulationRouterImpl) Run(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	report, err := sr.usecase.Run(r.Context(), req)
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (sr *simulationRouterImpl) Start(w http.ResponseWriter, r *http.Request) {
	type StartResponse struct {
		RunID  uuid.UUID `json:"runId"`
		Topics []string  `json:"topics"`
	}
	req, err := decodeRunRequest(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	id, err := sr.usecase.Start(r.Context(), req)
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, StartResponse{
		RunID:  id,
		Topics: []string{websocket.SimulationTopic, id.String()},
	})
}

func (sr *simulationRouterImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return
	}

	report, err := sr.usecase.GetRun(r.Context(), id)
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (sr *simulationRouterImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := sr.usecase.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSONError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GET /api/v1/simulation/chase?fair=40&start=20
func (sr *simulationRouterImpl) Chase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fair, err := priceParam(q.Get("fair"), defaultChaseFair)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("fair: %w", err))
		return
	}
	start, err := priceParam(q.Get("start"), defaultChaseStart)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("start: %w", err))
		return
	}
	if fair-start > maxChaseCycles || simulator.ChaseCycles(fair, start) > maxChaseCycles {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("chase would take more than %d cycles", maxChaseCycles))
		return
	}

	writeJSON(w, http.StatusOK, sr.usecase.Chase(r.Context(), fair, start))
}

func (sr *simulationRouterImpl) Presets(w http.ResponseWriter, r *http.Request) {
	presets := make(map[string]model.SimulationConfig)
	for _, name := range sr.usecase.PresetNames() {
		p, err := sr.usecase.Preset(name)
		if err != nil {
			writeJSONError(w, statusFor(err), err)
			return
		}
		presets[name] = p
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": presets})
}

func priceParam(s string, def model.Price) (model.Price, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("must be a finite number")
	}
	return model.Price(v), nil
}
