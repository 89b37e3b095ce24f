package router

import (
	"net/http"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/internal/router/middleware"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/simulation"
	"github.com/Yusufzhafir/illiquid-sim/internal/usecase/user"
	"github.com/rs/zerolog"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Logging writes one access log line per request.
func Logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.n).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// wrap the mux with Cors(mux) when starting the server

func Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			// Reflect requested headers/method for preflight robustness
			reqHdrs := r.Header.Get("Access-Control-Request-Headers")
			if reqHdrs == "" {
				reqHdrs = "Content-Type, Authorization"
			}
			w.Header().Set("Access-Control-Allow-Headers", reqHdrs)

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if reqMethod == "" {
				reqMethod = "GET, POST, OPTIONS"
			}
			w.Header().Set("Access-Control-Allow-Methods", reqMethod)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Short-circuit preflight so it never hits the route table
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bindSimulation(serverRouter *http.ServeMux, usecase simulation.SimulationUseCase, auth, logging func(http.Handler) http.Handler) {
	simulationRouter := NewSimulationRouter(usecase)
	serverRouter.Handle("POST /api/v1/simulation/run", logging(auth(http.HandlerFunc(simulationRouter.Run))))
	serverRouter.Handle("POST /api/v1/simulation/start", logging(auth(http.HandlerFunc(simulationRouter.Start))))
	serverRouter.Handle("GET /api/v1/simulation/runs", logging(auth(http.HandlerFunc(simulationRouter.ListRuns))))
	serverRouter.Handle("GET /api/v1/simulation/runs/{id}", logging(auth(http.HandlerFunc(simulationRouter.GetRun))))
	serverRouter.Handle("GET /api/v1/simulation/chase", logging(http.HandlerFunc(simulationRouter.Chase)))
	serverRouter.Handle("GET /api/v1/simulation/presets", logging(http.HandlerFunc(simulationRouter.Presets)))
}

func bindUser(serverRouter *http.ServeMux, usecase user.UserUseCase, tokenMaker *middleware.JWTMaker, tokenTTL time.Duration, auth, logging func(http.Handler) http.Handler) {
	userRouter := NewUserRouter(usecase, tokenMaker, tokenTTL)
	serverRouter.Handle("GET /api/v1/user/", logging(auth(http.HandlerFunc(userRouter.GetUser))))
	serverRouter.Handle("POST /api/v1/user/register", logging(http.HandlerFunc(userRouter.RegisterUser)))
	serverRouter.Handle("POST /api/v1/user/login", logging(http.HandlerFunc(userRouter.LoginUser)))
}

type BindRouterOpts struct {
	ServerRouter      *http.ServeMux
	SimulationUseCase simulation.SimulationUseCase
	Logger            zerolog.Logger

	// UserUseCase is nil when no database is configured; simulation routes
	// are then served without authentication.
	UserUseCase user.UserUseCase
	TokenMaker  *middleware.JWTMaker
	TokenTTL    time.Duration
}

func BindRouter(opts BindRouterOpts) {
	logging := Logging(opts.Logger)
	auth := func(next http.Handler) http.Handler { return next }
	if opts.UserUseCase != nil {
		auth = middleware.AuthMiddleware(opts.TokenMaker)
		bindUser(opts.ServerRouter, opts.UserUseCase, opts.TokenMaker, opts.TokenTTL, auth, logging)
	} else {
		opts.Logger.Warn().Msg("no user store configured, simulation routes are unauthenticated")
	}
	bindSimulation(opts.ServerRouter, opts.SimulationUseCase, auth, logging)

	//healthcheck
	opts.ServerRouter.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": 200,
			"health": "healthy",
		})
	}))
}
