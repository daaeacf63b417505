package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/automate/cache"
	"github.com/mohitkumar/automate/engine"
	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port     int
	engine   *engine.Engine
	states   *cache.RunStateCache
	gatherer prometheus.Gatherer
}

// NewServer exposes eng over http. states may be nil, metrics come from the default gatherer when gatherer is nil.
func NewServer(httpPort int, eng *engine.Engine, states *cache.RunStateCache, gatherer prometheus.Gatherer) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		Port:     httpPort,
		engine:   eng,
		states:   states,
		gatherer: gatherer,
	}
	s.Handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/events", s.HandleEvent).Methods(http.MethodPost)
	router.HandleFunc("/trigger", s.HandleTrigger).Methods(http.MethodPost)

	router.HandleFunc("/flows", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/flows", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flows/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)
	router.HandleFunc("/flows/{id}/run", s.HandleRunFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}/active", s.HandleSetActive).Methods(http.MethodPut)
	router.HandleFunc("/flows/{id}/state", s.HandleGetRunState).Methods(http.MethodGet)
	router.HandleFunc("/flows/{id}/actions", s.HandleAddAction).Methods(http.MethodPost)
	router.HandleFunc("/flows/{id}/actions/{actionId}", s.HandleRemoveAction).Methods(http.MethodDelete)

	router.HandleFunc("/services", s.HandleListServices).Methods(http.MethodGet)
	router.HandleFunc("/services/{name}", s.HandleGetService).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	return router
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug(r.RequestURI, zap.String("method", r.Method))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("error encoding response", zap.Error(err))
		code = http.StatusInternalServerError
		response, _ = json.Marshal(map[string]string{"error": "response can not be encoded"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithErr maps the engine error taxonomy onto status codes.
func respondWithErr(w http.ResponseWriter, err error) {
	var (
		notFound     engine.FlowNotFoundError
		noMethod     metadata.MethodNotFoundError
		invalid      model.ValidationError
		exists       persistence.RecordExistsError
		precondition *flow.PreconditionError
	)
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound), errors.As(err, &noMethod):
		code = http.StatusNotFound
	case errors.As(err, &invalid):
		code = http.StatusBadRequest
	case errors.As(err, &exists), errors.As(err, &precondition):
		code = http.StatusConflict
	}
	respondWithError(w, code, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}
