// Package api exposes races as a JSON HTTP API for a host dashboard
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/sim/advance"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
)

const (
	defaultAirTemp = 22.0
	maxIterations  = 10000
)

var errInvalidParam = errors.New("invalid parameter")

type (
	Server struct {
		reg        *Registry
		iterations int
		l          *log.Logger
		mux        *http.ServeMux
	}
	ServerOption func(*Server)

	errorResponse struct {
		Error string `json:"error"`
	}
	createRaceRequest struct {
		CircuitID string           `json:"circuitId"`
		Laps      int              `json:"laps"`
		HeroID    string           `json:"heroId"`
		StartTyre model.CompoundID `json:"startTyre"`
		Drivers   []string         `json:"drivers,omitempty"`
		Start     *time.Time       `json:"start,omitempty"`
	}
	boxRequest struct {
		NextTyre *model.CompoundID `json:"nextTyre,omitempty"`
	}
	recommendationResponse struct {
		Compound model.CompoundID   `json:"compound"`
		Tyre     model.TyreCompound `json:"tyre"`
	}
	degradationResponse struct {
		Strategies []model.StrategyOption      `json:"strategies"`
		Points     []strategy.DegradationPoint `json:"points"`
	}
)

// WithIterations sets the default number of Monte Carlo iterations
func WithIterations(n int) ServerOption {
	return func(s *Server) {
		s.iterations = n
	}
}

func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		s.l = l
	}
}

func NewServer(reg *Registry, opts ...ServerOption) *Server {
	ret := &Server{
		reg:        reg,
		iterations: montecarlo.DefaultIterations,
		l:          log.Default().Named("api"),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.routes()
	return ret
}

func (s *Server) Handler() http.Handler {
	return versionCheck(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/circuits", s.circuits)
	s.mux.HandleFunc("GET /api/v1/tyres", s.tyres)
	s.mux.HandleFunc("GET /api/v1/drivers", s.drivers)
	s.mux.HandleFunc("GET /api/v1/recommendation", s.recommendation)
	s.mux.HandleFunc("GET /api/v1/races", s.listRaces)
	s.mux.HandleFunc("POST /api/v1/races", s.createRace)
	s.mux.HandleFunc("GET /api/v1/races/{id}", s.withEntry(s.getRace))
	s.mux.HandleFunc("DELETE /api/v1/races/{id}", s.deleteRace)
	s.mux.HandleFunc("POST /api/v1/races/{id}/box", s.withEntry(s.requestBox))
	s.mux.HandleFunc("DELETE /api/v1/races/{id}/box", s.withEntry(s.cancelBox))
	s.mux.HandleFunc("POST /api/v1/races/{id}/advance", s.withEntry(s.advance))
	s.mux.HandleFunc("GET /api/v1/races/{id}/projection", s.withEntry(s.projection))
	s.mux.HandleFunc("GET /api/v1/races/{id}/strategies", s.withEntry(s.strategies))
	s.mux.HandleFunc("GET /api/v1/races/{id}/degradation", s.withEntry(s.degradation))
	s.mux.HandleFunc("GET /api/v1/races/{id}/report", s.withEntry(s.report))
	s.mux.HandleFunc("GET /api/v1/races/{id}/results", s.withEntry(s.results))
	s.mux.HandleFunc("GET /api/v1/races/{id}/stream", s.withEntry(s.stream))
}

type entryHandler func(w http.ResponseWriter, req *http.Request, e *Entry)

func (s *Server) withEntry(h entryHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		e, err := s.reg.Get(req.PathValue("id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		h(w, req, e)
	}
}

func (s *Server) circuits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Circuits())
}

func (s *Server) tyres(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Tyres())
}

func (s *Server) drivers(w http.ResponseWriter, req *http.Request) {
	drivers, err := s.reg.Roster().Drivers(req.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (s *Server) recommendation(w http.ResponseWriter, req *http.Request) {
	rain, err := floatParam(req, "rain", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	airTemp, err := floatParam(req, "airTemp", defaultAirTemp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	c := strategy.RecommendCompound(rain, airTemp)
	writeJSON(w, http.StatusOK, recommendationResponse{Compound: c, Tyre: model.MustTyre(c)})
}

func (s *Server) listRaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lo.Map(s.reg.List(), func(e *Entry, _ int) *race.Snapshot {
		return e.Session.Snapshot()
	}))
}

func (s *Server) createRace(w http.ResponseWriter, req *http.Request) {
	var body createRaceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errInvalidParam, err))
		return
	}
	p := &race.Params{
		CircuitID: body.CircuitID,
		Laps:      body.Laps,
		Start:     time.Now(),
		HeroID:    body.HeroID,
		StartTyre: body.StartTyre,
		Drivers:   body.Drivers,
	}
	if body.Start != nil {
		p.Start = *body.Start
	}
	if p.StartTyre == "" {
		p.StartTyre = model.C3
	}
	e, err := s.reg.Create(req.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e.Session.Snapshot())
}

func (s *Server) getRace(w http.ResponseWriter, _ *http.Request, e *Entry) {
	writeJSON(w, http.StatusOK, e.Session.Snapshot())
}

func (s *Server) deleteRace(w http.ResponseWriter, req *http.Request) {
	if err := s.reg.Remove(req.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestBox(w http.ResponseWriter, req *http.Request, e *Entry) {
	var body boxRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, fmt.Errorf("%w: %w", errInvalidParam, err))
		return
	}
	if err := e.Session.RequestBox(body.NextTyre); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, e.Session.Snapshot())
}

func (s *Server) cancelBox(w http.ResponseWriter, _ *http.Request, e *Entry) {
	e.Session.CancelBox()
	writeJSON(w, http.StatusOK, e.Session.Snapshot())
}

func (s *Server) advance(w http.ResponseWriter, req *http.Request, e *Entry) {
	res, err := e.Session.Tick(req.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) projection(w http.ResponseWriter, req *http.Request, e *Entry) {
	n, err := s.iterationsParam(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	proj, err := e.Session.Project(req.Context(), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) strategies(w http.ResponseWriter, _ *http.Request, e *Entry) {
	ret, err := e.Session.Strategies()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) degradation(w http.ResponseWriter, _ *http.Request, e *Entry) {
	options, points, err := e.Session.Degradation()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, degradationResponse{
		Strategies: options,
		Points:     points,
	})
}

func (s *Server) report(w http.ResponseWriter, req *http.Request, e *Entry) {
	n, err := s.iterationsParam(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rep, err := e.Session.Report(req.Context(), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) results(w http.ResponseWriter, _ *http.Request, e *Entry) {
	writeJSON(w, http.StatusOK, e.Session.Results())
}

func (s *Server) iterationsParam(req *http.Request) (int, error) {
	v := req.URL.Query().Get("iterations")
	if v == "" {
		return s.iterations, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxIterations {
		return 0, fmt.Errorf("%w: iterations must be within 1..%d", errInvalidParam, maxIterations)
	}
	return n, nil
}

func floatParam(req *http.Request, name string, def float64) (float64, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errInvalidParam, name, err)
	}
	return f, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidParam),
		errors.Is(err, model.ErrDriverNotFound),
		errors.Is(err, model.ErrUnknownCompound),
		errors.Is(err, model.ErrUnknownCircuit),
		errors.Is(err, race.ErrInvalidLaps),
		errors.Is(err, race.ErrDuplicateDriver):
		return http.StatusBadRequest
	case errors.Is(err, advance.ErrRaceFinished),
		errors.Is(err, race.ErrHalted),
		errors.Is(err, race.ErrStale),
		errors.Is(err, montecarlo.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, strategy.ErrNoProjector):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.l.Error("request failed", log.ErrorField(err))
	} else {
		s.l.Debug("request rejected", log.Int("status", status), log.ErrorField(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("could not write response", log.ErrorField(err))
	}
}
