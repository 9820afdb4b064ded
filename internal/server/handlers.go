package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qvarlab/qvar/internal/optimizer"
	"github.com/qvarlab/qvar/internal/pauli"
	"github.com/qvarlab/qvar/internal/qasm"
	"github.com/qvarlab/qvar/internal/runs"
)

type createRunRequest struct {
	Ansatz      string `json:"ansatz"`
	Hamiltonian string `json:"hamiltonian"`
	Backend     string `json:"backend"`
	Optimizer   string `json:"optimizer"`
	// Shots left unset falls back to the configured default; an explicit 0
	// requests exact expectation values.
	Shots         *int      `json:"shots"`
	InitialParams []float64 `json:"initial_params"`
}

type runView struct {
	UUID          string     `json:"uuid"`
	Ansatz        string     `json:"ansatz"`
	Hamiltonian   string     `json:"hamiltonian"`
	Backend       string     `json:"backend"`
	Optimizer     string     `json:"optimizer"`
	Shots         int        `json:"shots"`
	Status        string     `json:"status"`
	InitialParams []float64  `json:"initial_params"`
	FinalParams   []float64  `json:"final_params,omitempty"`
	Energy        *float64   `json:"energy,omitempty"`
	Evaluations   int        `json:"evaluations"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func viewOf(run runs.Run) runView {
	return runView{
		UUID:          run.UUID,
		Ansatz:        run.Ansatz,
		Hamiltonian:   run.Hamiltonian,
		Backend:       run.Backend,
		Optimizer:     run.Optimizer,
		Shots:         run.Shots,
		Status:        run.Status,
		InitialParams: run.InitialParams,
		FinalParams:   run.FinalParams,
		Energy:        run.Energy,
		Evaluations:   run.Evaluations,
		Error:         run.Error,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
	}
}

// handleCreateRun handles POST /api/vqe/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	op, err := pauli.Parse(req.Hamiltonian)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid hamiltonian: "+err.Error())
		return
	}

	a, ok := s.cfg.Ansatzes.Get(req.Ansatz)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown ansatz: "+req.Ansatz)
		return
	}
	if len(req.InitialParams) != a.Params {
		s.writeError(w, http.StatusBadRequest, "ansatz "+req.Ansatz+" expects "+strconv.Itoa(a.Params)+" parameters")
		return
	}
	if op.NumQubits() > a.Qubits {
		s.writeError(w, http.StatusBadRequest, "hamiltonian acts on more qubits than the ansatz prepares")
		return
	}

	if req.Backend == "" {
		b, err := s.cfg.Backends.Get("")
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "no default backend")
			return
		}
		req.Backend = b.Name()
	} else if _, err := s.cfg.Backends.Get(req.Backend); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Optimizer == "" {
		req.Optimizer = "nelder-mead"
	}
	if _, err := optimizer.Create(req.Optimizer, optimizer.Options{}); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shots := s.cfg.DefaultShots
	if req.Shots != nil {
		shots = *req.Shots
	}
	if shots < 0 {
		s.writeError(w, http.StatusBadRequest, "shots cannot be negative")
		return
	}

	id, err := s.cfg.Repository.Create(runs.Run{
		Ansatz:        req.Ansatz,
		Hamiltonian:   op.String(),
		Backend:       req.Backend,
		Optimizer:     req.Optimizer,
		Shots:         shots,
		InitialParams: req.InitialParams,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create run")
		s.writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	if err := s.cfg.Pool.Enqueue(id); err != nil {
		if markErr := s.cfg.Repository.MarkFailed(id, err); markErr != nil {
			s.log.Warn().Str("run", id).Err(markErr).Msg("Failed to mark rejected run failed")
		}
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	run, err := s.cfg.Repository.Get(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "run vanished after creation")
		return
	}
	s.writeJSON(w, http.StatusCreated, viewOf(*run))
}

// handleListRuns handles GET /api/vqe/runs?status=&limit=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := s.cfg.Repository.List(status, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	views := make([]runView, 0, len(list))
	for _, run := range list {
		views = append(views, viewOf(run))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  views,
		"count": len(views),
	})
}

// handleGetRun handles GET /api/vqe/runs/{uuid}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.cfg.Repository.Get(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(*run))
}

// handleDeleteRun handles DELETE /api/vqe/runs/{uuid}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	run, err := s.cfg.Repository.Get(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if run.Status == runs.StatusRunning {
		s.writeError(w, http.StatusConflict, "cannot delete a running run")
		return
	}
	if err := s.cfg.Repository.Delete(id); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// handleGetEvaluations handles GET /api/vqe/runs/{uuid}/evaluations
func (s *Server) handleGetEvaluations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if _, err := s.cfg.Repository.Get(id); err != nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	evals, err := s.cfg.Repository.GetEvaluations(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load evaluations")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":         id,
		"evaluations": evals,
		"count":       len(evals),
	})
}

// handleListAnsatzes handles GET /api/ansatzes
func (s *Server) handleListAnsatzes(w http.ResponseWriter, r *http.Request) {
	type ansatzView struct {
		Name   string `json:"name"`
		Qubits int    `json:"qubits"`
		Params int    `json:"params"`
	}
	list := s.cfg.Ansatzes.List()
	views := make([]ansatzView, 0, len(list))
	for _, a := range list {
		views = append(views, ansatzView{Name: a.Name, Qubits: a.Qubits, Params: a.Params})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ansatzes": views})
}

// handleAnsatzQASM handles GET /api/ansatzes/{name}/qasm?params=0.1,0.2
func (s *Server) handleAnsatzQASM(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, ok := s.cfg.Ansatzes.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown ansatz: "+name)
		return
	}

	var params []float64
	if raw := r.URL.Query().Get("params"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid parameter: "+field)
				return
			}
			params = append(params, v)
		}
	} else {
		params = make([]float64, a.Params)
	}

	c, err := a.Circuit(params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	program, err := qasm.Export(c)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ansatz": name,
		"params": params,
		"qasm":   program,
	})
}

// handleListBackends handles GET /api/backends
func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	type backendView struct {
		Name      string `json:"name"`
		Provider  string `json:"provider"`
		MaxQubits int    `json:"max_qubits"`
		Simulator bool   `json:"simulator"`
	}
	var views []backendView
	for _, name := range s.cfg.Backends.Names() {
		b, err := s.cfg.Backends.Get(name)
		if err != nil {
			continue
		}
		views = append(views, backendView{
			Name:      b.Name(),
			Provider:  b.Provider(),
			MaxQubits: b.MaxQubits(),
			Simulator: b.IsSimulator(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"backends": views})
}

// handleListArchive handles GET /api/archive
func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		s.writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	ids, err := s.cfg.Archive.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  ids,
		"count": len(ids),
	})
}

// handleGetArchived handles GET /api/archive/{uuid}
func (s *Server) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		s.writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	snap, err := s.cfg.Archive.Load(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":         viewOf(snap.Run),
		"trace":       snap.Trace,
		"archived_at": snap.ArchivedAt,
	})
}
