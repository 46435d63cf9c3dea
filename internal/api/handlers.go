package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/graph/store"
)

type graphRequest struct {
	Nodes      []graph.Node `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	WorkflowID string       `json:"workflowId,omitempty"`
}

func (r *graphRequest) graph() *graph.Graph {
	return &graph.Graph{Nodes: r.Nodes, Edges: r.Edges}
}

type workflowRequest struct {
	Name  string       `json:"name"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

type runResponse struct {
	RunID       string             `json:"runId"`
	WorkflowID  string             `json:"workflowId,omitempty"`
	Status      graph.RunStatus    `json:"status"`
	Results     []graph.NodeResult `json:"results"`
	FinalOutput string             `json:"finalOutput"`
	Waves       [][]string         `json:"waves,omitempty"`
	CostUSD     float64            `json:"costUsd,omitempty"`
	Error       string             `json:"error,omitempty"`
}

type validateResponse struct {
	Valid bool       `json:"valid"`
	Waves [][]string `json:"waves"`
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+msg).SetInternal(err)
	}
	return nil
}

func graphError(err error) error {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
}

func storeError(err error, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, what+" "+id+" not found")
	}
	return err
}

// respondRun maps a finished run onto the execute response: 422 for an
// invalid graph, 500 for any other failure, 200 otherwise.
func (s *Server) respondRun(c echo.Context, run *graph.Run) error {
	var ge *graph.GraphError
	if errors.As(run.Err(), &ge) {
		return graphError(ge)
	}

	resp := runResponse{
		RunID:       run.ID,
		WorkflowID:  run.WorkflowID,
		Status:      run.Status,
		Results:     run.Results,
		FinalOutput: run.FinalOutput,
		Waves:       run.Waves,
		CostUSD:     run.CostUSD,
		Error:       run.Error,
	}
	if run.Status == graph.RunFailed {
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) execute(c echo.Context, g *graph.Graph, workflowID string) error {
	run, err := s.runner.Execute(c.Request().Context(), g, workflowID)
	if err != nil {
		// The run finished; only recording it failed.
		s.logger.Warn("run not recorded", "run_id", run.ID, "error", err)
	}
	return s.respondRun(c, run)
}

// Execute runs an inline graph.
// (POST /api/v1/execute)
func (s *Server) Execute(c echo.Context) error {
	var req graphRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.execute(c, req.graph(), req.WorkflowID)
}

// Validate checks a graph and returns its waves without running it.
// (POST /api/v1/validate)
func (s *Server) Validate(c echo.Context) error {
	var req graphRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	waves, err := graph.Plan(req.graph())
	if err != nil {
		return graphError(err)
	}
	return c.JSON(http.StatusOK, validateResponse{Valid: true, Waves: waves})
}

// ListWorkflows returns all stored workflows.
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	workflows, err := s.store.ListWorkflows(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflows)
}

func (s *Server) decodeWorkflow(c echo.Context) (*store.Workflow, error) {
	var req workflowRequest
	if err := bind(c, &req); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	w := &store.Workflow{Name: req.Name, Nodes: req.Nodes, Edges: req.Edges}
	if err := graph.Validate(w.Graph()); err != nil {
		return nil, graphError(err)
	}
	return w, nil
}

// CreateWorkflow stores a new workflow and assigns its id.
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	w, err := s.decodeWorkflow(c)
	if err != nil {
		return err
	}
	if err := s.store.SaveWorkflow(c.Request().Context(), w); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, w)
}

// GetWorkflow returns one workflow.
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	id := c.Param("id")
	w, err := s.store.LoadWorkflow(c.Request().Context(), id)
	if err != nil {
		return storeError(err, "workflow", id)
	}
	return c.JSON(http.StatusOK, w)
}

// UpdateWorkflow replaces an existing workflow.
// (PUT /api/v1/workflows/:id)
func (s *Server) UpdateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.store.LoadWorkflow(ctx, id); err != nil {
		return storeError(err, "workflow", id)
	}

	w, err := s.decodeWorkflow(c)
	if err != nil {
		return err
	}
	w.ID = id
	if err := s.store.SaveWorkflow(ctx, w); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

// RunWorkflow executes a stored workflow and records the run.
// (POST /api/v1/workflows/:id/run)
func (s *Server) RunWorkflow(c echo.Context) error {
	id := c.Param("id")
	w, err := s.store.LoadWorkflow(c.Request().Context(), id)
	if err != nil {
		return storeError(err, "workflow", id)
	}
	return s.execute(c, w.Graph(), w.ID)
}

// ListRuns returns run history, newest first.
// (GET /api/v1/runs?workflowId=&limit=)
func (s *Server) ListRuns(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	runs, err := s.store.ListRuns(c.Request().Context(), c.QueryParam("workflowId"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, runs)
}

// GetRun returns one recorded run.
// (GET /api/v1/runs/:id)
func (s *Server) GetRun(c echo.Context) error {
	id := c.Param("id")
	run, err := s.store.LoadRun(c.Request().Context(), id)
	if err != nil {
		return storeError(err, "run", id)
	}
	return c.JSON(http.StatusOK, run)
}
