// Package httpapi provides the HTTP API for projman.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/project"
	"github.com/KaldarAralay/ProjectManager/internal/reconcile"
	"github.com/KaldarAralay/ProjectManager/internal/store"
)

// Reconciler triggers a scan-and-merge cycle.
type Reconciler interface {
	Reconcile(ctx context.Context, roots []string) (*reconcile.Result, error)
	InFlight() bool
}

// ProjectStore is the subset of the store the API serves.
type ProjectStore interface {
	Query(ctx context.Context, filter store.Filter) ([]project.Project, error)
	UpdateUserFields(ctx context.Context, path string, patch store.UserPatch) error
	BatchUpdateStatus(ctx context.Context, paths []string, status project.Status) error
	Delete(ctx context.Context, path string) error
	Languages(ctx context.Context) ([]string, error)
	ScanDirectories(ctx context.Context) ([]string, error)
	SetScanDirectories(ctx context.Context, dirs []string) error
}

// Server provides HTTP endpoints for projman.
type Server struct {
	echo       *echo.Echo
	store      ProjectStore
	reconciler Reconciler
	roots      []string
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. roots is the configured fallback used
// by refresh when no roots are stored and none are given in the request.
func NewServer(st ProjectStore, rec Reconciler, roots []string, logger *zap.Logger, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if rec == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 7411,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		store:      st,
		reconciler: rec,
		roots:      roots,
		logger:     logger,
		config:     cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.GET("/projects", s.handleListProjects)
	v1.PATCH("/projects", s.handlePatchProject)
	v1.DELETE("/projects", s.handleDeleteProject)
	v1.POST("/projects/batch-status", s.handleBatchStatus)
	v1.POST("/refresh", s.handleRefresh)
	v1.GET("/languages", s.handleLanguages)
	v1.GET("/roots", s.handleGetRoots)
	v1.PUT("/roots", s.handleSetRoots)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Scanning bool   `json:"scanning"`
}

// ProjectsResponse is the response body for GET /api/v1/projects.
type ProjectsResponse struct {
	Projects []project.Project `json:"projects"`
	Count    int               `json:"count"`
}

// PatchRequest is the request body for PATCH /api/v1/projects. Omitted
// fields are left untouched.
type PatchRequest struct {
	Path     string             `json:"path"`
	Name     *string            `json:"name,omitempty"`
	Status   *string            `json:"status,omitempty"`
	Favorite *bool              `json:"favorite,omitempty"`
	Notes    *string            `json:"notes,omitempty"`
	Commands *[]project.Command `json:"commands,omitempty"`
}

// BatchStatusRequest is the request body for POST /api/v1/projects/batch-status.
type BatchStatusRequest struct {
	Paths  []string `json:"paths"`
	Status string   `json:"status"`
}

// BatchStatusResponse is the response body for POST /api/v1/projects/batch-status.
type BatchStatusResponse struct {
	Updated int `json:"updated"`
}

// DeleteRequest is the request body for DELETE /api/v1/projects.
type DeleteRequest struct {
	Path string `json:"path"`
}

// RefreshRequest is the request body for POST /api/v1/refresh. Roots is
// optional; when empty the stored scan directories (or the configured
// fallback) are used.
type RefreshRequest struct {
	Roots []string `json:"roots,omitempty"`
}

// RefreshResponse is the response body for POST /api/v1/refresh.
type RefreshResponse struct {
	ScanID     string            `json:"scan_id"`
	Discovered int               `json:"discovered"`
	Warnings   []project.Warning `json:"warnings"`
	DurationMS int64             `json:"duration_ms"`
}

// LanguagesResponse is the response body for GET /api/v1/languages.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

// RootsRequest is the request body for PUT /api/v1/roots.
type RootsRequest struct {
	Roots []string `json:"roots"`
}

// RootsResponse is the response body for GET and PUT /api/v1/roots.
type RootsResponse struct {
	Roots []string `json:"roots"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Scanning: s.reconciler.InFlight(),
	})
}

// handleListProjects returns projects matching the query filters.
func (s *Server) handleListProjects(c echo.Context) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	projects, err := s.store.Query(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error("project query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	if projects == nil {
		projects = []project.Project{}
	}

	return c.JSON(http.StatusOK, ProjectsResponse{
		Projects: projects,
		Count:    len(projects),
	})
}

// filterFromQuery parses the list filters from the query string.
func filterFromQuery(c echo.Context) (store.Filter, error) {
	var filter store.Filter

	if raw := c.QueryParam("status"); raw != "" {
		status, err := project.ParseStatus(raw)
		if err != nil {
			return filter, fmt.Errorf("status: %w", err)
		}
		filter.Status = &status
	}
	filter.Language = c.QueryParam("language")
	filter.Search = c.QueryParam("q")

	if raw := c.QueryParam("favorite"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("favorite: %w", err)
		}
		filter.Favorite = &fav
	}
	if raw := c.QueryParam("present"); raw != "" {
		present, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("present: %w", err)
		}
		filter.Present = &present
	}

	return filter, nil
}

// handlePatchProject applies user edits to one project.
func (s *Server) handlePatchProject(c echo.Context) error {
	var req PatchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid patch request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	patch := store.UserPatch{
		Name:     req.Name,
		Favorite: req.Favorite,
		Notes:    req.Notes,
		Commands: req.Commands,
	}
	if req.Status != nil {
		status, err := project.ParseStatus(*req.Status)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		patch.Status = &status
	}

	if err := s.store.UpdateUserFields(c.Request().Context(), req.Path, patch); err != nil {
		return s.mapStoreError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// handleBatchStatus sets the status on several projects at once. The whole
// batch is applied or none of it is.
func (s *Server) handleBatchStatus(c echo.Context) error {
	var req BatchStatusRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid batch-status request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Paths) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "paths field is required")
	}

	status, err := project.ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.store.BatchUpdateStatus(c.Request().Context(), req.Paths, status); err != nil {
		return s.mapStoreError(c, err)
	}

	return c.JSON(http.StatusOK, BatchStatusResponse{Updated: len(req.Paths)})
}

// handleDeleteProject removes a project record entirely.
func (s *Server) handleDeleteProject(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		var req DeleteRequest
		if err := c.Bind(&req); err == nil {
			path = req.Path
		}
	}
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path is required")
	}

	if err := s.store.Delete(c.Request().Context(), path); err != nil {
		return s.mapStoreError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// handleRefresh runs one reconciliation cycle. Returns 409 when a cycle is
// already running.
func (s *Server) handleRefresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid refresh request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	roots := req.Roots
	if len(roots) == 0 {
		stored, err := s.store.ScanDirectories(ctx)
		if err != nil {
			s.logger.Error("loading scan directories failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "loading scan directories failed")
		}
		roots = stored
	}
	if len(roots) == 0 {
		roots = s.roots
	}

	result, err := s.reconciler.Reconcile(ctx, roots)
	switch {
	case errors.Is(err, reconcile.ErrScanInProgress):
		return echo.NewHTTPError(http.StatusConflict, "a scan is already in progress")
	case errors.Is(err, reconcile.ErrNoRoots):
		return echo.NewHTTPError(http.StatusBadRequest, "no scan roots configured")
	case err != nil:
		s.logger.Error("refresh failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []project.Warning{}
	}

	return c.JSON(http.StatusOK, RefreshResponse{
		ScanID:     result.ScanID,
		Discovered: result.Discovered,
		Warnings:   warnings,
		DurationMS: result.Duration.Milliseconds(),
	})
}

// handleLanguages returns the distinct detected language tags.
func (s *Server) handleLanguages(c echo.Context) error {
	languages, err := s.store.Languages(c.Request().Context())
	if err != nil {
		s.logger.Error("language query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	if languages == nil {
		languages = []string{}
	}

	return c.JSON(http.StatusOK, LanguagesResponse{Languages: languages})
}

// handleGetRoots returns the persisted scan directories, falling back to the
// configured roots when none are stored.
func (s *Server) handleGetRoots(c echo.Context) error {
	roots, err := s.store.ScanDirectories(c.Request().Context())
	if err != nil {
		s.logger.Error("loading scan directories failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading scan directories failed")
	}
	if len(roots) == 0 {
		roots = s.roots
	}
	if roots == nil {
		roots = []string{}
	}

	return c.JSON(http.StatusOK, RootsResponse{Roots: roots})
}

// handleSetRoots replaces the persisted scan directories.
func (s *Server) handleSetRoots(c echo.Context) error {
	var req RootsRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid roots request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.store.SetScanDirectories(c.Request().Context(), req.Roots); err != nil {
		s.logger.Error("saving scan directories failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "saving scan directories failed")
	}

	return c.JSON(http.StatusOK, RootsResponse{Roots: req.Roots})
}

// mapStoreError translates store errors to HTTP status codes.
func (s *Server) mapStoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	case errors.Is(err, project.ErrInvalidStatus),
		errors.Is(err, project.ErrDuplicateCommand),
		errors.Is(err, project.ErrEmptyPath):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store operation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "store operation failed")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
