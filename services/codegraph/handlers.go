// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codegraph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

// ServiceVersion is the codegraph service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the codegraph service.
type Handlers struct {
	svc          *Service
	buildLimiter *rate.Limiter
	metrics      *telemetry.Metrics
}

// NewHandlers creates handlers for the given service. Builds are not rate
// limited until WithBuildLimit is called.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// WithBuildLimit throttles POST /build, /init and /investigate with a token
// bucket. A non-positive rate disables the limit.
func (h *Handlers) WithBuildLimit(perSecond float64, burst int) *Handlers {
	if perSecond <= 0 {
		h.buildLimiter = nil
		return h
	}
	if burst < 1 {
		burst = 1
	}
	h.buildLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return h
}

// WithMetrics counts failure envelopes by error code.
func (h *Handlers) WithMetrics(m *telemetry.Metrics) *Handlers {
	h.metrics = m
	return h
}

// HandleBuild handles POST /v1/codegraph/build.
//
// Response:
//
//	200 OK: BuildResponse
//	400 Bad Request: INVALID_ARGUMENT, INVALID_PATH, PATH_TRAVERSAL,
//	  PATH_NOT_ALLOWED, NO_SOURCE_FILES, PROJECT_TOO_LARGE
//	409 Conflict: BUILD_IN_PROGRESS
//	422 Unprocessable Entity: PARSE_FAILURE
//	429 Too Many Requests: RATE_LIMITED
//	504 Gateway Timeout: BUILD_TIMEOUT
func (h *Handlers) HandleBuild(c *gin.Context) {
	logger := h.logger(c, "HandleBuild")

	var req BuildRequest
	if !h.bind(c, logger, &req) || !h.allowBuild(c, logger) {
		return
	}

	logger.Info("Building project", "project_dir", req.ProjectDir, "force_rebuild", req.ForceRebuild)
	resp, err := h.svc.Build(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("Build complete",
		"project_id", resp.ProjectID,
		"functions", resp.TotalFunctions,
		"relations", resp.TotalRelations,
		"cache_hit", resp.CacheHit,
		"build_time_ms", resp.BuildTimeMs)
	respond(c, resp)
}

// HandleInit handles POST /v1/codegraph/init.
//
// Loads the project from memory or the snapshot store and builds it only
// when neither holds it.
func (h *Handlers) HandleInit(c *gin.Context) {
	logger := h.logger(c, "HandleInit")

	var req InitRequest
	if !h.bind(c, logger, &req) || !h.allowBuild(c, logger) {
		return
	}

	resp, err := h.svc.Init(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	respond(c, resp)
}

// HandleHierarchy handles POST /v1/codegraph/hierarchy.
func (h *Handlers) HandleHierarchy(c *gin.Context) {
	logger := h.logger(c, "HandleHierarchy")

	var req HierarchyRequest
	if !h.bind(c, logger, &req) {
		return
	}

	resp, err := h.svc.QueryHierarchicalGraph(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	respond(c, resp)
}

// HandleCallGraph handles POST /v1/codegraph/callgraph.
func (h *Handlers) HandleCallGraph(c *gin.Context) {
	logger := h.logger(c, "HandleCallGraph")

	var req CallGraphRequest
	if !h.bind(c, logger, &req) {
		return
	}

	resp, err := h.svc.QueryCallGraph(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	respond(c, resp)
}

// HandleSnippet handles POST /v1/codegraph/snippet.
func (h *Handlers) HandleSnippet(c *gin.Context) {
	logger := h.logger(c, "HandleSnippet")

	var req SnippetRequest
	if !h.bind(c, logger, &req) {
		return
	}

	resp, err := h.svc.QueryCodeSnippet(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	respond(c, resp)
}

// HandleSkeleton handles POST /v1/codegraph/skeleton.
//
// Per-file failures are reported inside the batch; the request itself
// succeeds once it validates.
func (h *Handlers) HandleSkeleton(c *gin.Context) {
	logger := h.logger(c, "HandleSkeleton")

	var req SkeletonRequest
	if !h.bind(c, logger, &req) {
		return
	}

	resp, err := h.svc.QueryCodeSkeleton(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	respond(c, resp)
}

// HandleInvestigate handles POST /v1/codegraph/investigate.
func (h *Handlers) HandleInvestigate(c *gin.Context) {
	logger := h.logger(c, "HandleInvestigate")

	var req InvestigateRequest
	if !h.bind(c, logger, &req) || !h.allowBuild(c, logger) {
		return
	}

	resp, err := h.svc.InvestigateRepo(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	respond(c, resp)
}

// HandleProjects handles GET /v1/codegraph/projects.
func (h *Handlers) HandleProjects(c *gin.Context) {
	getOrCreateRequestID(c)
	respond(c, h.svc.Projects())
}

// HandleHealth handles GET /v1/codegraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	respond(c, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleReady handles GET /v1/codegraph/ready.
//
// Returns 503 until at least one project generation is published.
func (h *Handlers) HandleReady(c *gin.Context) {
	ready, count := h.svc.Ready()
	body := Response{Success: ready, Data: ReadyResponse{Ready: ready, ProjectCount: count}}
	if !ready {
		body.Error = &ErrorBody{Code: CodeProjectNotFound, Message: "no project has been built"}
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handlers) logger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", handler)
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

// bind decodes the JSON body into req, writing an INVALID_ARGUMENT
// envelope on failure.
func (h *Handlers) bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		h.fail(c, logger, fmt.Errorf("%w: invalid request body: %w", ErrInvalidArgument, err))
		return false
	}
	return true
}

func (h *Handlers) allowBuild(c *gin.Context, logger *slog.Logger) bool {
	if h.buildLimiter == nil || h.buildLimiter.Allow() {
		return true
	}
	h.fail(c, logger, ErrRateLimited)
	return false
}

// fail writes the failure envelope for err.
func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "code", code, "error", err)
	} else {
		logger.Warn("Request rejected", "code", code, "error", err)
	}
	h.metrics.RecordError(context.WithoutCancel(c.Request.Context()), code)
	c.JSON(status, Response{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: err.Error()},
	})
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// getOrCreateRequestID returns the X-Request-ID header, generating one when
// absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
