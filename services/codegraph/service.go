// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codegraph is the query service and HTTP surface of the code graph
// server.
//
// Service validates requests, selects the project generation a query runs
// against and dispatches to the index, hierarchy and snippet packages.
// Handlers wrap every result in the {success, data | error} envelope.
//
// # Thread Safety
//
// Service and Handlers are safe for concurrent use.
package codegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/hierarchy"
	"github.com/AleutianAI/codegraph/services/codegraph/index"
	"github.com/AleutianAI/codegraph/services/codegraph/snippet"
	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

// Query limits.
const (
	DefaultMaxDepth = 3
	MaxDepthCeiling = 10

	// InvestigateTopN is the number of core functions InvestigateRepo returns.
	InvestigateTopN = 10
)

var tracer = otel.Tracer("codegraph.service")

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// AllowedRoots restricts project and file paths. Empty allows any.
	AllowedRoots []string

	// BuildTimeout bounds Build, Init and InvestigateRepo.
	BuildTimeout time.Duration

	// DefaultExcludes are added to every build's exclude patterns.
	DefaultExcludes []string
}

// DefaultServiceConfig returns the server defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{BuildTimeout: index.DefaultBuildTimeout}
}

// Service implements the codegraph operations.
type Service struct {
	config    ServiceConfig
	index     *index.Index
	extractor *snippet.Extractor
	validate  *validator.Validate
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// NewService creates a service over idx.
//
// Inputs:
//   - config: Service configuration.
//   - idx: The project index. Must not be nil.
//   - extractor: Snippet and skeleton extractor. Nil creates one over a
//     default cached reader and the index's parser registry.
//   - logger: Nil uses slog.Default().
func NewService(config ServiceConfig, idx *index.Index, extractor *snippet.Extractor, logger *slog.Logger) *Service {
	if config.BuildTimeout <= 0 {
		config.BuildTimeout = index.DefaultBuildTimeout
	}
	if extractor == nil {
		extractor = snippet.NewExtractor(snippet.NewCachedReader(0, 0), idx.Registry(), 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	roots := make([]string, 0, len(config.AllowedRoots))
	for _, r := range config.AllowedRoots {
		roots = append(roots, filepath.Clean(r))
	}
	config.AllowedRoots = roots

	return &Service{
		config:    config,
		index:     idx,
		extractor: extractor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With(slog.String("component", "service")),
	}
}

// SetMetrics enables per-operation metrics.
func (s *Service) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// Index returns the underlying project index.
func (s *Service) Index() *index.Index {
	return s.index
}

// startOp opens a span for operation and returns a finisher that records
// the outcome.
func (s *Service) startOp(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Service."+operation, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		telemetry.RecordError(span, err)
		span.End()
		s.metrics.RecordQuery(ctx, operation, time.Since(start), err)
	}
}

// =============================================================================
// Build and lifecycle
// =============================================================================

// Build builds the project, or returns its cached generation unless
// ForceRebuild is set.
//
// The build runs under BuildTimeout and is detached from the caller's
// cancellation: a client disconnect does not abort it.
//
// Errors:
//   - ErrRelativePath, ErrPathTraversal, ErrPathNotAllowed: Bad project_dir.
//   - ErrBuildInProgress: Another build of the same project is running.
//   - ErrBuildTimeout: The build exceeded BuildTimeout.
//   - ErrNoSourceFiles, ErrProjectTooLarge, ErrParseFailure: Build failures.
func (s *Service) Build(ctx context.Context, req BuildRequest) (resp *BuildResponse, err error) {
	ctx, finish := s.startOp(ctx, "build", attribute.String("project_dir", req.ProjectDir))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	root, err := s.validateProjectDir(req.ProjectDir)
	if err != nil {
		return nil, err
	}

	buildCtx, cancel := s.buildContext(ctx)
	defer cancel()
	result, err := s.index.Build(buildCtx, index.BuildRequest{
		RootDir:         root,
		ExcludePatterns: s.excludes(req.ExcludePatterns),
		ForceRebuild:    req.ForceRebuild,
	})
	if err != nil {
		return nil, s.buildError(err)
	}

	g := result.Generation
	return &BuildResponse{
		ProjectID:       g.ProjectID(),
		GenerationID:    g.ID(),
		RootDir:         g.RootDir(),
		TotalFiles:      g.TotalFiles(),
		TotalFunctions:  g.TotalFunctions(),
		TotalRelations:  g.TotalRelations(),
		UnresolvedCalls: g.UnresolvedCalls(),
		FailedFiles:     g.Failures(),
		CacheHit:        result.CacheHit,
		BuildTimeMs:     result.Duration.Milliseconds(),
		BuiltAt:         g.BuiltAt(),
	}, nil
}

// Init loads the project from memory or the snapshot store, building it
// only when neither has it.
func (s *Service) Init(ctx context.Context, req InitRequest) (resp *InitResponse, err error) {
	ctx, finish := s.startOp(ctx, "init", attribute.String("project_dir", req.ProjectDir))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	result, err := s.load(ctx, req.ProjectDir, req.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	g := result.Generation
	return &InitResponse{
		ProjectID:       g.ProjectID(),
		LoadedFromCache: result.LoadedFromCache,
		CacheHit:        result.CacheHit,
		TotalFunctions:  g.TotalFunctions(),
		TotalFiles:      g.TotalFiles(),
	}, nil
}

func (s *Service) load(ctx context.Context, projectDir string, excludes []string) (*index.BuildResult, error) {
	root, err := s.validateProjectDir(projectDir)
	if err != nil {
		return nil, err
	}
	buildCtx, cancel := s.buildContext(ctx)
	defer cancel()
	result, err := s.index.Load(buildCtx, index.BuildRequest{
		RootDir:         root,
		ExcludePatterns: s.excludes(excludes),
	})
	if err != nil {
		return nil, s.buildError(err)
	}
	return result, nil
}

func (s *Service) buildContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.BuildTimeout)
}

func (s *Service) buildError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrBuildTimeout, s.config.BuildTimeout, err)
	}
	return err
}

func (s *Service) excludes(patterns []string) []string {
	if len(s.config.DefaultExcludes) == 0 {
		return patterns
	}
	out := make([]string, 0, len(patterns)+len(s.config.DefaultExcludes))
	out = append(out, patterns...)
	return append(out, s.config.DefaultExcludes...)
}

// Projects lists the published projects, newest first.
func (s *Service) Projects() *ProjectsResponse {
	gens := s.index.Projects()
	out := make([]ProjectSummary, 0, len(gens))
	for _, g := range gens {
		out = append(out, ProjectSummary{
			ProjectID:      g.ProjectID(),
			GenerationID:   g.ID(),
			RootDir:        g.RootDir(),
			ModulePath:     g.Metadata().ModulePath,
			TotalFiles:     g.TotalFiles(),
			TotalFunctions: g.TotalFunctions(),
			TotalRelations: g.TotalRelations(),
			BuiltAt:        g.BuiltAt(),
		})
	}
	return &ProjectsResponse{Projects: out}
}

// Ready reports whether any generation is published.
func (s *Service) Ready() (bool, int) {
	n := len(s.index.Projects())
	return n > 0, n
}

// =============================================================================
// Queries
// =============================================================================

// QueryHierarchicalGraph returns a function-rooted call tree when
// RootFunction is set, else the project's directory tree.
func (s *Service) QueryHierarchicalGraph(ctx context.Context, req HierarchyRequest) (resp *HierarchyResponse, err error) {
	_, finish := s.startOp(ctx, "hierarchy", attribute.String("root_function", req.RootFunction))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	g, rel, err := s.selectGeneration(req.ProjectID, req.FilePath)
	if err != nil {
		return nil, err
	}

	opts := hierarchy.Options{
		MaxDepth:          clampDepth(req.MaxDepth),
		IncludeFileInfo:   req.IncludeFileInfo == nil || *req.IncludeFileInfo,
		IncludeUnresolved: req.IncludeUnresolved,
	}
	if req.RootFunction != "" {
		return hierarchy.BuildFunctionTree(g, req.RootFunction, rel, opts)
	}
	return hierarchy.BuildProjectTree(g, opts)
}

// QueryCallGraph returns the functions of a file with their outgoing
// edges, or, with FunctionName, the functions reached from it within
// max_depth.
//
// A file with no functions yields an empty list, not an error.
func (s *Service) QueryCallGraph(ctx context.Context, req CallGraphRequest) (resp *CallGraphResponse, err error) {
	_, finish := s.startOp(ctx, "callgraph", attribute.String("filepath", req.FilePath))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	g, rel, err := s.selectGeneration(req.ProjectID, req.FilePath)
	if err != nil {
		return nil, err
	}
	if !g.HasFile(rel) {
		return nil, fmt.Errorf("%w: %s in project %s", ErrFileNotFound, req.FilePath, g.ProjectID())
	}

	resp = &CallGraphResponse{
		ProjectID: g.ProjectID(),
		FilePath:  rel,
		Functions: []FunctionInfo{},
		Edges:     []graph.CallEdge{},
	}

	if req.FunctionName == "" {
		fns, err := g.FunctionsInFile(rel)
		if err != nil {
			return nil, err
		}
		for _, fn := range fns {
			resp.Functions = append(resp.Functions, functionInfo(g, fn))
			calls, _ := g.CallsOf(fn.ID)
			resp.Edges = append(resp.Edges, calls...)
		}
		return resp, nil
	}

	fn, _, err := g.ResolveFunction(req.FunctionName, rel)
	if err != nil {
		return nil, err
	}
	exp, err := g.Expand(fn.ID, clampDepth(req.MaxDepth))
	if err != nil {
		return nil, err
	}
	for _, id := range exp.FunctionIDs() {
		if f, ok := g.Function(id); ok {
			resp.Functions = append(resp.Functions, functionInfo(g, f))
		}
	}
	resp.Edges = append(resp.Edges, exp.Edges...)
	resp.Truncated = exp.Truncated
	return resp, nil
}

func functionInfo(g *graph.Generation, fn *graph.Function) FunctionInfo {
	return FunctionInfo{
		ID:        fn.ID,
		Name:      fn.Name,
		FilePath:  fn.FilePath,
		LineStart: fn.LineStart,
		LineEnd:   fn.LineEnd,
		Signature: fn.Signature,
		Callers:   callerRelations(g, fn.ID),
		Callees:   calleeRelations(g, fn.ID),
	}
}

// calleeRelations lists each resolved callee once, at its first call line.
func calleeRelations(g *graph.Generation, id string) []CallRelation {
	out := []CallRelation{}
	calls, _ := g.CallsOf(id)
	seen := make(map[string]bool)
	for _, e := range calls {
		if e.Status != graph.EdgeResolved || seen[e.CalleeID] {
			continue
		}
		seen[e.CalleeID] = true
		if callee, ok := g.Function(e.CalleeID); ok {
			out = append(out, CallRelation{
				FunctionID:   callee.ID,
				FunctionName: callee.Name,
				FilePath:     callee.FilePath,
				LineNumber:   e.Line,
			})
		}
	}
	return out
}

// callerRelations lists each caller at the line of its first call to id.
func callerRelations(g *graph.Generation, id string) []CallRelation {
	out := []CallRelation{}
	callers, _ := g.CallersOf(id)
	for _, callerID := range callers {
		caller, ok := g.Function(callerID)
		if !ok {
			continue
		}
		line := caller.LineStart
		calls, _ := g.CallsOf(callerID)
		for _, e := range calls {
			if e.CalleeID == id {
				line = e.Line
				break
			}
		}
		out = append(out, CallRelation{
			FunctionID:   caller.ID,
			FunctionName: caller.Name,
			FilePath:     caller.FilePath,
			LineNumber:   line,
		})
	}
	return out
}

// QueryCodeSnippet returns a function's source, or the whole file when
// FunctionName is empty.
//
// Files outside every published generation are read and parsed on demand;
// their path must then be absolute and pass the allowed-root check.
func (s *Service) QueryCodeSnippet(ctx context.Context, req SnippetRequest) (resp *SnippetResponse, err error) {
	ctx, finish := s.startOp(ctx, "snippet",
		attribute.String("filepath", req.FilePath),
		attribute.String("function_name", req.FunctionName))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	target, err := s.locateFile(req.ProjectID, req.FilePath)
	if err != nil {
		return nil, err
	}

	contextLines := 0
	if req.IncludeContext {
		contextLines = snippet.DefaultContextLines
		if req.ContextLines != nil {
			contextLines = *req.ContextLines
		}
	}

	resp = &SnippetResponse{
		FilePath:     target.display,
		FunctionName: req.FunctionName,
		Language:     target.language,
	}
	if resp.Language == "" {
		resp.Language = s.extractor.Language(target.abs)
	}

	var snip snippet.Snippet
	switch {
	case req.FunctionName == "":
		snip, err = s.extractor.WholeFile(ctx, target.abs)
	case target.gen != nil:
		fn, _, rerr := target.gen.ResolveFunction(req.FunctionName, target.rel)
		if rerr != nil {
			return nil, rerr
		}
		snip, err = s.extractor.Snippet(ctx, target.abs, fn.LineStart, fn.LineEnd, contextLines)
	default:
		decl, lang, ferr := s.extractor.FindFunction(ctx, target.abs, target.display, req.FunctionName)
		if ferr != nil {
			return nil, ferr
		}
		resp.Language = lang
		snip, err = s.extractor.Snippet(ctx, target.abs, decl.StartLine, decl.EndLine, contextLines)
	}
	if err != nil {
		return nil, err
	}

	resp.CodeSnippet = snip.Code
	resp.LineStart = snip.LineStart
	resp.LineEnd = snip.LineEnd
	return resp, nil
}

// QueryCodeSkeleton renders each file's declarations with bodies elided.
// A file that cannot be located, read or parsed carries an inline error;
// the batch always completes.
func (s *Service) QueryCodeSkeleton(ctx context.Context, req SkeletonRequest) (resp *SkeletonResponse, err error) {
	ctx, finish := s.startOp(ctx, "skeleton", attribute.Int("files", len(req.FilePaths)))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	out := make([]FileSkeleton, len(req.FilePaths))
	var (
		batch   []snippet.SkeletonRequest
		indexes []int
	)
	for i, p := range req.FilePaths {
		target, err := s.locateFile(req.ProjectID, p)
		if err != nil {
			out[i] = FileSkeleton{FilePath: p, Error: errorBody(err)}
			continue
		}
		batch = append(batch, snippet.SkeletonRequest{DisplayPath: p, AbsPath: target.abs})
		indexes = append(indexes, i)
	}

	for j, r := range s.extractor.Skeletons(ctx, batch) {
		out[indexes[j]] = fileSkeleton(r)
	}
	return &SkeletonResponse{Skeletons: out}, nil
}

func fileSkeleton(r snippet.SkeletonResult) FileSkeleton {
	fs := FileSkeleton{FilePath: r.FilePath, Language: r.Language}
	if r.Err != nil {
		fs.Error = errorBody(r.Err)
		return fs
	}
	fs.SkeletonText = r.Skeleton
	return fs
}

// InvestigateRepo builds or reuses the project and summarizes its most
// connected functions: the top functions by resolved out-degree, ties by
// id, with the skeletons of the files declaring them.
func (s *Service) InvestigateRepo(ctx context.Context, req InvestigateRequest) (resp *InvestigateResponse, err error) {
	ctx, finish := s.startOp(ctx, "investigate", attribute.String("project_dir", req.ProjectDir))
	defer finish(&err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	result, err := s.load(ctx, req.ProjectDir, req.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	g := result.Generation

	type ranked struct {
		fn     *graph.Function
		degree int
	}
	all := g.Functions()
	rank := make([]ranked, 0, len(all))
	for _, fn := range all {
		rank = append(rank, ranked{fn: fn, degree: g.OutDegree(fn.ID)})
	}
	sort.SliceStable(rank, func(i, j int) bool {
		if rank[i].degree != rank[j].degree {
			return rank[i].degree > rank[j].degree
		}
		return rank[i].fn.ID < rank[j].fn.ID
	})
	if len(rank) > InvestigateTopN {
		rank = rank[:InvestigateTopN]
	}

	resp = &InvestigateResponse{
		ProjectID:      g.ProjectID(),
		TotalFunctions: g.TotalFunctions(),
		TotalRelations: g.TotalRelations(),
		CoreFunctions:  make([]CoreFunction, 0, len(rank)),
		FileSkeletons:  []FileSkeleton{},
	}
	var batch []snippet.SkeletonRequest
	seenFile := make(map[string]bool)
	for _, r := range rank {
		resp.CoreFunctions = append(resp.CoreFunctions, CoreFunction{
			ID:        r.fn.ID,
			Name:      r.fn.Name,
			FilePath:  r.fn.FilePath,
			OutDegree: r.degree,
			Callees:   calleeRelations(g, r.fn.ID),
		})
		if !seenFile[r.fn.FilePath] {
			seenFile[r.fn.FilePath] = true
			batch = append(batch, snippet.SkeletonRequest{
				DisplayPath: r.fn.FilePath,
				AbsPath:     filepath.Join(g.RootDir(), filepath.FromSlash(r.fn.FilePath)),
			})
		}
	}
	for _, r := range s.extractor.Skeletons(ctx, batch) {
		resp.FileSkeletons = append(resp.FileSkeletons, fileSkeleton(r))
	}
	return resp, nil
}

// =============================================================================
// Validation and project selection
// =============================================================================

func (s *Service) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// validateProjectDir checks that dir is absolute, free of ".." elements
// and inside an allowed root. It returns the cleaned path.
func (s *Service) validateProjectDir(dir string) (string, error) {
	if err := s.validatePath(dir); err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}

func (s *Service) validatePath(p string) error {
	if !filepath.IsAbs(p) {
		return fmt.Errorf("%w: %q", ErrRelativePath, p)
	}
	if hasDotDot(p) {
		return fmt.Errorf("%w: %q", ErrPathTraversal, p)
	}
	if len(s.config.AllowedRoots) == 0 {
		return nil
	}

	candidates := []string{filepath.Clean(p)}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		candidates = append(candidates, resolved)
	}
	for _, root := range s.config.AllowedRoots {
		allowedAll := true
		for _, c := range candidates {
			if !within(root, c) {
				allowedAll = false
				break
			}
		}
		if allowedAll {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrPathNotAllowed, p)
}

func hasDotDot(p string) bool {
	for _, elem := range strings.FieldsFunc(filepath.ToSlash(p), func(r rune) bool { return r == '/' }) {
		if elem == ".." {
			return true
		}
	}
	return false
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	_, ok := index.RelativeTo(root, p)
	return ok
}

// selectGeneration picks the generation a query runs against: the explicit
// project, else the generation containing filePath, else the latest. The
// second result is filePath relative to the chosen root, or "".
func (s *Service) selectGeneration(projectID, filePath string) (*graph.Generation, string, error) {
	if projectID != "" {
		g, err := s.index.Current(projectID)
		if err != nil {
			return nil, "", err
		}
		rel, err := relativeIn(g, filePath)
		return g, rel, err
	}
	if filePath != "" {
		if g, rel, ok := s.index.FindByFile(filePath); ok {
			return g, rel, nil
		}
	}
	g, err := s.index.Latest()
	if err != nil {
		return nil, "", fmt.Errorf("%w: no project has been built", ErrProjectNotFound)
	}
	rel, err := relativeIn(g, filePath)
	return g, rel, err
}

// relativeIn returns filePath relative to g's root in slash form.
func relativeIn(g *graph.Generation, filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}
	if filepath.IsAbs(filePath) {
		if rel, ok := index.RelativeTo(g.RootDir(), filepath.Clean(filePath)); ok {
			return rel, nil
		}
		if resolved, err := filepath.EvalSymlinks(filePath); err == nil {
			if rel, ok := index.RelativeTo(g.RootDir(), resolved); ok {
				return rel, nil
			}
		}
		return "", fmt.Errorf("%w: %s is outside project %s", ErrFileNotFound, filePath, g.ProjectID())
	}
	rel := path.Clean(filepath.ToSlash(filePath))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, filePath)
	}
	return rel, nil
}

// fileTarget is a file resolved for snippet or skeleton extraction.
type fileTarget struct {
	abs      string
	display  string
	rel      string
	language string

	// gen is the generation indexing the file, nil for on-demand files.
	gen *graph.Generation
}

// locateFile resolves filePath against the published generations, falling
// back to an on-demand absolute path.
func (s *Service) locateFile(projectID, filePath string) (fileTarget, error) {
	var g *graph.Generation
	var rel string
	if projectID != "" {
		cur, err := s.index.Current(projectID)
		if err != nil {
			return fileTarget{}, err
		}
		r, err := relativeIn(cur, filePath)
		if err != nil {
			return fileTarget{}, err
		}
		g, rel = cur, r
	} else if found, r, ok := s.index.FindByFile(filePath); ok {
		g, rel = found, r
	}

	if g != nil && g.HasFile(rel) {
		f, _ := g.File(rel)
		return fileTarget{
			abs:      filepath.Join(g.RootDir(), filepath.FromSlash(rel)),
			display:  rel,
			rel:      rel,
			language: f.Language,
			gen:      g,
		}, nil
	}

	if !filepath.IsAbs(filePath) {
		if g != nil {
			// Known project, file not indexed: read it from the project root.
			abs := filepath.Join(g.RootDir(), filepath.FromSlash(rel))
			return fileTarget{abs: abs, display: rel, rel: rel}, nil
		}
		return fileTarget{}, fmt.Errorf("%w: %s is not part of any project", ErrFileNotFound, filePath)
	}
	if err := s.validatePath(filePath); err != nil {
		return fileTarget{}, err
	}
	clean := filepath.Clean(filePath)
	return fileTarget{abs: clean, display: clean}, nil
}

// clampDepth applies the default and the ceiling. Negative depths are
// rejected earlier by request validation.
func clampDepth(d *int) int {
	if d == nil {
		return DefaultMaxDepth
	}
	return min(*d, MaxDepthCeiling)
}

func errorBody(err error) *ErrorBody {
	_, code := Classify(err)
	return &ErrorBody{Code: code, Message: err.Error()}
}
