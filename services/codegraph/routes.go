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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /codegraph endpoints on rg.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/codegraph/build - Build or reuse a project generation
//	POST /v1/codegraph/init - Load a project, building only if needed
//	POST /v1/codegraph/hierarchy - Call tree or project tree
//	POST /v1/codegraph/callgraph - Functions of a file and their edges
//	POST /v1/codegraph/snippet - Function or file source
//	POST /v1/codegraph/skeleton - Declarations with bodies elided
//	POST /v1/codegraph/investigate - Most connected functions of a repo
//	GET  /v1/codegraph/projects - Published projects
//	GET  /v1/codegraph/health - Liveness
//	GET  /v1/codegraph/ready - Readiness
//
// Example:
//
//	svc := codegraph.NewService(codegraph.DefaultServiceConfig(), idx, nil, logger)
//	handlers := codegraph.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	codegraph.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	cg := rg.Group("/codegraph")
	{
		// Lifecycle
		cg.POST("/build", handlers.HandleBuild)
		cg.POST("/init", handlers.HandleInit)
		cg.GET("/projects", handlers.HandleProjects)

		// Queries
		cg.POST("/hierarchy", handlers.HandleHierarchy)
		cg.POST("/callgraph", handlers.HandleCallGraph)
		cg.POST("/snippet", handlers.HandleSnippet)
		cg.POST("/skeleton", handlers.HandleSkeleton)
		cg.POST("/investigate", handlers.HandleInvestigate)

		// Health
		cg.GET("/health", handlers.HandleHealth)
		cg.GET("/ready", handlers.HandleReady)
	}
}
