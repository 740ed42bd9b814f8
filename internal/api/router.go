// Package api exposes the authoring and distribution operations as a
// resource-oriented HTTP JSON surface. All domain errors are classified at
// this boundary; handlers never panic the process.
package api

import (
	"net/http"

	"go.uber.org/zap"

	"agentfoundry/internal/assignment"
	"agentfoundry/internal/factory"
	"agentfoundry/internal/logging"
	"agentfoundry/internal/store"
)

// Router wires the HTTP surface to the store, version manager and resolver.
type Router struct {
	mux      *http.ServeMux
	store    *store.Store
	factory  *factory.Manager
	resolver *assignment.Resolver
	log      *zap.Logger
}

// NewRouter creates the router and registers every route.
func NewRouter(s *store.Store) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		store:    s,
		factory:  factory.NewManager(s),
		resolver: assignment.NewResolver(s),
		log:      logging.Get(logging.CategoryAPI),
	}
	r.registerRoutes()
	return r
}

func (r *Router) registerRoutes() {
	r.mux.HandleFunc("GET /api/health", r.handleHealth)
	r.mux.HandleFunc("GET /api/stats", r.handleStats)

	// Templates.
	r.mux.HandleFunc("GET /api/templates", r.handleListTemplates)
	r.mux.HandleFunc("POST /api/templates", r.handleCreateTemplate)
	r.mux.HandleFunc("GET /api/templates/{id}", r.handleGetTemplate)
	r.mux.HandleFunc("PATCH /api/templates/{id}", r.handlePatchTemplate)
	r.mux.HandleFunc("DELETE /api/templates/{id}", r.handleDeactivateTemplate)

	// Prompt fragments.
	r.mux.HandleFunc("GET /api/templates/{id}/layers", r.handleListLayers)
	r.mux.HandleFunc("POST /api/templates/{id}/layers", r.handleCreateLayer)
	r.mux.HandleFunc("PATCH /api/layers/{id}", r.handlePatchLayer)
	r.mux.HandleFunc("DELETE /api/layers/{id}", r.handleDeleteLayer)

	r.mux.HandleFunc("GET /api/templates/{id}/rules", r.handleListRules)
	r.mux.HandleFunc("POST /api/templates/{id}/rules", r.handleCreateRule)
	r.mux.HandleFunc("PATCH /api/rules/{id}", r.handlePatchRule)
	r.mux.HandleFunc("DELETE /api/rules/{id}", r.handleDeleteRule)

	r.mux.HandleFunc("GET /api/templates/{id}/examples", r.handleListExamples)
	r.mux.HandleFunc("POST /api/templates/{id}/examples", r.handleCreateExample)
	r.mux.HandleFunc("PATCH /api/examples/{id}", r.handlePatchExample)
	r.mux.HandleFunc("DELETE /api/examples/{id}", r.handleDeleteExample)

	// Compilation preview.
	r.mux.HandleFunc("GET /api/templates/{id}/compile", r.handleCompile)

	// Factory memories and versioning.
	r.mux.HandleFunc("GET /api/templates/{id}/memories", r.handleListMemories)
	r.mux.HandleFunc("POST /api/templates/{id}/memories", r.handleCreateMemory)
	r.mux.HandleFunc("PATCH /api/memories/{id}", r.handlePatchMemory)
	r.mux.HandleFunc("DELETE /api/memories/{id}", r.handleSoftDeleteMemory)
	r.mux.HandleFunc("POST /api/templates/{id}/publish", r.handlePublish)
	r.mux.HandleFunc("GET /api/templates/{id}/versions", r.handleListVersions)

	// Knowledge bases.
	r.mux.HandleFunc("GET /api/templates/{id}/knowledge", r.handleListKnowledge)
	r.mux.HandleFunc("POST /api/templates/{id}/knowledge", r.handleCreateKnowledge)
	r.mux.HandleFunc("PATCH /api/knowledge/{id}", r.handlePatchKnowledge)
	r.mux.HandleFunc("DELETE /api/knowledge/{id}", r.handleSoftDeleteKnowledge)

	// Assignments, telemetry, catalog.
	r.mux.HandleFunc("GET /api/templates/{id}/assignments", r.handleAudience)
	r.mux.HandleFunc("POST /api/templates/{id}/assignments", r.handleBulkAssign)
	r.mux.HandleFunc("DELETE /api/assignments/{id}", r.handleRevokeAssignment)
	r.mux.HandleFunc("POST /api/events", r.handleRecordEvent)
	r.mux.HandleFunc("GET /api/users/{id}/catalog", r.handleCatalog)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := r.store.Stats()
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
