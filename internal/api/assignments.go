package api

import (
	"net/http"

	"agentfoundry/internal/types"
)

// bulkAssignRequest is the wire shape of a bulk assignment.
type bulkAssignRequest struct {
	UserIDs         []string             `json:"user_ids"`
	AssignmentType  types.AssignmentType `json:"assignment_type"`
	ConfigOverrides map[string]any       `json:"config_overrides"`
}

// handleBulkAssign assigns many users at once. Per-user failures come back
// in the response body; the call itself succeeds as long as the template
// exists and the request is well-formed.
func (r *Router) handleBulkAssign(w http.ResponseWriter, req *http.Request) {
	var body bulkAssignRequest
	if err := decodeBody(req, &body); err != nil {
		r.writeError(w, err)
		return
	}
	res, err := r.resolver.BulkAssign(req.PathValue("id"), body.UserIDs, body.AssignmentType, body.ConfigOverrides)
	if err != nil {
		r.writeError(w, err)
		return
	}
	status := http.StatusOK
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

func (r *Router) handleAudience(w http.ResponseWriter, req *http.Request) {
	aud, err := r.resolver.Audience(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aud)
}

func (r *Router) handleRevokeAssignment(w http.ResponseWriter, req *http.Request) {
	a, err := r.resolver.Revoke(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleRecordEvent ingests install/uninstall telemetry from the client.
func (r *Router) handleRecordEvent(w http.ResponseWriter, req *http.Request) {
	var ev types.InstallEvent
	if err := decodeBody(req, &ev); err != nil {
		r.writeError(w, err)
		return
	}
	if err := r.store.RecordInstallEvent(&ev); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (r *Router) handleCatalog(w http.ResponseWriter, req *http.Request) {
	cat, err := r.resolver.ResolveCatalog(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}
