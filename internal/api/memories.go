package api

import (
	"net/http"

	"agentfoundry/internal/types"
)

func (r *Router) handleListMemories(w http.ResponseWriter, req *http.Request) {
	memories, err := r.store.ListMemories(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(memories))
}

func (r *Router) handleCreateMemory(w http.ResponseWriter, req *http.Request) {
	var m types.FactoryMemory
	if err := decodeBody(req, &m); err != nil {
		r.writeError(w, err)
		return
	}
	m.TemplateID = req.PathValue("id")
	// Clients never supply factory ids; the store mints them.
	m.FactoryID = ""
	if err := r.store.CreateMemory(&m); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (r *Router) handlePatchMemory(w http.ResponseWriter, req *http.Request) {
	var patch types.MemoryPatch
	if err := decodeBody(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}
	m, err := r.store.UpdateMemory(req.PathValue("id"), patch)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (r *Router) handleSoftDeleteMemory(w http.ResponseWriter, req *http.Request) {
	if err := r.store.SoftDeleteMemory(req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePublish runs the atomic publish transition and returns its diff
// summary. A lost version race maps to 409; the caller retries.
func (r *Router) handlePublish(w http.ResponseWriter, req *http.Request) {
	summary, err := r.factory.Publish(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleListVersions(w http.ResponseWriter, req *http.Request) {
	versions, err := r.factory.Versions(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(versions))
}
