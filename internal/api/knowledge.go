package api

import (
	"net/http"

	"agentfoundry/internal/types"
)

func (r *Router) handleListKnowledge(w http.ResponseWriter, req *http.Request) {
	kbs, err := r.store.ListKnowledge(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(kbs))
}

func (r *Router) handleCreateKnowledge(w http.ResponseWriter, req *http.Request) {
	var kb types.KnowledgeBase
	if err := decodeBody(req, &kb); err != nil {
		r.writeError(w, err)
		return
	}
	kb.TemplateID = req.PathValue("id")
	if err := r.store.CreateKnowledge(&kb); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, kb)
}

// handlePatchKnowledge applies operator edits and indexer status reports
// alike; the store enforces the indexing state machine either way.
func (r *Router) handlePatchKnowledge(w http.ResponseWriter, req *http.Request) {
	var patch types.KnowledgePatch
	if err := decodeBody(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}
	kb, err := r.store.UpdateKnowledge(req.PathValue("id"), patch)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kb)
}

func (r *Router) handleSoftDeleteKnowledge(w http.ResponseWriter, req *http.Request) {
	if err := r.store.SoftDeleteKnowledge(req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
