package api

import (
	"net/http"

	"agentfoundry/internal/types"
)

// ========== Prompt layers ==========

func (r *Router) handleListLayers(w http.ResponseWriter, req *http.Request) {
	layers, err := r.store.ListLayers(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(layers))
}

func (r *Router) handleCreateLayer(w http.ResponseWriter, req *http.Request) {
	var layer types.PromptLayer
	if err := decodeBody(req, &layer); err != nil {
		r.writeError(w, err)
		return
	}
	layer.TemplateID = req.PathValue("id")
	if err := r.store.CreateLayer(&layer); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, layer)
}

func (r *Router) handlePatchLayer(w http.ResponseWriter, req *http.Request) {
	var patch types.LayerPatch
	if err := decodeBody(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}
	layer, err := r.store.UpdateLayer(req.PathValue("id"), patch)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layer)
}

func (r *Router) handleDeleteLayer(w http.ResponseWriter, req *http.Request) {
	if err := r.store.DeleteLayer(req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Rules ==========

func (r *Router) handleListRules(w http.ResponseWriter, req *http.Request) {
	rules, err := r.store.ListRules(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(rules))
}

func (r *Router) handleCreateRule(w http.ResponseWriter, req *http.Request) {
	var rule types.Rule
	if err := decodeBody(req, &rule); err != nil {
		r.writeError(w, err)
		return
	}
	rule.TemplateID = req.PathValue("id")
	if err := r.store.CreateRule(&rule); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (r *Router) handlePatchRule(w http.ResponseWriter, req *http.Request) {
	var patch types.RulePatch
	if err := decodeBody(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}
	rule, err := r.store.UpdateRule(req.PathValue("id"), patch)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (r *Router) handleDeleteRule(w http.ResponseWriter, req *http.Request) {
	if err := r.store.DeleteRule(req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ========== Examples ==========

func (r *Router) handleListExamples(w http.ResponseWriter, req *http.Request) {
	examples, err := r.store.ListExamples(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(examples))
}

func (r *Router) handleCreateExample(w http.ResponseWriter, req *http.Request) {
	var example types.Example
	if err := decodeBody(req, &example); err != nil {
		r.writeError(w, err)
		return
	}
	example.TemplateID = req.PathValue("id")
	if err := r.store.CreateExample(&example); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, example)
}

func (r *Router) handlePatchExample(w http.ResponseWriter, req *http.Request) {
	var patch types.ExamplePatch
	if err := decodeBody(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}
	example, err := r.store.UpdateExample(req.PathValue("id"), patch)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, example)
}

func (r *Router) handleDeleteExample(w http.ResponseWriter, req *http.Request) {
	if err := r.store.DeleteExample(req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
