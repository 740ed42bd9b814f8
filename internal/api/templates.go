package api

import (
	"net/http"

	"agentfoundry/internal/compiler"
	"agentfoundry/internal/store"
	"agentfoundry/internal/types"
)

func (r *Router) handleListTemplates(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := store.TemplateFilter{
		Query:           q.Get("q"),
		PlanTier:        q.Get("tier"),
		Category:        q.Get("category"),
		IncludeInactive: q.Get("include_inactive") == "true",
	}
	templates, err := r.store.ListTemplates(filter)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyList(templates))
}

func (r *Router) handleCreateTemplate(w http.ResponseWriter, req *http.Request) {
	var tpl types.AgentTemplate
	if err := decodeBody(req, &tpl); err != nil {
		r.writeError(w, err)
		return
	}
	if err := r.store.CreateTemplate(&tpl); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (r *Router) handleGetTemplate(w http.ResponseWriter, req *http.Request) {
	tpl, err := r.store.GetTemplate(req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (r *Router) handlePatchTemplate(w http.ResponseWriter, req *http.Request) {
	var patch types.TemplatePatch
	if err := decodeBody(req, &patch); err != nil {
		r.writeError(w, err)
		return
	}
	tpl, err := r.store.UpdateTemplate(req.PathValue("id"), patch)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (r *Router) handleDeactivateTemplate(w http.ResponseWriter, req *http.Request) {
	if err := r.store.DeactivateTemplate(req.PathValue("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompile renders the template's current prompt for the editor
// preview. Nothing is persisted; the preview always reflects draft state.
func (r *Router) handleCompile(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	tpl, err := r.store.GetTemplate(id)
	if err != nil {
		r.writeError(w, err)
		return
	}
	layers, err := r.store.ListLayers(id)
	if err != nil {
		r.writeError(w, err)
		return
	}
	rules, err := r.store.ListRules(id)
	if err != nil {
		r.writeError(w, err)
		return
	}
	examples, err := r.store.ListExamples(id)
	if err != nil {
		r.writeError(w, err)
		return
	}
	res, err := compiler.Compile(compiler.Input{
		Template: tpl,
		Layers:   layers,
		Rules:    rules,
		Examples: examples,
	})
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
