package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agentfoundry/internal/assignment"
	"agentfoundry/internal/compiler"
	"agentfoundry/internal/store"
	"agentfoundry/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	srv := httptest.NewServer(NewRouter(s))
	t.Cleanup(func() {
		http.DefaultClient.CloseIdleConnections()
		srv.Close()
		s.Close()
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createTemplate(t *testing.T, srv *httptest.Server) types.AgentTemplate {
	t.Helper()
	var tpl types.AgentTemplate
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/templates", map[string]any{
		"name":        "Support Bot",
		"core_prompt": "You help Oraya customers.",
		"category":    "support",
	}, &tpl)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return tpl
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestTemplateLifecycle(t *testing.T) {
	srv := newTestServer(t)
	tpl := createTemplate(t, srv)

	var got types.AgentTemplate
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/templates/"+tpl.ID, nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Support Bot", got.Name)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/templates/"+tpl.ID, map[string]any{"tagline": "Always on"}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Always on", got.Tagline)

	var list []types.AgentTemplate
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/templates?q=support", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/templates/"+tpl.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/templates", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, list)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	// Unknown id -> 404.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/templates/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing required field -> 400 with the offending field.
	var body errorBody
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates", map[string]any{"name": "No Prompt"}, &body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, types.KindValidation, body.Error.Kind)
	require.Equal(t, "core_prompt", body.Error.Field)

	// Publishing with no memories -> 422.
	tpl := createTemplate(t, srv)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/publish", nil, &body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, types.KindEmptyPublish, body.Error.Kind)
}

func TestCompilePreview(t *testing.T) {
	srv := newTestServer(t)
	tpl := createTemplate(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/layers", map[string]any{
		"layer_type": "guardrail",
		"content":    "Never share account numbers.",
		"priority":   10,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/rules", map[string]any{
		"rule_type": "must_do",
		"content":   "verify the customer first",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/examples", map[string]any{
		"user_input":      "Where is my order?",
		"expected_output": "Let me check that for you.",
		"explanation":     "tone reference",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var res compiler.Result
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/templates/"+tpl.ID+"/compile", nil, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, res.Prompt, "You help Oraya customers.")
	require.Contains(t, res.Prompt, "Never share account numbers.")
	require.Contains(t, res.Prompt, "MUST: verify the customer first")
	require.NotContains(t, res.Prompt, "tone reference")
	require.Equal(t, 1, res.Stats.Layers)
	require.Equal(t, 1, res.Stats.Rules)
	require.Equal(t, 1, res.Stats.Examples)
}

func TestPublishOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tpl := createTemplate(t, srv)

	var mem types.FactoryMemory
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/memories", map[string]any{
		"category":   "knowledge",
		"content":    "Oraya uses TypeScript",
		"importance": 0.9,
	}, &mem)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, mem.FactoryID)

	var sum types.PublishSummary
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/publish", nil, &sum)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, sum.ToVersion)
	require.Len(t, sum.Added, 1)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/memories/"+mem.ID, map[string]any{
		"content": "Oraya uses TypeScript and Go",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/publish", nil, &sum)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, sum.ToVersion)
	require.Len(t, sum.Modified, 1)
	require.Empty(t, sum.Added)
	require.Empty(t, sum.Removed)

	var versions []types.VersionRecord
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/templates/"+tpl.ID+"/versions", nil, &versions)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, versions, 2)
}

func TestKnowledgeOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tpl := createTemplate(t, srv)

	var body errorBody
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/knowledge", map[string]any{
		"kb_type": "url",
	}, &body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "source_url", body.Error.Field)

	var kb types.KnowledgeBase
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/knowledge", map[string]any{
		"kb_type":    "url",
		"name":       "docs",
		"source_url": "https://docs.example.com",
	}, &kb)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, types.IndexingPending, kb.IndexingStatus)

	// Indexer reports progress; an illegal jump is refused.
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/knowledge/"+kb.ID, map[string]any{
		"indexing_status": "indexed",
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/knowledge/"+kb.ID, map[string]any{
		"indexing_status": "indexing",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/knowledge/"+kb.ID, map[string]any{
		"indexing_status": "indexed",
		"total_chunks":    12,
	}, &kb)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 12, kb.TotalChunks)
}

func TestAssignmentsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tpl := createTemplate(t, srv)

	var res types.BatchResult
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/templates/"+tpl.ID+"/assignments", map[string]any{
		"user_ids":        []string{"alice", "", "bob"},
		"assignment_type": "push",
	}, &res)
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	require.Len(t, res.Succeeded, 2)
	require.Len(t, res.Failed, 1)

	var cat assignment.Catalog
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/users/alice/catalog", nil, &cat)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, cat.Push, 1)
	require.Equal(t, tpl.ID, cat.Push[0].TemplateID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/events", map[string]any{
		"user_id":     "alice",
		"template_id": tpl.ID,
		"event_type":  "install",
		"os":          "ios",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var aud assignment.TemplateAudience
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/templates/"+tpl.ID+"/assignments", nil, &aud)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, aud.Assignments, 2)
	require.Len(t, aud.Events, 1)

	var revoked types.Assignment
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/assignments/%s", srv.URL, res.Succeeded[0].ID), nil, &revoked)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, revoked.IsActive)
}
