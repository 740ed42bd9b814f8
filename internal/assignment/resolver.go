// Package assignment resolves which users get which templates: bulk
// assignment under push or entitled semantics, soft revocation, and the
// per-user catalog read model the installed client syncs against.
package assignment

import (
	"go.uber.org/zap"

	"agentfoundry/internal/logging"
	"agentfoundry/internal/store"
	"agentfoundry/internal/types"
)

// Resolver performs assignment operations against the store.
type Resolver struct {
	store *store.Store
	log   *zap.Logger
}

// NewResolver creates a resolver over the given store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{
		store: s,
		log:   logging.Get(logging.CategoryAssignment),
	}
}

// BulkAssign assigns every user in userIDs to the template. Individual
// failures never abort the batch; each failed user is reported alongside the
// successes. The template itself must exist, otherwise the whole call fails
// before any assignment is attempted.
func (r *Resolver) BulkAssign(templateID string, userIDs []string, at types.AssignmentType, overrides map[string]any) (*types.BatchResult, error) {
	if len(userIDs) == 0 {
		return nil, types.ValidationError("user_ids", "at least one user id is required")
	}
	if !at.Valid() {
		return nil, types.ValidationError("assignment_type", "unknown assignment type %q", at)
	}
	if _, err := r.store.GetTemplate(templateID); err != nil {
		return nil, err
	}

	res := &types.BatchResult{}
	for _, userID := range userIDs {
		a, err := r.store.CreateAssignment(userID, templateID, at, overrides)
		if err != nil {
			res.Failed = append(res.Failed, types.BatchError{UserID: userID, Message: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, *a)
	}

	r.log.Info("bulk assignment finished",
		zap.String("template_id", templateID),
		zap.String("assignment_type", string(at)),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// Revoke soft-revokes one assignment by id.
func (r *Resolver) Revoke(assignmentID string) (*types.Assignment, error) {
	return r.store.RevokeAssignment(assignmentID)
}

// TemplateAudience is the operator-facing view of who a template reaches:
// every assignment row, active and historical, plus install telemetry.
type TemplateAudience struct {
	TemplateID  string               `json:"template_id"`
	Assignments []types.Assignment   `json:"assignments"`
	Events      []types.InstallEvent `json:"events"`
}

// Audience returns all assignments and install telemetry for a template.
func (r *Resolver) Audience(templateID string) (*TemplateAudience, error) {
	if _, err := r.store.GetTemplate(templateID); err != nil {
		return nil, err
	}
	assignments, err := r.store.ListAssignmentsByTemplate(templateID)
	if err != nil {
		return nil, err
	}
	events, err := r.store.ListInstallEvents(templateID)
	if err != nil {
		return nil, err
	}
	return &TemplateAudience{
		TemplateID:  templateID,
		Assignments: assignments,
		Events:      events,
	}, nil
}

// CatalogEntry pairs a template with the assignment that grants it and the
// factory version the client should converge to.
type CatalogEntry struct {
	TemplateID      string         `json:"template_id"`
	TemplateName    string         `json:"template_name"`
	AssignmentID    string         `json:"assignment_id"`
	ConfigOverrides map[string]any `json:"config_overrides,omitempty"`
	FactoryVersion  int            `json:"factory_version"`
}

// Catalog is a user's resolved target configuration: templates the client
// must force-install (push) and templates merely visible for opt-in install
// (entitled).
type Catalog struct {
	UserID   string         `json:"user_id"`
	Push     []CatalogEntry `json:"push"`
	Entitled []CatalogEntry `json:"entitled"`
}

// ResolveCatalog computes the catalog for one user from their active
// assignments. Deactivated templates drop out of the catalog; existing
// installs are the client's business.
func (r *Resolver) ResolveCatalog(userID string) (*Catalog, error) {
	assignments, err := r.store.ListAssignmentsForUser(userID)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{UserID: userID}
	for _, a := range assignments {
		if !a.IsActive {
			continue
		}
		tpl, err := r.store.GetTemplate(a.TemplateID)
		if err != nil {
			return nil, err
		}
		if !tpl.IsActive {
			continue
		}
		entry := CatalogEntry{
			TemplateID:      tpl.ID,
			TemplateName:    tpl.Name,
			AssignmentID:    a.ID,
			ConfigOverrides: a.ConfigOverrides,
			FactoryVersion:  tpl.FactoryVersion,
		}
		switch a.Type {
		case types.AssignmentPush:
			cat.Push = append(cat.Push, entry)
		case types.AssignmentEntitled:
			cat.Entitled = append(cat.Entitled, entry)
		}
	}
	return cat, nil
}
