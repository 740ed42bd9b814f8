package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

const assignmentColumns = "id, user_id, template_id, assignment_type, is_active, config_overrides, assigned_at, revoked_at"

// CreateAssignment assigns a user to a template. Any existing active
// assignment for the (user, template) pair is revoked first, inside the same
// transaction, so at most one active row per pair ever exists.
func (s *Store) CreateAssignment(userID, templateID string, at types.AssignmentType, overrides map[string]any) (*types.Assignment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, types.ValidationError("user_id", "user id is required")
	}
	if !at.Valid() {
		return nil, types.ValidationError("assignment_type", "unknown assignment type %q", at)
	}
	if err := s.requireTemplate(templateID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin assignment transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	if _, err := tx.Exec(
		"UPDATE assignments SET is_active = 0, revoked_at = ? WHERE user_id = ? AND template_id = ? AND is_active = 1",
		ts, userID, templateID,
	); err != nil {
		return nil, fmt.Errorf("failed to revoke prior assignment: %w", err)
	}

	a := &types.Assignment{
		ID:              uuid.NewString(),
		UserID:          userID,
		TemplateID:      templateID,
		Type:            at,
		IsActive:        true,
		ConfigOverrides: overrides,
		AssignedAt:      ts,
	}
	overridesJSON, err := json.Marshal(a.ConfigOverrides)
	if err != nil {
		return nil, types.ValidationError("config_overrides", "overrides are not serializable: %v", err)
	}
	if a.ConfigOverrides == nil {
		overridesJSON = []byte("{}")
	}

	if _, err := tx.Exec(
		`INSERT INTO assignments (id, user_id, template_id, assignment_type, is_active, config_overrides, assigned_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		a.ID, a.UserID, a.TemplateID, string(a.Type), string(overridesJSON), a.AssignedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return a, nil
}

// RevokeAssignment soft-revokes an assignment by id. Revoking an already
// revoked assignment is a no-op.
func (s *Store) RevokeAssignment(id string) (*types.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("assignment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	if !a.IsActive {
		return a, nil
	}

	ts := now()
	if _, err := s.db.Exec(
		"UPDATE assignments SET is_active = 0, revoked_at = ? WHERE id = ?",
		ts, id,
	); err != nil {
		return nil, fmt.Errorf("failed to revoke assignment: %w", err)
	}
	a.IsActive = false
	a.RevokedAt = &ts
	return a, nil
}

// ListAssignmentsByTemplate returns every assignment row for a template,
// active and historical, newest first.
func (s *Store) ListAssignmentsByTemplate(templateID string) ([]types.Assignment, error) {
	return s.listAssignments("template_id", templateID)
}

// ListAssignmentsForUser returns every assignment row for a user.
func (s *Store) ListAssignmentsForUser(userID string) ([]types.Assignment, error) {
	return s.listAssignments("user_id", userID)
}

func (s *Store) listAssignments(column, value string) ([]types.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+assignmentColumns+" FROM assignments WHERE "+column+" = ? ORDER BY assigned_at DESC, rowid DESC",
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []types.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ========== Install telemetry ==========

// RecordInstallEvent appends an immutable telemetry event and adjusts the
// template's install counter.
func (s *Store) RecordInstallEvent(ev *types.InstallEvent) error {
	if strings.TrimSpace(ev.UserID) == "" {
		return types.ValidationError("user_id", "user id is required")
	}
	if !ev.Type.Valid() {
		return types.ValidationError("event_type", "unknown event type %q", ev.Type)
	}
	if err := s.requireTemplate(ev.TemplateID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin event transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO install_events (id, user_id, template_id, device_id, os, app_version, event_type, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.TemplateID, ev.DeviceID, ev.OS, ev.AppVersion, string(ev.Type), ev.OccurredAt,
	); err != nil {
		return fmt.Errorf("failed to insert install event: %w", err)
	}

	delta := 1
	if ev.Type == types.EventUninstall {
		delta = -1
	}
	if _, err := tx.Exec(
		"UPDATE templates SET install_count = MAX(0, install_count + ?) WHERE id = ?",
		delta, ev.TemplateID,
	); err != nil {
		return fmt.Errorf("failed to adjust install count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit install event: %w", err)
	}
	return nil
}

// ListInstallEvents returns telemetry for a template, newest first.
func (s *Store) ListInstallEvents(templateID string) ([]types.InstallEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, user_id, template_id, device_id, os, app_version, event_type, occurred_at
		 FROM install_events WHERE template_id = ? ORDER BY occurred_at DESC, rowid DESC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list install events: %w", err)
	}
	defer rows.Close()

	var out []types.InstallEvent
	for rows.Next() {
		var ev types.InstallEvent
		var evType string
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.TemplateID, &ev.DeviceID, &ev.OS, &ev.AppVersion, &evType, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan install event: %w", err)
		}
		ev.Type = types.EventType(evType)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanAssignment(row rowScanner) (*types.Assignment, error) {
	var a types.Assignment
	var aType, overrides string
	var isActive int
	var revokedAt sql.NullTime

	err := row.Scan(&a.ID, &a.UserID, &a.TemplateID, &aType, &isActive, &overrides, &a.AssignedAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	a.Type = types.AssignmentType(aType)
	a.IsActive = isActive != 0
	if overrides != "" && overrides != "{}" {
		_ = json.Unmarshal([]byte(overrides), &a.ConfigOverrides)
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		a.RevokedAt = &at
	}
	return &a, nil
}
