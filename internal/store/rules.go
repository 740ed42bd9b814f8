package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

const ruleColumns = "id, template_id, rule_type, content, category, severity, is_active, sort_order, created_at, updated_at"

// CreateRule validates and inserts a behavioral rule.
func (s *Store) CreateRule(r *types.Rule) error {
	if !r.Type.Valid() {
		return types.ValidationError("rule_type", "unknown rule type %q", r.Type)
	}
	if strings.TrimSpace(r.Content) == "" {
		return types.ValidationError("content", "rule content is required")
	}
	if r.Severity == "" {
		r.Severity = types.SeverityImportant
	}
	if !r.Severity.Valid() {
		return types.ValidationError("severity", "unknown severity %q", r.Severity)
	}
	if err := s.requireTemplate(r.TemplateID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now()
	r.UpdatedAt = r.CreatedAt
	r.IsActive = true

	_, err := s.db.Exec(
		`INSERT INTO rules (id, template_id, rule_type, content, category, severity, is_active, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		r.ID, r.TemplateID, string(r.Type), r.Content, r.Category, string(r.Severity), r.SortOrder, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// ListRules returns all rules for a template in creation order.
func (s *Store) ListRules(templateID string) ([]types.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+ruleColumns+" FROM rules WHERE template_id = ? ORDER BY rowid ASC",
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []types.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateRule applies a partial patch to a rule.
func (s *Store) UpdateRule(id string, patch types.RulePatch) (*types.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+ruleColumns+" FROM rules WHERE id = ?", id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}

	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, types.ValidationError("rule_type", "unknown rule type %q", *patch.Type)
		}
		r.Type = *patch.Type
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, types.ValidationError("content", "rule content cannot be empty")
		}
		r.Content = *patch.Content
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.Severity != nil {
		if !patch.Severity.Valid() {
			return nil, types.ValidationError("severity", "unknown severity %q", *patch.Severity)
		}
		r.Severity = *patch.Severity
	}
	if patch.IsActive != nil {
		r.IsActive = *patch.IsActive
	}
	if patch.SortOrder != nil {
		r.SortOrder = *patch.SortOrder
	}
	r.UpdatedAt = now()

	_, err = s.db.Exec(
		`UPDATE rules SET rule_type = ?, content = ?, category = ?, severity = ?, is_active = ?, sort_order = ?, updated_at = ?
		 WHERE id = ?`,
		string(r.Type), r.Content, r.Category, string(r.Severity), boolToInt(r.IsActive), r.SortOrder, r.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return r, nil
}

// DeleteRule removes a rule permanently.
func (s *Store) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.NotFound("rule", id)
	}
	return nil
}

func scanRule(row rowScanner) (*types.Rule, error) {
	var r types.Rule
	var ruleType, severity string
	var isActive int
	err := row.Scan(&r.ID, &r.TemplateID, &ruleType, &r.Content, &r.Category, &severity, &isActive, &r.SortOrder, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Type = types.RuleType(ruleType)
	r.Severity = types.Severity(severity)
	r.IsActive = isActive != 0
	return &r, nil
}
