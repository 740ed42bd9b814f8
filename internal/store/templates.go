package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

// TemplateFilter narrows ListTemplates. Zero values match everything.
type TemplateFilter struct {
	// Query is a case-insensitive substring match over name, tagline,
	// category and tags.
	Query    string
	PlanTier string
	Category string
	// IncludeInactive also returns deactivated templates (operator views).
	IncludeInactive bool
}

const templateColumns = `id, name, emoji, role, tagline, description, core_prompt,
	personality_traits, personality_style, personality_tone,
	category, tags, plan_tier, is_active, version, author,
	install_count, factory_version, factory_published_at, created_at, updated_at`

// CreateTemplate validates and inserts a new template, filling in the id and
// timestamps.
func (s *Store) CreateTemplate(t *types.AgentTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return types.ValidationError("name", "template name is required")
	}
	if strings.TrimSpace(t.CorePrompt) == "" {
		return types.ValidationError("core_prompt", "core prompt is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == "" {
		t.Version = "1.0.0"
	}
	if t.PlanTier == "" {
		t.PlanTier = "free"
	}
	t.Tags = types.NormalizeTags(t.Tags)
	t.IsActive = true
	t.FactoryVersion = 0
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt

	_, err := s.db.Exec(
		`INSERT INTO templates (id, name, emoji, role, tagline, description, core_prompt,
			personality_traits, personality_style, personality_tone,
			category, tags, plan_tier, is_active, version, author,
			install_count, factory_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		t.ID, t.Name, t.Emoji, t.Role, t.Tagline, t.Description, t.CorePrompt,
		t.Personality.Traits, t.Personality.Style, t.Personality.Tone,
		t.Category, marshalTags(t.Tags), t.PlanTier, boolToInt(t.IsActive),
		t.Version, t.Author, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by id.
func (s *Store) GetTemplate(id string) (*types.AgentTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTemplate(id)
}

func (s *Store) getTemplate(id string) (*types.AgentTemplate, error) {
	row := s.db.QueryRow("SELECT "+templateColumns+" FROM templates WHERE id = ?", id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("template", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return t, nil
}

// ListTemplates returns templates matching the filter. Tier and category are
// exact matches in SQL; the free-text query is applied in memory because it
// spans the JSON-encoded tags column.
func (s *Store) ListTemplates(filter TemplateFilter) ([]types.AgentTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + templateColumns + " FROM templates WHERE 1=1"
	var args []any
	if !filter.IncludeInactive {
		query += " AND is_active = 1"
	}
	if filter.PlanTier != "" {
		query += " AND plan_tier = ?"
		args = append(args, filter.PlanTier)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []types.AgentTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if filter.Query != "" && !templateMatches(t, filter.Query) {
			continue
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// templateMatches implements the case-insensitive substring filter over
// name, tagline, category and tags.
func templateMatches(t *types.AgentTemplate, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.Name), q) ||
		strings.Contains(strings.ToLower(t.Tagline), q) ||
		strings.Contains(strings.ToLower(t.Category), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// UpdateTemplate applies a partial patch. Nil fields are untouched.
func (s *Store) UpdateTemplate(id string, patch types.TemplatePatch) (*types.AgentTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTemplate(id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, types.ValidationError("name", "template name cannot be empty")
		}
		t.Name = *patch.Name
	}
	if patch.Emoji != nil {
		t.Emoji = *patch.Emoji
	}
	if patch.Role != nil {
		t.Role = *patch.Role
	}
	if patch.Tagline != nil {
		t.Tagline = *patch.Tagline
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.CorePrompt != nil {
		if strings.TrimSpace(*patch.CorePrompt) == "" {
			return nil, types.ValidationError("core_prompt", "core prompt cannot be empty")
		}
		t.CorePrompt = *patch.CorePrompt
	}
	if patch.Personality != nil {
		t.Personality = *patch.Personality
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.Tags != nil {
		t.Tags = types.NormalizeTags(*patch.Tags)
	}
	if patch.PlanTier != nil {
		t.PlanTier = *patch.PlanTier
	}
	if patch.IsActive != nil {
		t.IsActive = *patch.IsActive
	}
	if patch.Version != nil {
		t.Version = *patch.Version
	}
	if patch.Author != nil {
		t.Author = *patch.Author
	}
	t.UpdatedAt = now()

	_, err = s.db.Exec(
		`UPDATE templates SET name = ?, emoji = ?, role = ?, tagline = ?, description = ?,
			core_prompt = ?, personality_traits = ?, personality_style = ?, personality_tone = ?,
			category = ?, tags = ?, plan_tier = ?, is_active = ?, version = ?, author = ?,
			updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Emoji, t.Role, t.Tagline, t.Description,
		t.CorePrompt, t.Personality.Traits, t.Personality.Style, t.Personality.Tone,
		t.Category, marshalTags(t.Tags), t.PlanTier, boolToInt(t.IsActive), t.Version, t.Author,
		t.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return t, nil
}

// DeactivateTemplate hides a template from discovery. Existing installs are
// unaffected; no cascading writes touch child entities.
func (s *Store) DeactivateTemplate(id string) error {
	inactive := false
	_, err := s.UpdateTemplate(id, types.TemplatePatch{IsActive: &inactive})
	return err
}

// AdjustInstallCount applies a delta to the install counter, flooring at zero.
func (s *Store) AdjustInstallCount(id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE templates SET install_count = MAX(0, install_count + ?) WHERE id = ?",
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust install count: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.NotFound("template", id)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*types.AgentTemplate, error) {
	var t types.AgentTemplate
	var tags string
	var isActive int
	var publishedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Name, &t.Emoji, &t.Role, &t.Tagline, &t.Description, &t.CorePrompt,
		&t.Personality.Traits, &t.Personality.Style, &t.Personality.Tone,
		&t.Category, &tags, &t.PlanTier, &isActive, &t.Version, &t.Author,
		&t.InstallCount, &t.FactoryVersion, &publishedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Tags = unmarshalTags(tags)
	t.IsActive = isActive != 0
	if publishedAt.Valid {
		at := publishedAt.Time
		t.FactoryPublishedAt = &at
	}
	return &t, nil
}
