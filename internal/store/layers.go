package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

const layerColumns = "id, template_id, layer_type, label, content, priority, is_active, created_at, updated_at"

// CreateLayer validates and inserts a prompt layer.
func (s *Store) CreateLayer(l *types.PromptLayer) error {
	if !l.Type.Valid() {
		return types.ValidationError("layer_type", "unknown layer type %q", l.Type)
	}
	if strings.TrimSpace(l.Content) == "" {
		return types.ValidationError("content", "layer content is required")
	}
	if err := s.requireTemplate(l.TemplateID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	l.IsActive = true

	_, err := s.db.Exec(
		`INSERT INTO prompt_layers (id, template_id, layer_type, label, content, priority, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		l.ID, l.TemplateID, string(l.Type), l.Label, l.Content, l.Priority, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert layer: %w", err)
	}
	return nil
}

// ListLayers returns all layers for a template in creation order. The
// compiler applies priority ordering itself; creation order here is what
// makes its tie-break insertion-stable.
func (s *Store) ListLayers(templateID string) ([]types.PromptLayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+layerColumns+" FROM prompt_layers WHERE template_id = ? ORDER BY rowid ASC",
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	defer rows.Close()

	var out []types.PromptLayer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// UpdateLayer applies a partial patch to a layer.
func (s *Store) UpdateLayer(id string, patch types.LayerPatch) (*types.PromptLayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+layerColumns+" FROM prompt_layers WHERE id = ?", id)
	l, err := scanLayer(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("prompt layer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load layer: %w", err)
	}

	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, types.ValidationError("layer_type", "unknown layer type %q", *patch.Type)
		}
		l.Type = *patch.Type
	}
	if patch.Label != nil {
		l.Label = *patch.Label
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, types.ValidationError("content", "layer content cannot be empty")
		}
		l.Content = *patch.Content
	}
	if patch.Priority != nil {
		l.Priority = *patch.Priority
	}
	if patch.IsActive != nil {
		l.IsActive = *patch.IsActive
	}
	l.UpdatedAt = now()

	_, err = s.db.Exec(
		`UPDATE prompt_layers SET layer_type = ?, label = ?, content = ?, priority = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		string(l.Type), l.Label, l.Content, l.Priority, boolToInt(l.IsActive), l.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update layer: %w", err)
	}
	return l, nil
}

// DeleteLayer removes a layer permanently.
func (s *Store) DeleteLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM prompt_layers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete layer: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.NotFound("prompt layer", id)
	}
	return nil
}

func scanLayer(row rowScanner) (*types.PromptLayer, error) {
	var l types.PromptLayer
	var layerType string
	var isActive int
	err := row.Scan(&l.ID, &l.TemplateID, &layerType, &l.Label, &l.Content, &l.Priority, &isActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Type = types.LayerType(layerType)
	l.IsActive = isActive != 0
	return &l, nil
}
