package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

const exampleColumns = "id, template_id, user_input, expected_output, explanation, tags, is_active, sort_order, created_at, updated_at"

// CreateExample validates and inserts a few-shot example.
func (s *Store) CreateExample(e *types.Example) error {
	if strings.TrimSpace(e.UserInput) == "" {
		return types.ValidationError("user_input", "example user input is required")
	}
	if strings.TrimSpace(e.ExpectedOutput) == "" {
		return types.ValidationError("expected_output", "example expected output is required")
	}
	if err := s.requireTemplate(e.TemplateID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Tags = types.NormalizeTags(e.Tags)
	e.CreatedAt = now()
	e.UpdatedAt = e.CreatedAt
	e.IsActive = true

	_, err := s.db.Exec(
		`INSERT INTO examples (id, template_id, user_input, expected_output, explanation, tags, is_active, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		e.ID, e.TemplateID, e.UserInput, e.ExpectedOutput, e.Explanation, marshalTags(e.Tags), e.SortOrder, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert example: %w", err)
	}
	return nil
}

// ListExamples returns all examples for a template in creation order.
func (s *Store) ListExamples(templateID string) ([]types.Example, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+exampleColumns+" FROM examples WHERE template_id = ? ORDER BY rowid ASC",
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list examples: %w", err)
	}
	defer rows.Close()

	var out []types.Example
	for rows.Next() {
		e, err := scanExample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateExample applies a partial patch to an example.
func (s *Store) UpdateExample(id string, patch types.ExamplePatch) (*types.Example, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+exampleColumns+" FROM examples WHERE id = ?", id)
	e, err := scanExample(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("example", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load example: %w", err)
	}

	if patch.UserInput != nil {
		if strings.TrimSpace(*patch.UserInput) == "" {
			return nil, types.ValidationError("user_input", "example user input cannot be empty")
		}
		e.UserInput = *patch.UserInput
	}
	if patch.ExpectedOutput != nil {
		if strings.TrimSpace(*patch.ExpectedOutput) == "" {
			return nil, types.ValidationError("expected_output", "example expected output cannot be empty")
		}
		e.ExpectedOutput = *patch.ExpectedOutput
	}
	if patch.Explanation != nil {
		e.Explanation = *patch.Explanation
	}
	if patch.Tags != nil {
		e.Tags = types.NormalizeTags(*patch.Tags)
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	if patch.SortOrder != nil {
		e.SortOrder = *patch.SortOrder
	}
	e.UpdatedAt = now()

	_, err = s.db.Exec(
		`UPDATE examples SET user_input = ?, expected_output = ?, explanation = ?, tags = ?, is_active = ?, sort_order = ?, updated_at = ?
		 WHERE id = ?`,
		e.UserInput, e.ExpectedOutput, e.Explanation, marshalTags(e.Tags), boolToInt(e.IsActive), e.SortOrder, e.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update example: %w", err)
	}
	return e, nil
}

// DeleteExample removes an example permanently.
func (s *Store) DeleteExample(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM examples WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete example: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return types.NotFound("example", id)
	}
	return nil
}

func scanExample(row rowScanner) (*types.Example, error) {
	var e types.Example
	var tags string
	var isActive int
	err := row.Scan(&e.ID, &e.TemplateID, &e.UserInput, &e.ExpectedOutput, &e.Explanation, &tags, &isActive, &e.SortOrder, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Tags = unmarshalTags(tags)
	e.IsActive = isActive != 0
	return &e, nil
}
