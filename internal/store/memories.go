package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

const memoryColumns = `id, template_id, factory_id, category, content, importance, tags,
	is_active, version_added, version_removed, published_hash, sort_order, created_at, updated_at`

// CreateMemory validates and inserts a factory memory, minting its stable
// factory id. The new record stays unpublished (version_added = 0) until the
// next publish stamps it.
func (s *Store) CreateMemory(m *types.FactoryMemory) error {
	if !m.Category.Valid() {
		return types.ValidationError("category", "unknown memory category %q", m.Category)
	}
	if strings.TrimSpace(m.Content) == "" {
		return types.ValidationError("content", "memory content is required")
	}
	if m.Importance < 0 || m.Importance > 1 {
		return types.ValidationError("importance", "importance must be within [0,1], got %v", m.Importance)
	}
	if err := s.requireTemplate(m.TemplateID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.FactoryID == "" {
		m.FactoryID = uuid.NewString()
	}
	m.Tags = types.NormalizeTags(m.Tags)
	m.IsActive = true
	m.VersionAdded = 0
	m.VersionRemoved = 0
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt

	_, err := s.db.Exec(
		`INSERT INTO factory_memories (id, template_id, factory_id, category, content, importance, tags,
			is_active, version_added, version_removed, published_hash, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, 0, '', ?, ?, ?)`,
		m.ID, m.TemplateID, m.FactoryID, string(m.Category), m.Content, m.Importance, marshalTags(m.Tags),
		m.SortOrder, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// ListMemories returns all factory memories for a template, including
// historical (inactive or removed) records, in creation order.
func (s *Store) ListMemories(templateID string) ([]types.FactoryMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+memoryColumns+" FROM factory_memories WHERE template_id = ? ORDER BY sort_order ASC, rowid ASC",
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// GetMemory retrieves one factory memory by row id.
func (s *Store) GetMemory(id string) (*types.FactoryMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT "+memoryColumns+" FROM factory_memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("factory memory", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	return m, nil
}

// UpdateMemory applies a partial patch. The factory id and version interval
// survive every edit; only publish moves them.
func (s *Store) UpdateMemory(id string, patch types.MemoryPatch) (*types.FactoryMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+memoryColumns+" FROM factory_memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("factory memory", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}

	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, types.ValidationError("category", "unknown memory category %q", *patch.Category)
		}
		m.Category = *patch.Category
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, types.ValidationError("content", "memory content cannot be empty")
		}
		m.Content = *patch.Content
	}
	if patch.Importance != nil {
		if *patch.Importance < 0 || *patch.Importance > 1 {
			return nil, types.ValidationError("importance", "importance must be within [0,1], got %v", *patch.Importance)
		}
		m.Importance = *patch.Importance
	}
	if patch.Tags != nil {
		m.Tags = types.NormalizeTags(*patch.Tags)
	}
	if patch.IsActive != nil {
		m.IsActive = *patch.IsActive
	}
	if patch.SortOrder != nil {
		m.SortOrder = *patch.SortOrder
	}
	m.UpdatedAt = now()

	_, err = s.db.Exec(
		`UPDATE factory_memories SET category = ?, content = ?, importance = ?, tags = ?, is_active = ?, sort_order = ?, updated_at = ?
		 WHERE id = ?`,
		string(m.Category), m.Content, m.Importance, marshalTags(m.Tags), boolToInt(m.IsActive), m.SortOrder, m.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}
	return m, nil
}

// SoftDeleteMemory deactivates a memory. The row survives for history; the
// next publish stamps its version_removed.
func (s *Store) SoftDeleteMemory(id string) error {
	inactive := false
	_, err := s.UpdateMemory(id, types.MemoryPatch{IsActive: &inactive})
	return err
}

// ========== Publish transaction helpers ==========
//
// The factory version manager runs these inside one transaction so a lost
// version race or mid-flight failure rolls back every stamp.

// ActiveMemoriesTx loads the currently-active memory set (S_new).
func (s *Store) ActiveMemoriesTx(tx *sql.Tx, templateID string) ([]types.FactoryMemory, error) {
	rows, err := tx.Query(
		"SELECT "+memoryColumns+" FROM factory_memories WHERE template_id = ? AND is_active = 1 ORDER BY sort_order ASC, rowid ASC",
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load active memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// MemoriesAtVersionTx loads the set that was active as of a published
// version (S_old): version_added in [1, v] and not removed at or before v.
func (s *Store) MemoriesAtVersionTx(tx *sql.Tx, templateID string, version int) ([]types.FactoryMemory, error) {
	rows, err := tx.Query(
		`SELECT `+memoryColumns+` FROM factory_memories
		 WHERE template_id = ? AND version_added >= 1 AND version_added <= ?
		   AND (version_removed = 0 OR version_removed > ?)
		 ORDER BY sort_order ASC, rowid ASC`,
		templateID, version, version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories at version %d: %w", version, err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// CASBumpFactoryVersionTx advances the template's factory version only if it
// still equals from. Returns false when a concurrent publish won the race.
func (s *Store) CASBumpFactoryVersionTx(tx *sql.Tx, templateID string, from, to int, at time.Time) (bool, error) {
	res, err := tx.Exec(
		"UPDATE templates SET factory_version = ?, factory_published_at = ?, updated_at = ? WHERE id = ? AND factory_version = ?",
		to, at, at, templateID, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to bump factory version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// StampMemoryAddedTx marks a memory as entering the published set at version.
func (s *Store) StampMemoryAddedTx(tx *sql.Tx, memoryID string, version int) error {
	if _, err := tx.Exec(
		"UPDATE factory_memories SET version_added = ?, version_removed = 0 WHERE id = ?",
		version, memoryID,
	); err != nil {
		return fmt.Errorf("failed to stamp memory added: %w", err)
	}
	return nil
}

// StampMemoryRemovedTx marks a memory as leaving the published set at version.
func (s *Store) StampMemoryRemovedTx(tx *sql.Tx, memoryID string, version int) error {
	if _, err := tx.Exec(
		"UPDATE factory_memories SET version_removed = ? WHERE id = ?",
		version, memoryID,
	); err != nil {
		return fmt.Errorf("failed to stamp memory removed: %w", err)
	}
	return nil
}

// SetPublishedHashTx records the diff fingerprint of a memory as published.
func (s *Store) SetPublishedHashTx(tx *sql.Tx, memoryID, hash string) error {
	if _, err := tx.Exec(
		"UPDATE factory_memories SET published_hash = ? WHERE id = ?",
		hash, memoryID,
	); err != nil {
		return fmt.Errorf("failed to set published hash: %w", err)
	}
	return nil
}

// InsertVersionRecordTx appends the audit row for one publish.
func (s *Store) InsertVersionRecordTx(tx *sql.Tx, rec types.VersionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, err := tx.Exec(
		`INSERT INTO factory_versions (id, template_id, version, added, modified, removed, total_active, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TemplateID, rec.Version, rec.Added, rec.Modified, rec.Removed, rec.TotalActive, rec.PublishedAt,
	); err != nil {
		return fmt.Errorf("failed to insert version record: %w", err)
	}
	return nil
}

// ListVersions returns the publish history for a template, oldest first.
func (s *Store) ListVersions(templateID string) ([]types.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, template_id, version, added, modified, removed, total_active, published_at
		 FROM factory_versions WHERE template_id = ? ORDER BY version ASC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []types.VersionRecord
	for rows.Next() {
		var rec types.VersionRecord
		if err := rows.Scan(&rec.ID, &rec.TemplateID, &rec.Version, &rec.Added, &rec.Modified, &rec.Removed, &rec.TotalActive, &rec.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func collectMemories(rows *sql.Rows) ([]types.FactoryMemory, error) {
	var out []types.FactoryMemory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMemory(row rowScanner) (*types.FactoryMemory, error) {
	var m types.FactoryMemory
	var category, tags string
	var isActive int
	err := row.Scan(
		&m.ID, &m.TemplateID, &m.FactoryID, &category, &m.Content, &m.Importance, &tags,
		&isActive, &m.VersionAdded, &m.VersionRemoved, &m.PublishedHash, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Category = types.MemoryCategory(category)
	m.Tags = unmarshalTags(tags)
	m.IsActive = isActive != 0
	return &m, nil
}
