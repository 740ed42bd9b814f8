package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"agentfoundry/internal/types"
)

const kbColumns = `id, template_id, name, kb_type, content, source_url, file_path, mime_type,
	retrieval_strategy, chunk_size, chunk_overlap, max_chunks_per_query, embedding_model,
	indexing_status, indexing_error, total_chunks, last_indexed_at, is_active, created_at, updated_at`

// validateKBPayload enforces the type-conditional required fields. Exhaustive
// over KBType so a new variant fails to compile here.
func validateKBPayload(kbType types.KBType, content, sourceURL string) error {
	switch kbType {
	case types.KBURL:
		if strings.TrimSpace(sourceURL) == "" {
			return types.ValidationError("source_url", "source url is required for url knowledge bases")
		}
	case types.KBManual, types.KBStructured:
		if strings.TrimSpace(content) == "" {
			return types.ValidationError("content", "content is required for %s knowledge bases", kbType)
		}
	case types.KBDocument:
		// file_path arrives after creation, once the externally-managed
		// upload completes. Nothing to require yet.
	default:
		return types.ValidationError("kb_type", "unknown knowledge base type %q", kbType)
	}
	return nil
}

// CreateKnowledge validates and inserts a knowledge base descriptor. New
// descriptors always start in the pending indexing state.
func (s *Store) CreateKnowledge(kb *types.KnowledgeBase) error {
	if !kb.Type.Valid() {
		return types.ValidationError("kb_type", "unknown knowledge base type %q", kb.Type)
	}
	if err := validateKBPayload(kb.Type, kb.Content, kb.SourceURL); err != nil {
		return err
	}
	if kb.RetrievalStrategy == "" {
		kb.RetrievalStrategy = types.RetrievalSemantic
	}
	if !kb.RetrievalStrategy.Valid() {
		return types.ValidationError("retrieval_strategy", "unknown retrieval strategy %q", kb.RetrievalStrategy)
	}
	if kb.ChunkSize < 0 || kb.ChunkOverlap < 0 || kb.MaxChunksPerQuery < 0 {
		return types.ValidationError("chunk_size", "chunking parameters must be non-negative")
	}
	if err := s.requireTemplate(kb.TemplateID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kb.ID == "" {
		kb.ID = uuid.NewString()
	}
	if kb.ChunkSize == 0 {
		kb.ChunkSize = 512
	}
	if kb.ChunkOverlap == 0 {
		kb.ChunkOverlap = 64
	}
	if kb.MaxChunksPerQuery == 0 {
		kb.MaxChunksPerQuery = 5
	}
	kb.IndexingStatus = types.IndexingPending
	kb.IndexingError = ""
	kb.TotalChunks = 0
	kb.IsActive = true
	kb.CreatedAt = now()
	kb.UpdatedAt = kb.CreatedAt

	_, err := s.db.Exec(
		`INSERT INTO knowledge_bases (id, template_id, name, kb_type, content, source_url, file_path, mime_type,
			retrieval_strategy, chunk_size, chunk_overlap, max_chunks_per_query, embedding_model,
			indexing_status, indexing_error, total_chunks, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, 1, ?, ?)`,
		kb.ID, kb.TemplateID, kb.Name, string(kb.Type), kb.Content, kb.SourceURL, kb.FilePath, kb.MimeType,
		string(kb.RetrievalStrategy), kb.ChunkSize, kb.ChunkOverlap, kb.MaxChunksPerQuery, kb.EmbeddingModel,
		string(kb.IndexingStatus), kb.CreatedAt, kb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge base: %w", err)
	}
	return nil
}

// ListKnowledge returns all knowledge bases for a template in creation order.
func (s *Store) ListKnowledge(templateID string) ([]types.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+kbColumns+" FROM knowledge_bases WHERE template_id = ? ORDER BY rowid ASC",
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	var out []types.KnowledgeBase
	for rows.Next() {
		kb, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		out = append(out, *kb)
	}
	return out, rows.Err()
}

// UpdateKnowledge applies a partial patch. Indexing status changes are
// validated against the lifecycle state machine; the indexer drives them,
// this store only refuses illegal jumps.
func (s *Store) UpdateKnowledge(id string, patch types.KnowledgePatch) (*types.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+kbColumns+" FROM knowledge_bases WHERE id = ?", id)
	kb, err := scanKnowledge(row)
	if err == sql.ErrNoRows {
		return nil, types.NotFound("knowledge base", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	if patch.Name != nil {
		kb.Name = *patch.Name
	}
	if patch.Content != nil {
		kb.Content = *patch.Content
	}
	if patch.SourceURL != nil {
		kb.SourceURL = *patch.SourceURL
	}
	if patch.FilePath != nil {
		kb.FilePath = *patch.FilePath
	}
	if patch.MimeType != nil {
		kb.MimeType = *patch.MimeType
	}
	if patch.RetrievalStrategy != nil {
		if !patch.RetrievalStrategy.Valid() {
			return nil, types.ValidationError("retrieval_strategy", "unknown retrieval strategy %q", *patch.RetrievalStrategy)
		}
		kb.RetrievalStrategy = *patch.RetrievalStrategy
	}
	if patch.ChunkSize != nil {
		if *patch.ChunkSize <= 0 {
			return nil, types.ValidationError("chunk_size", "chunk size must be positive")
		}
		kb.ChunkSize = *patch.ChunkSize
	}
	if patch.ChunkOverlap != nil {
		if *patch.ChunkOverlap < 0 {
			return nil, types.ValidationError("chunk_overlap", "chunk overlap cannot be negative")
		}
		kb.ChunkOverlap = *patch.ChunkOverlap
	}
	if patch.MaxChunksPerQuery != nil {
		if *patch.MaxChunksPerQuery <= 0 {
			return nil, types.ValidationError("max_chunks_per_query", "max chunks per query must be positive")
		}
		kb.MaxChunksPerQuery = *patch.MaxChunksPerQuery
	}
	if patch.EmbeddingModel != nil {
		kb.EmbeddingModel = *patch.EmbeddingModel
	}
	if patch.IndexingStatus != nil {
		next := *patch.IndexingStatus
		if !next.Valid() {
			return nil, types.ValidationError("indexing_status", "unknown indexing status %q", next)
		}
		if next != kb.IndexingStatus && !kb.IndexingStatus.CanTransition(next) {
			return nil, types.ValidationError("indexing_status", "illegal transition %s -> %s", kb.IndexingStatus, next)
		}
		kb.IndexingStatus = next
		if next != types.IndexingFailed {
			kb.IndexingError = ""
		}
	}
	if patch.IndexingError != nil {
		kb.IndexingError = *patch.IndexingError
	}
	if patch.TotalChunks != nil {
		if *patch.TotalChunks < 0 {
			return nil, types.ValidationError("total_chunks", "total chunks cannot be negative")
		}
		kb.TotalChunks = *patch.TotalChunks
	}
	if patch.LastIndexedAt != nil {
		at := *patch.LastIndexedAt
		kb.LastIndexedAt = &at
	}
	if patch.IsActive != nil {
		kb.IsActive = *patch.IsActive
	}

	// Re-check the type-conditional payload after the patch lands.
	if err := validateKBPayload(kb.Type, kb.Content, kb.SourceURL); err != nil {
		return nil, err
	}
	kb.UpdatedAt = now()

	var lastIndexed any
	if kb.LastIndexedAt != nil {
		lastIndexed = *kb.LastIndexedAt
	}
	_, err = s.db.Exec(
		`UPDATE knowledge_bases SET name = ?, content = ?, source_url = ?, file_path = ?, mime_type = ?,
			retrieval_strategy = ?, chunk_size = ?, chunk_overlap = ?, max_chunks_per_query = ?, embedding_model = ?,
			indexing_status = ?, indexing_error = ?, total_chunks = ?, last_indexed_at = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		kb.Name, kb.Content, kb.SourceURL, kb.FilePath, kb.MimeType,
		string(kb.RetrievalStrategy), kb.ChunkSize, kb.ChunkOverlap, kb.MaxChunksPerQuery, kb.EmbeddingModel,
		string(kb.IndexingStatus), kb.IndexingError, kb.TotalChunks, lastIndexed, boolToInt(kb.IsActive), kb.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update knowledge base: %w", err)
	}
	return kb, nil
}

// SoftDeleteKnowledge deactivates a knowledge base descriptor.
func (s *Store) SoftDeleteKnowledge(id string) error {
	inactive := false
	_, err := s.UpdateKnowledge(id, types.KnowledgePatch{IsActive: &inactive})
	return err
}

func scanKnowledge(row rowScanner) (*types.KnowledgeBase, error) {
	var kb types.KnowledgeBase
	var kbType, strategy, status string
	var isActive int
	var lastIndexed sql.NullTime

	err := row.Scan(
		&kb.ID, &kb.TemplateID, &kb.Name, &kbType, &kb.Content, &kb.SourceURL, &kb.FilePath, &kb.MimeType,
		&strategy, &kb.ChunkSize, &kb.ChunkOverlap, &kb.MaxChunksPerQuery, &kb.EmbeddingModel,
		&status, &kb.IndexingError, &kb.TotalChunks, &lastIndexed, &isActive, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	kb.Type = types.KBType(kbType)
	kb.RetrievalStrategy = types.RetrievalStrategy(strategy)
	kb.IndexingStatus = types.IndexingStatus(status)
	kb.IsActive = isActive != 0
	if lastIndexed.Valid {
		at := lastIndexed.Time
		kb.LastIndexedAt = &at
	}
	return &kb, nil
}
