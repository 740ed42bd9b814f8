package types

import "time"

// Patch types implement partial update semantics: nil fields are untouched.
// The API layer decodes request bodies straight into these.

// TemplatePatch is a partial update for an AgentTemplate.
type TemplatePatch struct {
	Name        *string            `json:"name,omitempty"`
	Emoji       *string            `json:"emoji,omitempty"`
	Role        *string            `json:"role,omitempty"`
	Tagline     *string            `json:"tagline,omitempty"`
	Description *string            `json:"description,omitempty"`
	CorePrompt  *string            `json:"core_prompt,omitempty"`
	Personality *PersonalityConfig `json:"personality_config,omitempty"`
	Category    *string            `json:"category,omitempty"`
	Tags        *[]string          `json:"tags,omitempty"`
	PlanTier    *string            `json:"plan_tier,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty"`
	Version     *string            `json:"version,omitempty"`
	Author      *string            `json:"author,omitempty"`
}

// LayerPatch is a partial update for a PromptLayer.
type LayerPatch struct {
	Type     *LayerType `json:"layer_type,omitempty"`
	Label    *string    `json:"label,omitempty"`
	Content  *string    `json:"content,omitempty"`
	Priority *int       `json:"priority,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

// RulePatch is a partial update for a Rule.
type RulePatch struct {
	Type      *RuleType `json:"rule_type,omitempty"`
	Content   *string   `json:"content,omitempty"`
	Category  *string   `json:"category,omitempty"`
	Severity  *Severity `json:"severity,omitempty"`
	IsActive  *bool     `json:"is_active,omitempty"`
	SortOrder *int      `json:"sort_order,omitempty"`
}

// ExamplePatch is a partial update for an Example.
type ExamplePatch struct {
	UserInput      *string   `json:"user_input,omitempty"`
	ExpectedOutput *string   `json:"expected_output,omitempty"`
	Explanation    *string   `json:"explanation,omitempty"`
	Tags           *[]string `json:"tags,omitempty"`
	IsActive       *bool     `json:"is_active,omitempty"`
	SortOrder      *int      `json:"sort_order,omitempty"`
}

// MemoryPatch is a partial update for a FactoryMemory. FactoryID and the
// version interval are never patchable; edits keep the logical identity.
type MemoryPatch struct {
	Category   *MemoryCategory `json:"category,omitempty"`
	Content    *string         `json:"content,omitempty"`
	Importance *float64        `json:"importance,omitempty"`
	Tags       *[]string       `json:"tags,omitempty"`
	IsActive   *bool           `json:"is_active,omitempty"`
	SortOrder  *int            `json:"sort_order,omitempty"`
}

// KnowledgePatch is a partial update for a KnowledgeBase. The indexing
// fields are written by the external indexer through the same surface.
type KnowledgePatch struct {
	Name              *string            `json:"name,omitempty"`
	Content           *string            `json:"content,omitempty"`
	SourceURL         *string            `json:"source_url,omitempty"`
	FilePath          *string            `json:"file_path,omitempty"`
	MimeType          *string            `json:"mime_type,omitempty"`
	RetrievalStrategy *RetrievalStrategy `json:"retrieval_strategy,omitempty"`
	ChunkSize         *int               `json:"chunk_size,omitempty"`
	ChunkOverlap      *int               `json:"chunk_overlap,omitempty"`
	MaxChunksPerQuery *int               `json:"max_chunks_per_query,omitempty"`
	EmbeddingModel    *string            `json:"embedding_model,omitempty"`
	IndexingStatus    *IndexingStatus    `json:"indexing_status,omitempty"`
	IndexingError     *string            `json:"indexing_error,omitempty"`
	TotalChunks       *int               `json:"total_chunks,omitempty"`
	LastIndexedAt     *time.Time         `json:"last_indexed_at,omitempty"`
	IsActive          *bool              `json:"is_active,omitempty"`
}
