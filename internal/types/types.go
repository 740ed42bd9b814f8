// Package types provides shared type definitions used across agentfoundry packages.
// This package exists to break import cycles between the store, compiler, and
// factory version manager. Types in this package should be foundational data
// structures with no complex dependencies.
package types

import (
	"strings"
	"time"
)

// =============================================================================
// CLOSED ENUMS
// =============================================================================
//
// Every enum below is a closed set. Dispatch over these values must be an
// exhaustive switch so that adding a variant is a compile-visible change at
// every site that cares.

// LayerType classifies a prompt layer fragment.
type LayerType string

const (
	LayerSystem           LayerType = "system"
	LayerGuardrail        LayerType = "guardrail"
	LayerOutputFormat     LayerType = "output_format"
	LayerContextInjection LayerType = "context_injection"
)

// Valid reports whether t is a known layer type.
func (t LayerType) Valid() bool {
	switch t {
	case LayerSystem, LayerGuardrail, LayerOutputFormat, LayerContextInjection:
		return true
	}
	return false
}

// RuleType classifies a behavioral rule.
type RuleType string

const (
	RuleMustDo  RuleType = "must_do"
	RuleMustNot RuleType = "must_not"
	RulePrefer  RuleType = "prefer"
	RuleAvoid   RuleType = "avoid"
)

// RuleTypeOrder is the fixed emission order for the compiled rules block.
var RuleTypeOrder = []RuleType{RuleMustDo, RuleMustNot, RulePrefer, RuleAvoid}

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleMustDo, RuleMustNot, RulePrefer, RuleAvoid:
		return true
	}
	return false
}

// Prefix returns the line prefix a rule of this type compiles to.
func (t RuleType) Prefix() string {
	switch t {
	case RuleMustDo:
		return "MUST:"
	case RuleMustNot:
		return "MUST NOT:"
	case RulePrefer:
		return "PREFER:"
	case RuleAvoid:
		return "AVOID:"
	}
	return "RULE:"
}

// Severity is editorial metadata on a rule. It never influences compilation.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityImportant  Severity = "important"
	SeveritySuggestion Severity = "suggestion"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityImportant, SeveritySuggestion:
		return true
	}
	return false
}

// MemoryCategory classifies a factory memory seed.
type MemoryCategory string

const (
	MemoryPersonality MemoryCategory = "personality"
	MemorySkill       MemoryCategory = "skill"
	MemoryKnowledge   MemoryCategory = "knowledge"
	MemoryRule        MemoryCategory = "rule"
	MemoryContext     MemoryCategory = "context"
	MemoryPreference  MemoryCategory = "preference"
	MemoryExample     MemoryCategory = "example"
)

// Valid reports whether c is a known memory category.
func (c MemoryCategory) Valid() bool {
	switch c {
	case MemoryPersonality, MemorySkill, MemoryKnowledge, MemoryRule,
		MemoryContext, MemoryPreference, MemoryExample:
		return true
	}
	return false
}

// KBType classifies a knowledge base source descriptor.
type KBType string

const (
	KBDocument   KBType = "document"
	KBURL        KBType = "url"
	KBStructured KBType = "structured"
	KBManual     KBType = "manual"
)

// Valid reports whether t is a known knowledge base type.
func (t KBType) Valid() bool {
	switch t {
	case KBDocument, KBURL, KBStructured, KBManual:
		return true
	}
	return false
}

// RetrievalStrategy selects how a knowledge base is queried by the client.
type RetrievalStrategy string

const (
	RetrievalSemantic RetrievalStrategy = "semantic"
	RetrievalKeyword  RetrievalStrategy = "keyword"
	RetrievalHybrid   RetrievalStrategy = "hybrid"
)

// Valid reports whether s is a known retrieval strategy.
func (s RetrievalStrategy) Valid() bool {
	switch s {
	case RetrievalSemantic, RetrievalKeyword, RetrievalHybrid:
		return true
	}
	return false
}

// IndexingStatus is the knowledge base indexing lifecycle state.
// Transitions are driven by the external indexer; this system only validates.
type IndexingStatus string

const (
	IndexingPending  IndexingStatus = "pending"
	IndexingRunning  IndexingStatus = "indexing"
	IndexingComplete IndexingStatus = "indexed"
	IndexingFailed   IndexingStatus = "failed"
)

// Valid reports whether s is a known indexing status.
func (s IndexingStatus) Valid() bool {
	switch s {
	case IndexingPending, IndexingRunning, IndexingComplete, IndexingFailed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving to next.
// pending -> indexing -> indexed | failed, with failed retryable to pending.
func (s IndexingStatus) CanTransition(next IndexingStatus) bool {
	switch s {
	case IndexingPending:
		return next == IndexingRunning
	case IndexingRunning:
		return next == IndexingComplete || next == IndexingFailed
	case IndexingComplete:
		return false
	case IndexingFailed:
		return next == IndexingPending
	}
	return false
}

// AssignmentType distinguishes forced delivery from opt-in visibility.
type AssignmentType string

const (
	// AssignmentPush obligates the client to force-install/update.
	AssignmentPush AssignmentType = "push"
	// AssignmentEntitled grants catalog visibility without forcing install.
	AssignmentEntitled AssignmentType = "entitled"
)

// Valid reports whether t is a known assignment type.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentPush, AssignmentEntitled:
		return true
	}
	return false
}

// EventType classifies install telemetry events.
type EventType string

const (
	EventInstall   EventType = "install"
	EventUninstall EventType = "uninstall"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventInstall, EventUninstall:
		return true
	}
	return false
}

// =============================================================================
// ENTITIES
// =============================================================================

// PersonalityConfig is the free-form trait/style/tone triple on a template.
type PersonalityConfig struct {
	Traits string `json:"traits"`
	Style  string `json:"style"`
	Tone   string `json:"tone"`
}

// AgentTemplate is the root entity. It owns every other entity via TemplateID.
// Templates are never deleted, only deactivated.
type AgentTemplate struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Emoji       string            `json:"emoji"`
	Role        string            `json:"role"`
	Tagline     string            `json:"tagline"`
	Description string            `json:"description"`
	CorePrompt  string            `json:"core_prompt"`
	Personality PersonalityConfig `json:"personality_config"`
	Category    string            `json:"category"`
	Tags        []string          `json:"tags"`
	PlanTier    string            `json:"plan_tier"`
	IsActive    bool              `json:"is_active"`
	Version     string            `json:"version"`
	Author      string            `json:"author"`

	InstallCount int `json:"install_count"`

	// FactoryVersion is the monotonic published factory-memory version.
	// It only advances through the publish operation.
	FactoryVersion     int        `json:"factory_version"`
	FactoryPublishedAt *time.Time `json:"factory_published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PromptLayer is a typed instruction fragment stacked on the core prompt.
// Ordering at compile time is governed solely by Priority (ascending), with
// creation order breaking ties. Type is informational and never reorders.
type PromptLayer struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Type       LayerType `json:"layer_type"`
	Label      string    `json:"label"`
	Content    string    `json:"content"`
	Priority   int       `json:"priority"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Rule is a typed behavioral constraint compiled into the rules block.
type Rule struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Type       RuleType  `json:"rule_type"`
	Content    string    `json:"content"`
	Category   string    `json:"category,omitempty"`
	Severity   Severity  `json:"severity"`
	IsActive   bool      `json:"is_active"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Example is a few-shot calibration pair. Explanation is internal-only and
// never compiled into the runtime artifact.
type Example struct {
	ID             string    `json:"id"`
	TemplateID     string    `json:"template_id"`
	UserInput      string    `json:"user_input"`
	ExpectedOutput string    `json:"expected_output"`
	Explanation    string    `json:"explanation,omitempty"`
	Tags           []string  `json:"tags"`
	IsActive       bool      `json:"is_active"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FactoryMemory is a seed long-term memory distributed to installed agents.
//
// FactoryID is stable across edits of the same logical memory and is the key
// the publish diff operates on; only a true logical replacement mints a new
// one. VersionAdded/VersionRemoved bound the published-version interval this
// record belonged to; zero means "not yet published" / "not removed".
type FactoryMemory struct {
	ID             string         `json:"id"`
	TemplateID     string         `json:"template_id"`
	FactoryID      string         `json:"factory_id"`
	Category       MemoryCategory `json:"category"`
	Content        string         `json:"content"`
	Importance     float64        `json:"importance"`
	Tags           []string       `json:"tags"`
	IsActive       bool           `json:"is_active"`
	VersionAdded   int            `json:"version_added"`
	VersionRemoved int            `json:"version_removed,omitempty"`
	SortOrder      int            `json:"sort_order"`

	// PublishedHash fingerprints the diffed fields as of the last publish
	// that included this record. Internal to the version manager.
	PublishedHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KnowledgeBase is a RAG source descriptor. Indexing itself runs on the
// consuming client; IndexingStatus, TotalChunks and LastIndexedAt are owned
// by the external indexer and only validated here.
type KnowledgeBase struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Type       KBType `json:"kb_type"`

	// Type-specific payload.
	Content   string `json:"content,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`

	// Retrieval configuration consumed by the client at query time.
	RetrievalStrategy RetrievalStrategy `json:"retrieval_strategy"`
	ChunkSize         int               `json:"chunk_size"`
	ChunkOverlap      int               `json:"chunk_overlap"`
	MaxChunksPerQuery int               `json:"max_chunks_per_query"`
	EmbeddingModel    string            `json:"embedding_model"`

	IndexingStatus IndexingStatus `json:"indexing_status"`
	IndexingError  string         `json:"indexing_error,omitempty"`
	TotalChunks    int            `json:"total_chunks"`
	LastIndexedAt  *time.Time     `json:"last_indexed_at,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment relates a user to a template under push or entitled semantics.
// Revocation is soft; at most one active assignment exists per (user,
// template) pair at any time.
type Assignment struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	TemplateID      string         `json:"template_id"`
	Type            AssignmentType `json:"assignment_type"`
	IsActive        bool           `json:"is_active"`
	ConfigOverrides map[string]any `json:"config_overrides,omitempty"`
	AssignedAt      time.Time      `json:"assigned_at"`
	RevokedAt       *time.Time     `json:"revoked_at,omitempty"`
}

// InstallEvent is an immutable telemetry fact produced by the client.
type InstallEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	TemplateID string    `json:"template_id"`
	DeviceID   string    `json:"device_id"`
	OS         string    `json:"os"`
	AppVersion string    `json:"app_version"`
	Type       EventType `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// =============================================================================
// PUBLISH SUMMARY
// =============================================================================

// MemoryRef identifies a memory in a publish diff summary.
type MemoryRef struct {
	FactoryID string         `json:"factory_id"`
	Category  MemoryCategory `json:"category"`
	Content   string         `json:"content"`
}

// PublishSummary is the result of a successful publish transition.
type PublishSummary struct {
	TemplateID          string      `json:"template_id"`
	FromVersion         int         `json:"from_version"`
	ToVersion           int         `json:"to_version"`
	Added               []MemoryRef `json:"added"`
	Modified            []MemoryRef `json:"modified"`
	Removed             []MemoryRef `json:"removed"`
	TotalActiveMemories int         `json:"total_active_memories"`
	PublishedAt         time.Time   `json:"published_at"`
}

// VersionRecord is the persisted audit row for one publish.
type VersionRecord struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"template_id"`
	Version     int       `json:"version"`
	Added       int       `json:"added"`
	Modified    int       `json:"modified"`
	Removed     int       `json:"removed"`
	TotalActive int       `json:"total_active"`
	PublishedAt time.Time `json:"published_at"`
}

// =============================================================================
// HELPERS
// =============================================================================

// NormalizeTags trims whitespace and drops empty entries, preserving order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
