// Package store provides SQLite persistence for all agentfoundry entities:
// templates, prompt layers, rules, examples, factory memories, knowledge
// base descriptors, assignments, and install telemetry.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"agentfoundry/internal/logging"
	"agentfoundry/internal/types"
)

// Store wraps the SQLite database behind typed CRUD operations.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New initializes the SQLite database at the given path. ":memory:" gives an
// ephemeral store for tests and one-shot CLI runs.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection sidesteps table-lock races between the publish
	// transaction and concurrent reads on the same file.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Get(logging.CategoryStore).Info("store opened")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	templateTable := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		emoji TEXT DEFAULT '',
		role TEXT DEFAULT '',
		tagline TEXT DEFAULT '',
		description TEXT DEFAULT '',
		core_prompt TEXT NOT NULL,
		personality_traits TEXT DEFAULT '',
		personality_style TEXT DEFAULT '',
		personality_tone TEXT DEFAULT '',
		category TEXT DEFAULT '',
		tags TEXT DEFAULT '[]',
		plan_tier TEXT DEFAULT 'free',
		is_active INTEGER DEFAULT 1,
		version TEXT DEFAULT '1.0.0',
		author TEXT DEFAULT '',
		install_count INTEGER DEFAULT 0,
		factory_version INTEGER DEFAULT 0,
		factory_published_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category);
	CREATE INDEX IF NOT EXISTS idx_templates_tier ON templates(plan_tier);
	`

	layerTable := `
	CREATE TABLE IF NOT EXISTS prompt_layers (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		layer_type TEXT NOT NULL,
		label TEXT DEFAULT '',
		content TEXT NOT NULL,
		priority INTEGER DEFAULT 100,
		is_active INTEGER DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_layers_template ON prompt_layers(template_id);
	`

	ruleTable := `
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT DEFAULT '',
		severity TEXT DEFAULT 'important',
		is_active INTEGER DEFAULT 1,
		sort_order INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rules_template ON rules(template_id);
	`

	exampleTable := `
	CREATE TABLE IF NOT EXISTS examples (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		user_input TEXT NOT NULL,
		expected_output TEXT NOT NULL,
		explanation TEXT DEFAULT '',
		tags TEXT DEFAULT '[]',
		is_active INTEGER DEFAULT 1,
		sort_order INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_examples_template ON examples(template_id);
	`

	memoryTable := `
	CREATE TABLE IF NOT EXISTS factory_memories (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		factory_id TEXT NOT NULL,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		importance REAL DEFAULT 0.5,
		tags TEXT DEFAULT '[]',
		is_active INTEGER DEFAULT 1,
		version_added INTEGER DEFAULT 0,
		version_removed INTEGER DEFAULT 0,
		published_hash TEXT DEFAULT '',
		sort_order INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_template ON factory_memories(template_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_memories_factory ON factory_memories(template_id, factory_id);
	`

	versionTable := `
	CREATE TABLE IF NOT EXISTS factory_versions (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		added INTEGER DEFAULT 0,
		modified INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		total_active INTEGER DEFAULT 0,
		published_at DATETIME NOT NULL,
		UNIQUE(template_id, version)
	);
	`

	knowledgeTable := `
	CREATE TABLE IF NOT EXISTS knowledge_bases (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		name TEXT DEFAULT '',
		kb_type TEXT NOT NULL,
		content TEXT DEFAULT '',
		source_url TEXT DEFAULT '',
		file_path TEXT DEFAULT '',
		mime_type TEXT DEFAULT '',
		retrieval_strategy TEXT DEFAULT 'semantic',
		chunk_size INTEGER DEFAULT 512,
		chunk_overlap INTEGER DEFAULT 64,
		max_chunks_per_query INTEGER DEFAULT 5,
		embedding_model TEXT DEFAULT '',
		indexing_status TEXT DEFAULT 'pending',
		indexing_error TEXT DEFAULT '',
		total_chunks INTEGER DEFAULT 0,
		last_indexed_at DATETIME,
		is_active INTEGER DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kb_template ON knowledge_bases(template_id);
	`

	assignmentTable := `
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		assignment_type TEXT NOT NULL,
		is_active INTEGER DEFAULT 1,
		config_overrides TEXT DEFAULT '{}',
		assigned_at DATETIME NOT NULL,
		revoked_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_user ON assignments(user_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_template ON assignments(template_id);
	`

	eventTable := `
	CREATE TABLE IF NOT EXISTS install_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		device_id TEXT DEFAULT '',
		os TEXT DEFAULT '',
		app_version TEXT DEFAULT '',
		event_type TEXT NOT NULL,
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_template ON install_events(template_id);
	`

	for _, table := range []string{
		templateTable, layerTable, ruleTable, exampleTable,
		memoryTable, versionTable, knowledgeTable, assignmentTable, eventTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for transactional callers (publish).
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginTx starts a transaction against the store.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// requireTemplate enforces the referential invariant: every child entity
// must reference an existing template.
func (s *Store) requireTemplate(id string) error {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM templates WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return types.NotFound("template", id)
	}
	if err != nil {
		return fmt.Errorf("failed to check template: %w", err)
	}
	return nil
}

// Stats returns row counts per table, for the stats CLI command.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"templates", "prompt_layers", "rules", "examples",
		"factory_memories", "factory_versions", "knowledge_bases",
		"assignments", "install_events",
	}
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

// ========== Shared helpers ==========

func now() time.Time {
	return time.Now().UTC()
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

func unmarshalTags(data string) []string {
	var tags []string
	if data != "" {
		_ = json.Unmarshal([]byte(data), &tags)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
