package store

// Additive schema migrations for existing databases. Each entry adds a
// column if it is missing; tables created fresh already carry every column.

import (
	"database/sql"
	"fmt"

	"agentfoundry/internal/logging"
	"go.uber.org/zap"
)

// Migration defines one additive column migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all schema migrations to apply, in order.
var pendingMigrations = []Migration{
	// published_hash was introduced with the modified-detection diff; older
	// databases carry memories without it.
	{"factory_memories", "published_hash", "TEXT DEFAULT ''"},
	// Install counters moved onto the template row.
	{"templates", "install_count", "INTEGER DEFAULT 0"},
	// Assignment config overrides were added after the initial schema.
	{"assignments", "config_overrides", "TEXT DEFAULT '{}'"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	log := logging.Get(logging.CategoryStore)

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		log.Info("migration applied", zap.String("table", m.Table), zap.String("column", m.Column))
		applied++
	}

	if applied > 0 {
		log.Info("schema migrations complete", zap.Int("applied", applied))
	}
	return nil
}

// tableExists checks sqlite_master for the table.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	return err == nil
}

// columnExists checks if a column exists using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
