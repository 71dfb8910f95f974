package store

import (
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sender_trust (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_hash TEXT NOT NULL UNIQUE,
			domain TEXT NOT NULL,
			trust_score INTEGER NOT NULL DEFAULT 100,
			total_submissions INTEGER NOT NULL DEFAULT 0,
			accepted_submissions INTEGER NOT NULL DEFAULT 0,
			rejected_submissions INTEGER NOT NULL DEFAULT 0,
			total_queries INTEGER NOT NULL DEFAULT 0,
			invalid_queries INTEGER NOT NULL DEFAULT 0,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			is_shadow_banned INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS email_event_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			day_bucket TEXT NOT NULL,
			event_type TEXT NOT NULL,
			result_type TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			event_count INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			UNIQUE (day_bucket, event_type, result_type, category)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_category ON email_event_log(category, created_at)`,
		`CREATE TABLE IF NOT EXISTS official_pull (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			authority_name TEXT NOT NULL,
			document_type TEXT NOT NULL DEFAULT '',
			document_number TEXT NOT NULL DEFAULT '',
			issue_date TEXT NOT NULL DEFAULT '',
			clauses TEXT NOT NULL DEFAULT '',
			applicability TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS submitted_opportunity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organisation_name TEXT NOT NULL,
			organisation_type TEXT NOT NULL,
			opportunity_title TEXT NOT NULL,
			opportunity_category TEXT NOT NULL,
			description TEXT NOT NULL,
			military_relevance_tier TEXT NOT NULL,
			validity_start TEXT NOT NULL,
			validity_end TEXT,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			submission_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunity_identity
			ON submitted_opportunity(organisation_name, opportunity_title, validity_start)`,
		`CREATE TABLE IF NOT EXISTS system_config (
			config_key TEXT PRIMARY KEY,
			config_value TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`,
	},
	insertSender: `
		INSERT OR IGNORE INTO sender_trust (sender_hash, domain, trust_score, first_seen, last_seen)
		VALUES (?, ?, 100, ?, ?)`,
	upsertEvent: `
		INSERT INTO email_event_log (day_bucket, event_type, result_type, category, event_count, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (day_bucket, event_type, result_type, category) DO UPDATE SET event_count = event_count + 1`,
	insertFlag: `
		INSERT OR IGNORE INTO system_config (config_key, config_value, enabled, description, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
	greatest: "MAX",
	least:    "MIN",
}

// NewSQLiteStore creates a store backed by a SQLite file
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq, retention time.Duration) (*SQLStore, error) {
	return openSQLStore("sqlite3", dbPath, sqliteDialect, logger, cleanupFreq, retention)
}
