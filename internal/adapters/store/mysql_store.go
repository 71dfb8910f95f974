package store

import (
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sender_trust (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			sender_hash CHAR(64) NOT NULL,
			domain VARCHAR(255) NOT NULL,
			trust_score INT NOT NULL DEFAULT 100,
			total_submissions INT NOT NULL DEFAULT 0,
			accepted_submissions INT NOT NULL DEFAULT 0,
			rejected_submissions INT NOT NULL DEFAULT 0,
			total_queries INT NOT NULL DEFAULT 0,
			invalid_queries INT NOT NULL DEFAULT 0,
			first_seen VARCHAR(32) NOT NULL,
			last_seen VARCHAR(32) NOT NULL,
			is_shadow_banned TINYINT NOT NULL DEFAULT 0,
			UNIQUE KEY uniq_sender_hash (sender_hash)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS email_event_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			day_bucket VARCHAR(16) NOT NULL,
			event_type VARCHAR(16) NOT NULL,
			result_type VARCHAR(32) NOT NULL,
			category VARCHAR(191) NOT NULL DEFAULT '',
			event_count INT NOT NULL DEFAULT 1,
			created_at VARCHAR(32) NOT NULL,
			UNIQUE KEY uniq_event_bucket (day_bucket, event_type, result_type, category),
			INDEX idx_event_category (category, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS official_pull (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			authority_name VARCHAR(255) NOT NULL,
			document_type VARCHAR(64) NOT NULL DEFAULT '',
			document_number VARCHAR(255) NOT NULL DEFAULT '',
			issue_date VARCHAR(16) NOT NULL DEFAULT '',
			clauses TEXT NOT NULL,
			applicability VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			created_at VARCHAR(32) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS submitted_opportunity (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			organisation_name VARCHAR(255) NOT NULL,
			organisation_type VARCHAR(16) NOT NULL,
			opportunity_title VARCHAR(255) NOT NULL,
			opportunity_category VARCHAR(32) NOT NULL,
			description TEXT NOT NULL,
			military_relevance_tier VARCHAR(16) NOT NULL,
			validity_start VARCHAR(16) NOT NULL,
			validity_end VARCHAR(16) NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			submission_hash CHAR(64) NOT NULL,
			created_at VARCHAR(32) NOT NULL,
			INDEX idx_opportunity_identity (organisation_name, opportunity_title, validity_start)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS system_config (
			config_key VARCHAR(64) PRIMARY KEY,
			config_value VARCHAR(255) NOT NULL,
			enabled TINYINT NOT NULL DEFAULT 0,
			description VARCHAR(255) NOT NULL DEFAULT '',
			updated_at VARCHAR(32) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	insertSender: `
		INSERT IGNORE INTO sender_trust (sender_hash, domain, trust_score, first_seen, last_seen)
		VALUES (?, ?, 100, ?, ?)`,
	upsertEvent: `
		INSERT INTO email_event_log (day_bucket, event_type, result_type, category, event_count, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON DUPLICATE KEY UPDATE event_count = event_count + 1`,
	insertFlag: `
		INSERT IGNORE INTO system_config (config_key, config_value, enabled, description, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
	greatest: "GREATEST",
	least:    "LEAST",
}

// NewMySQLStore creates a store backed by MySQL. The DSN should carry
// clientFoundRows=true so that unchanged rows still count as affected.
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq, retention time.Duration) (*SQLStore, error) {
	return openSQLStore("mysql", dsn, mysqlDialect, logger, cleanupFreq, retention)
}
